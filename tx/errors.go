package tx

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil or missing.
	ErrNilParam = errors.New("tx: required parameter is nil")

	// ErrInsufficientFunds indicates the inputs cannot cover outputs plus fee.
	ErrInsufficientFunds = errors.New("tx: insufficient funds")

	// ErrInvalidAmount indicates a zero or out-of-range satoshi amount.
	ErrInvalidAmount = errors.New("tx: invalid amount")

	// ErrInvalidAddress indicates an address failed to parse.
	ErrInvalidAddress = errors.New("tx: invalid address")

	// ErrConsolidationTooFew indicates fewer than two UTXOs were given.
	ErrConsolidationTooFew = errors.New("tx: consolidation requires at least 2 UTXOs")

	// ErrSigningFailed indicates transaction signing failed.
	ErrSigningFailed = errors.New("tx: signing failed")

	// ErrScriptBuild indicates script construction failed.
	ErrScriptBuild = errors.New("tx: script build failed")
)
