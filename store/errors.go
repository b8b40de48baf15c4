package store

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("store: required parameter is nil")

	// ErrInvalidRecord indicates a record is missing a required field.
	ErrInvalidRecord = errors.New("store: invalid record")

	// ErrUTXONotFound indicates the outpoint has no row in the
	// lifecycle table.
	ErrUTXONotFound = errors.New("store: utxo not found")

	// ErrNotSpendable indicates the outpoint is pending or already
	// spent and cannot be marked again.
	ErrNotSpendable = errors.New("store: utxo not spendable")

	// ErrTxRecordNotFound indicates no broadcast record exists for the
	// txid.
	ErrTxRecordNotFound = errors.New("store: transaction record not found")

	// ErrLockNotFound indicates the outpoint has no lock record.
	ErrLockNotFound = errors.New("store: lock not found")

	// ErrNoSettings indicates no settings blob was ever saved for the
	// account.
	ErrNoSettings = errors.New("store: no settings saved")
)
