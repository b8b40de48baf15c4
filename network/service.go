// Package network implements the broadcast endpoint clients and the
// cascade combinator that pushes signed transactions through them, plus
// the chain reads the background sync depends on.
package network

import "context"

// Broadcaster submits a signed transaction to one network endpoint.
// Implementations normalize their endpoint's response shape: a nil
// error with the reported txid on acceptance, or an error carrying the
// endpoint's rejection wording for the classifier.
type Broadcaster interface {
	// Name identifies the endpoint in logs. It never appears in errors
	// surfaced to callers.
	Name() string

	// SubmitTx submits raw transaction bytes and returns the
	// transaction id the endpoint reported.
	SubmitTx(ctx context.Context, rawTx []byte) (string, error)
}

// ChainReader provides the chain lookups the sync routine needs.
type ChainReader interface {
	// ListUnspent returns all unspent outputs paying the given address.
	ListUnspent(ctx context.Context, address string) ([]*UTXO, error)

	// ChainHeight returns the height of the current chain tip.
	ChainHeight(ctx context.Context) (uint32, error)
}

// UTXO is an unspent output as reported by a chain indexer.
type UTXO struct {
	TxID     string `json:"txid"`
	Vout     uint32 `json:"vout"`
	Satoshis uint64 `json:"satoshis"`
	Height   int64  `json:"height"`
}
