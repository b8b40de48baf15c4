// Package tx builds and signs P2PKH wallet transactions: payments,
// consolidations, and timelock redemptions. Coin selection lives here
// too; fee arithmetic comes from the fees package.
package tx

import (
	"encoding/hex"
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

// UTXO represents an unspent output the wallet can spend.
type UTXO struct {
	TxID         string         `json:"txid"` // hex, display order
	Vout         uint32         `json:"vout"`
	Satoshis     uint64         `json:"satoshis"`
	ScriptPubKey []byte         `json:"script_pub_key,omitempty"`
	Address      string         `json:"address"`
	PrivateKey   *ec.PrivateKey `json:"-"`
}

// Outpoint returns the UTXO's outpoint.
func (u *UTXO) Outpoint() Outpoint {
	return Outpoint{TxID: u.TxID, Vout: u.Vout}
}

// Outpoint identifies a transaction output by txid and index.
type Outpoint struct {
	TxID string `json:"txid"`
	Vout uint32 `json:"vout"`
}

// String renders the outpoint in the conventional txid:vout form.
func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxID, o.Vout)
}

// Destination is one payment target: either a P2PKH address or a raw
// locking script (paymail outputs and timelock scripts arrive as
// scripts).
type Destination struct {
	Address  string // used when Script is empty
	Script   []byte // raw locking script, takes precedence
	Satoshis uint64
}

// SignedTransaction is the result of building and signing a spend.
type SignedTransaction struct {
	Raw           []byte     // signed serialized transaction
	TxID          string     // hex, display order
	Fee           uint64     // satoshis paid to miners, absorbed change included
	Change        uint64     // satoshis returned to the wallet, 0 if absorbed
	ChangeAddress string     // empty when no change output was created
	ChangeVout    uint32     // index of the change output when Change > 0
	OutputCount   int        // total outputs including change
	Spent         []Outpoint // inputs consumed, in input order
}

// Hex returns the signed transaction as a hex string.
func (s *SignedTransaction) Hex() string {
	return hex.EncodeToString(s.Raw)
}
