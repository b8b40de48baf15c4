// Package store persists wallet state in bbolt: the UTXO lifecycle
// table, broadcast transaction records, timelocked output records, and
// per-account settings. Every key is scoped by account index, and any
// group of writes that must land together runs in a single update.
package store

import (
	"time"

	"github.com/bitfsorg/libwallet-go/locks"
	"github.com/bitfsorg/libwallet-go/tx"
)

// Baskets partition a wallet's outputs by how they were produced and
// how they may be spent.
const (
	// BasketDefault holds ordinary P2PKH outputs on the wallet address.
	BasketDefault = "default"
	// BasketTimelocked holds CLTV-locked outputs; only an unlock spend
	// may consume them.
	BasketTimelocked = "timelocked"
	// BasketDerived holds outputs on derived counterparty addresses.
	BasketDerived = "derived"
)

// Transaction record statuses.
const (
	// TxStatusBroadcast marks a transaction accepted by at least one
	// broadcast endpoint.
	TxStatusBroadcast = "broadcast"
	// TxStatusConfirmed marks a transaction observed on-chain by a
	// later sync.
	TxStatusConfirmed = "confirmed"
)

// UTXORecord is one row of the UTXO lifecycle table. Identity is
// (TxID, Vout). Lifecycle: spendable, then pending once a spend
// candidate holds it (SpentTxID set, SpentAt zero), then either back to
// spendable on rollback or a tombstone once the spend is final
// (SpentAt set). Tombstones are kept for history.
type UTXORecord struct {
	TxID          string    `json:"txid"`
	Vout          uint32    `json:"vout"`
	Satoshis      uint64    `json:"satoshis"`
	LockingScript []byte    `json:"lockingScript,omitempty"`
	Address       string    `json:"address"`
	Basket        string    `json:"basket"`
	Spendable     bool      `json:"spendable"`
	CreatedAt     time.Time `json:"createdAt"`
	SpentAt       time.Time `json:"spentAt,omitempty"`
	SpentTxID     string    `json:"spentTxid,omitempty"`
}

// Outpoint returns the record's identity.
func (u *UTXORecord) Outpoint() tx.Outpoint {
	return tx.Outpoint{TxID: u.TxID, Vout: u.Vout}
}

// Pending reports whether a spend candidate currently holds the output.
func (u *UTXORecord) Pending() bool {
	return !u.Spendable && u.SpentTxID != "" && u.SpentAt.IsZero()
}

// TxRecord describes one broadcast the wallet made. Records are written
// only for transactions that reached network acceptance.
type TxRecord struct {
	TxID        string    `json:"txid"`
	RawTx       []byte    `json:"rawTx,omitempty"`
	Description string    `json:"description,omitempty"`
	Labels      []string  `json:"labels,omitempty"`
	Amount      int64     `json:"amount"` // satoshi delta from the wallet's view, negative for sends
	BlockHeight uint32    `json:"blockHeight,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Settings is the per-account persisted configuration blob.
type Settings struct {
	FeeRateOverride  float64   `json:"feeRateOverride,omitempty"` // sat/byte, 0 disables the override
	LastSyncHeight   uint32    `json:"lastSyncHeight,omitempty"`
	LastSyncAt       time.Time `json:"lastSyncAt,omitempty"`
	NextDerivedIndex uint32    `json:"nextDerivedIndex,omitempty"`
}

// UTXOStore is the lifecycle table for one account's outputs.
type UTXOStore interface {
	// PutUTXO inserts or overwrites a record.
	PutUTXO(u *UTXORecord) error

	// GetUTXO retrieves a record by outpoint.
	GetUTXO(op tx.Outpoint) (*UTXORecord, error)

	// ListUTXOs returns every record, tombstones included.
	ListUTXOs() ([]*UTXORecord, error)

	// ListSpendable returns spendable records, optionally restricted to
	// one basket (empty basket means all).
	ListSpendable(basket string) ([]*UTXORecord, error)

	// ListPending returns records currently held by a spend candidate.
	ListPending() ([]*UTXORecord, error)

	// MarkPending atomically moves every outpoint from spendable to
	// pending under the candidate txid. If any outpoint is missing or
	// not spendable, nothing is marked.
	MarkPending(outpoints []tx.Outpoint, spendTxid string) error

	// Rollback returns pending outpoints to spendable. Outpoints
	// already spendable are left alone, as are tombstones.
	Rollback(outpoints []tx.Outpoint) error

	// Confirm tombstones an outpoint under the transaction that spent
	// it.
	Confirm(op tx.Outpoint, spendTxid string, at time.Time) error
}

// TxRecordStore keeps one account's broadcast history.
type TxRecordStore interface {
	// PutTxRecord inserts or overwrites a record.
	PutTxRecord(r *TxRecord) error

	// GetTxRecord retrieves a record by txid.
	GetTxRecord(txid string) (*TxRecord, error)

	// ListTxRecords returns every record.
	ListTxRecords() ([]*TxRecord, error)
}

// LockStore keeps one account's timelocked outputs.
type LockStore interface {
	// PutLock inserts or overwrites a lock record.
	PutLock(l locks.LockedOutput) error

	// ListLocks returns every lock record in outpoint order.
	ListLocks() ([]locks.LockedOutput, error)

	// ReplaceLocks atomically replaces the account's lock set.
	ReplaceLocks(ls []locks.LockedOutput) error

	// DeleteLock removes a lock record by outpoint.
	DeleteLock(op tx.Outpoint) error
}

// SettingsStore keeps one account's settings blob.
type SettingsStore interface {
	// PutSettings stores the settings blob.
	PutSettings(st *Settings) error

	// GetSettings retrieves the settings blob, ErrNoSettings when none
	// was ever saved.
	GetSettings() (*Settings, error)
}

// Store is the persistence surface the engine runs on.
type Store interface {
	// UTXOs returns the lifecycle table scoped to an account.
	UTXOs(account uint32) UTXOStore

	// TxRecords returns the broadcast history scoped to an account.
	TxRecords(account uint32) TxRecordStore

	// Locks returns the timelock table scoped to an account.
	Locks(account uint32) LockStore

	// Settings returns the settings blob scoped to an account.
	Settings(account uint32) SettingsStore

	// ApplyBroadcast applies an accepted broadcast in one atomic
	// update: the transaction record is inserted, every spent outpoint
	// is tombstoned under the accepted txid, and the produced outputs
	// (change, lock outputs) are inserted. A produced outpoint that
	// already exists is left alone; a concurrent sync got there first.
	ApplyBroadcast(account uint32, rec *TxRecord, spent []tx.Outpoint, produced []*UTXORecord) error

	// Close releases the underlying database.
	Close() error
}
