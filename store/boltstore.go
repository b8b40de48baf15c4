package store

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/bitfsorg/libwallet-go/locks"
	"github.com/bitfsorg/libwallet-go/tx"
)

var (
	bucketUTXOs     = []byte("utxos")
	bucketTxRecords = []byte("txrecords")
	bucketLocks     = []byte("locks")
	bucketSettings  = []byte("settings")
)

// BoltStore wraps a bbolt database holding the wallet's persistent state.
type BoltStore struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("store: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open bolt db: %w", err)
	}

	err = db.Update(func(btx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketUTXOs, bucketTxRecords, bucketLocks, bucketSettings} {
			if _, err := btx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("boltstore: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error { return s.db.Close() }

// UTXOs returns the lifecycle table scoped to an account.
func (s *BoltStore) UTXOs(account uint32) UTXOStore {
	return &BoltUTXOStore{db: s.db, account: account}
}

// TxRecords returns the broadcast history scoped to an account.
func (s *BoltStore) TxRecords(account uint32) TxRecordStore {
	return &BoltTxRecordStore{db: s.db, account: account}
}

// Locks returns the timelock table scoped to an account.
func (s *BoltStore) Locks(account uint32) LockStore {
	return &BoltLockStore{db: s.db, account: account}
}

// Settings returns the settings blob scoped to an account.
func (s *BoltStore) Settings(account uint32) SettingsStore {
	return &BoltSettingsStore{db: s.db, account: account}
}

// ApplyBroadcast applies an accepted broadcast in one atomic update.
// Outputs the transaction created for this wallet (change, lock outputs)
// are passed as produced records.
func (s *BoltStore) ApplyBroadcast(account uint32, rec *TxRecord, spent []tx.Outpoint, produced []*UTXORecord) error {
	if rec == nil {
		return fmt.Errorf("%w: transaction record", ErrNilParam)
	}
	if rec.TxID == "" {
		return fmt.Errorf("%w: empty txid", ErrInvalidRecord)
	}
	if rec.CreatedAt.IsZero() {
		return fmt.Errorf("%w: zero created time", ErrInvalidRecord)
	}
	for _, p := range produced {
		if p == nil || p.TxID == "" {
			return fmt.Errorf("%w: produced record without txid", ErrInvalidRecord)
		}
	}

	return s.db.Update(func(btx *bbolt.Tx) error {
		rb := btx.Bucket(bucketTxRecords)
		recKey := txidKey(account, rec.TxID)
		if rb.Get(recKey) == nil {
			data, err := encodeGob(rec)
			if err != nil {
				return fmt.Errorf("encode tx record: %w", err)
			}
			if err := rb.Put(recKey, data); err != nil {
				return fmt.Errorf("boltstore: put tx record: %w", err)
			}
		}

		ub := btx.Bucket(bucketUTXOs)
		for _, op := range spent {
			u, err := readUTXO(ub, outpointKey(account, op))
			if err != nil {
				return err
			}
			if u == nil {
				return fmt.Errorf("%w: %s", ErrUTXONotFound, op)
			}
			u.Spendable = false
			u.SpentTxID = rec.TxID
			u.SpentAt = rec.CreatedAt
			if err := writeUTXO(ub, outpointKey(account, op), u); err != nil {
				return err
			}
		}

		for _, p := range produced {
			key := outpointKey(account, p.Outpoint())
			// A concurrent sync may already have scanned the output;
			// the existing row wins.
			if ub.Get(key) == nil {
				if err := writeUTXO(ub, key, p); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// accountKey encodes an account index as a 4-byte big-endian prefix so
// one account's rows form a contiguous key range.
func accountKey(account uint32) []byte {
	k := make([]byte, 4)
	binary.BigEndian.PutUint32(k, account)
	return k
}

// outpointKey builds the composite key account + txid + vout.
func outpointKey(account uint32, op tx.Outpoint) []byte {
	k := make([]byte, 0, 4+len(op.TxID)+4)
	k = append(k, accountKey(account)...)
	k = append(k, op.TxID...)
	var vout [4]byte
	binary.BigEndian.PutUint32(vout[:], op.Vout)
	return append(k, vout[:]...)
}

// txidKey builds the composite key account + txid.
func txidKey(account uint32, txid string) []byte {
	k := make([]byte, 0, 4+len(txid))
	k = append(k, accountKey(account)...)
	return append(k, txid...)
}

// encodeGob serializes a value using gob encoding.
func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeGob deserializes gob-encoded data into a value.
func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func readUTXO(b *bbolt.Bucket, key []byte) (*UTXORecord, error) {
	data := b.Get(key)
	if data == nil {
		return nil, nil
	}
	var u UTXORecord
	if err := decodeGob(data, &u); err != nil {
		return nil, fmt.Errorf("boltstore: decode utxo: %w", err)
	}
	return &u, nil
}

func writeUTXO(b *bbolt.Bucket, key []byte, u *UTXORecord) error {
	data, err := encodeGob(u)
	if err != nil {
		return fmt.Errorf("encode utxo: %w", err)
	}
	if err := b.Put(key, data); err != nil {
		return fmt.Errorf("boltstore: put utxo: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// BoltUTXOStore implements UTXOStore.
// ---------------------------------------------------------------------------

// BoltUTXOStore persists one account's UTXO lifecycle table in bbolt.
type BoltUTXOStore struct {
	db      *bbolt.DB
	account uint32
}

// Compile-time interface check.
var _ UTXOStore = (*BoltUTXOStore)(nil)

// PutUTXO inserts or overwrites a record.
func (s *BoltUTXOStore) PutUTXO(u *UTXORecord) error {
	if u == nil {
		return fmt.Errorf("%w: utxo record", ErrNilParam)
	}
	if u.TxID == "" {
		return fmt.Errorf("%w: empty txid", ErrInvalidRecord)
	}

	return s.db.Update(func(btx *bbolt.Tx) error {
		return writeUTXO(btx.Bucket(bucketUTXOs), outpointKey(s.account, u.Outpoint()), u)
	})
}

// GetUTXO retrieves a record by outpoint.
func (s *BoltUTXOStore) GetUTXO(op tx.Outpoint) (*UTXORecord, error) {
	var u *UTXORecord
	err := s.db.View(func(btx *bbolt.Tx) error {
		var err error
		u, err = readUTXO(btx.Bucket(bucketUTXOs), outpointKey(s.account, op))
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("%w: %s", ErrUTXONotFound, op)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// list scans the account's key range and collects records matching keep.
func (s *BoltUTXOStore) list(keep func(*UTXORecord) bool) ([]*UTXORecord, error) {
	var out []*UTXORecord
	err := s.db.View(func(btx *bbolt.Tx) error {
		c := btx.Bucket(bucketUTXOs).Cursor()
		prefix := accountKey(s.account)
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var u UTXORecord
			if err := decodeGob(v, &u); err != nil {
				return fmt.Errorf("boltstore: decode utxo in list: %w", err)
			}
			if keep == nil || keep(&u) {
				out = append(out, &u)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListUTXOs returns every record, tombstones included.
func (s *BoltUTXOStore) ListUTXOs() ([]*UTXORecord, error) {
	return s.list(nil)
}

// ListSpendable returns spendable records, optionally restricted to one
// basket.
func (s *BoltUTXOStore) ListSpendable(basket string) ([]*UTXORecord, error) {
	return s.list(func(u *UTXORecord) bool {
		return u.Spendable && (basket == "" || u.Basket == basket)
	})
}

// ListPending returns records currently held by a spend candidate.
func (s *BoltUTXOStore) ListPending() ([]*UTXORecord, error) {
	return s.list((*UTXORecord).Pending)
}

// MarkPending atomically moves every outpoint from spendable to pending
// under the candidate txid. A missing or non-spendable outpoint aborts
// the whole batch.
func (s *BoltUTXOStore) MarkPending(outpoints []tx.Outpoint, spendTxid string) error {
	if len(outpoints) == 0 {
		return fmt.Errorf("%w: outpoints", ErrNilParam)
	}
	if spendTxid == "" {
		return fmt.Errorf("%w: empty spend txid", ErrInvalidRecord)
	}

	return s.db.Update(func(btx *bbolt.Tx) error {
		b := btx.Bucket(bucketUTXOs)
		for _, op := range outpoints {
			u, err := readUTXO(b, outpointKey(s.account, op))
			if err != nil {
				return err
			}
			if u == nil {
				return fmt.Errorf("%w: %s", ErrUTXONotFound, op)
			}
			if !u.Spendable {
				return fmt.Errorf("%w: %s", ErrNotSpendable, op)
			}
			u.Spendable = false
			u.SpentTxID = spendTxid
			if err := writeUTXO(b, outpointKey(s.account, op), u); err != nil {
				return err
			}
		}
		return nil
	})
}

// Rollback returns pending outpoints to spendable. Tombstones are left
// alone: a spend the chain saw outranks a failed rebroadcast.
func (s *BoltUTXOStore) Rollback(outpoints []tx.Outpoint) error {
	if len(outpoints) == 0 {
		return nil
	}

	return s.db.Update(func(btx *bbolt.Tx) error {
		b := btx.Bucket(bucketUTXOs)
		for _, op := range outpoints {
			u, err := readUTXO(b, outpointKey(s.account, op))
			if err != nil {
				return err
			}
			if u == nil {
				return fmt.Errorf("%w: %s", ErrUTXONotFound, op)
			}
			if u.Spendable || !u.SpentAt.IsZero() {
				continue
			}
			u.Spendable = true
			u.SpentTxID = ""
			if err := writeUTXO(b, outpointKey(s.account, op), u); err != nil {
				return err
			}
		}
		return nil
	})
}

// Confirm tombstones an outpoint under the transaction that spent it.
func (s *BoltUTXOStore) Confirm(op tx.Outpoint, spendTxid string, at time.Time) error {
	if spendTxid == "" {
		return fmt.Errorf("%w: empty spend txid", ErrInvalidRecord)
	}
	if at.IsZero() {
		return fmt.Errorf("%w: zero confirm time", ErrInvalidRecord)
	}

	return s.db.Update(func(btx *bbolt.Tx) error {
		b := btx.Bucket(bucketUTXOs)
		u, err := readUTXO(b, outpointKey(s.account, op))
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("%w: %s", ErrUTXONotFound, op)
		}
		u.Spendable = false
		u.SpentTxID = spendTxid
		u.SpentAt = at
		return writeUTXO(b, outpointKey(s.account, op), u)
	})
}

// ---------------------------------------------------------------------------
// BoltTxRecordStore implements TxRecordStore.
// ---------------------------------------------------------------------------

// BoltTxRecordStore persists one account's broadcast history in bbolt.
type BoltTxRecordStore struct {
	db      *bbolt.DB
	account uint32
}

// Compile-time interface check.
var _ TxRecordStore = (*BoltTxRecordStore)(nil)

// PutTxRecord inserts or overwrites a record.
func (s *BoltTxRecordStore) PutTxRecord(r *TxRecord) error {
	if r == nil {
		return fmt.Errorf("%w: transaction record", ErrNilParam)
	}
	if r.TxID == "" {
		return fmt.Errorf("%w: empty txid", ErrInvalidRecord)
	}

	return s.db.Update(func(btx *bbolt.Tx) error {
		data, err := encodeGob(r)
		if err != nil {
			return fmt.Errorf("encode tx record: %w", err)
		}
		if err := btx.Bucket(bucketTxRecords).Put(txidKey(s.account, r.TxID), data); err != nil {
			return fmt.Errorf("boltstore: put tx record: %w", err)
		}
		return nil
	})
}

// GetTxRecord retrieves a record by txid.
func (s *BoltTxRecordStore) GetTxRecord(txid string) (*TxRecord, error) {
	var r TxRecord
	err := s.db.View(func(btx *bbolt.Tx) error {
		data := btx.Bucket(bucketTxRecords).Get(txidKey(s.account, txid))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrTxRecordNotFound, txid)
		}
		if err := decodeGob(data, &r); err != nil {
			return fmt.Errorf("boltstore: decode tx record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListTxRecords returns every record.
func (s *BoltTxRecordStore) ListTxRecords() ([]*TxRecord, error) {
	var out []*TxRecord
	err := s.db.View(func(btx *bbolt.Tx) error {
		c := btx.Bucket(bucketTxRecords).Cursor()
		prefix := accountKey(s.account)
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var r TxRecord
			if err := decodeGob(v, &r); err != nil {
				return fmt.Errorf("boltstore: decode tx record in list: %w", err)
			}
			out = append(out, &r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// BoltLockStore implements LockStore.
// ---------------------------------------------------------------------------

// BoltLockStore persists one account's timelocked outputs in bbolt.
type BoltLockStore struct {
	db      *bbolt.DB
	account uint32
}

// Compile-time interface check.
var _ LockStore = (*BoltLockStore)(nil)

func lockKey(account uint32, l locks.LockedOutput) []byte {
	return outpointKey(account, tx.Outpoint{TxID: l.TxID, Vout: l.Vout})
}

// PutLock inserts or overwrites a lock record.
func (s *BoltLockStore) PutLock(l locks.LockedOutput) error {
	if l.TxID == "" {
		return fmt.Errorf("%w: lock without txid", ErrInvalidRecord)
	}

	return s.db.Update(func(btx *bbolt.Tx) error {
		data, err := encodeGob(&l)
		if err != nil {
			return fmt.Errorf("encode lock: %w", err)
		}
		if err := btx.Bucket(bucketLocks).Put(lockKey(s.account, l), data); err != nil {
			return fmt.Errorf("boltstore: put lock: %w", err)
		}
		return nil
	})
}

// ListLocks returns every lock record in outpoint order.
func (s *BoltLockStore) ListLocks() ([]locks.LockedOutput, error) {
	var out []locks.LockedOutput
	err := s.db.View(func(btx *bbolt.Tx) error {
		c := btx.Bucket(bucketLocks).Cursor()
		prefix := accountKey(s.account)
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var l locks.LockedOutput
			if err := decodeGob(v, &l); err != nil {
				return fmt.Errorf("boltstore: decode lock: %w", err)
			}
			out = append(out, l)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReplaceLocks atomically replaces the account's lock set with the
// reconciled one.
func (s *BoltLockStore) ReplaceLocks(ls []locks.LockedOutput) error {
	for _, l := range ls {
		if l.TxID == "" {
			return fmt.Errorf("%w: lock without txid", ErrInvalidRecord)
		}
	}

	return s.db.Update(func(btx *bbolt.Tx) error {
		b := btx.Bucket(bucketLocks)
		prefix := accountKey(s.account)

		c := b.Cursor()
		var stale [][]byte
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			keyCopy := make([]byte, len(k))
			copy(keyCopy, k)
			stale = append(stale, keyCopy)
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("boltstore: delete lock: %w", err)
			}
		}

		for _, l := range ls {
			data, err := encodeGob(&l)
			if err != nil {
				return fmt.Errorf("encode lock: %w", err)
			}
			if err := b.Put(lockKey(s.account, l), data); err != nil {
				return fmt.Errorf("boltstore: put lock: %w", err)
			}
		}
		return nil
	})
}

// DeleteLock removes a lock record by outpoint.
func (s *BoltLockStore) DeleteLock(op tx.Outpoint) error {
	return s.db.Update(func(btx *bbolt.Tx) error {
		b := btx.Bucket(bucketLocks)
		key := outpointKey(s.account, op)
		if b.Get(key) == nil {
			return fmt.Errorf("%w: %s", ErrLockNotFound, op)
		}
		if err := b.Delete(key); err != nil {
			return fmt.Errorf("boltstore: delete lock: %w", err)
		}
		return nil
	})
}

// ---------------------------------------------------------------------------
// BoltSettingsStore implements SettingsStore.
// ---------------------------------------------------------------------------

// BoltSettingsStore persists one account's settings blob in bbolt.
type BoltSettingsStore struct {
	db      *bbolt.DB
	account uint32
}

// Compile-time interface check.
var _ SettingsStore = (*BoltSettingsStore)(nil)

// PutSettings stores the settings blob.
func (s *BoltSettingsStore) PutSettings(st *Settings) error {
	if st == nil {
		return fmt.Errorf("%w: settings", ErrNilParam)
	}

	return s.db.Update(func(btx *bbolt.Tx) error {
		data, err := encodeGob(st)
		if err != nil {
			return fmt.Errorf("encode settings: %w", err)
		}
		if err := btx.Bucket(bucketSettings).Put(accountKey(s.account), data); err != nil {
			return fmt.Errorf("boltstore: put settings: %w", err)
		}
		return nil
	})
}

// GetSettings retrieves the settings blob.
func (s *BoltSettingsStore) GetSettings() (*Settings, error) {
	var st Settings
	err := s.db.View(func(btx *bbolt.Tx) error {
		data := btx.Bucket(bucketSettings).Get(accountKey(s.account))
		if data == nil {
			return ErrNoSettings
		}
		if err := decodeGob(data, &st); err != nil {
			return fmt.Errorf("boltstore: decode settings: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}
