package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrSyncSuperseded indicates a sync discarded its results because
	// the active account changed while its scans were in flight.
	ErrSyncSuperseded = errors.New("engine: sync superseded by account switch")

	// ErrLockNotMature indicates an unlock was attempted before the
	// chain reached the lock's unlock block.
	ErrLockNotMature = errors.New("engine: lock not yet mature")

	// ErrNoPaymailClient indicates a paymail handle was given but the
	// engine has no resolver configured.
	ErrNoPaymailClient = errors.New("engine: no paymail client configured")
)

// LocalRecordingError reports a transaction the network accepted whose
// local bookkeeping failed. The coins moved on-chain; the store stays
// stale until the next sync heals it.
type LocalRecordingError struct {
	TxID string
	Err  error
}

func (e *LocalRecordingError) Error() string {
	return fmt.Sprintf("engine: transaction %s accepted but local recording failed: %v", e.TxID, e.Err)
}

func (e *LocalRecordingError) Unwrap() error { return e.Err }
