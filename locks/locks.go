// Package locks tracks height-locked coins. A locked coin is a CLTV
// output that becomes spendable once the chain reaches its unlock
// height. The engine sees locks from three places: chain scans,
// the persisted store, and optimistic local state for locks created
// this session; Merge reconciles the three views.
package locks

import "fmt"

// LockedOutput describes one height-locked coin.
type LockedOutput struct {
	TxID                string `json:"txid"`
	Vout                uint32 `json:"vout"`
	Satoshis            uint64 `json:"satoshis"`
	UnlockBlock         uint32 `json:"unlock_block"`           // height at which the coin unlocks
	LockBlockAtCreation uint32 `json:"lock_block_at_creation"` // chain height when the lock was made, 0 = unknown
	OrdinalOrigin       string `json:"ordinal_origin,omitempty"`
	Spendable           bool   `json:"spendable"`        // unlock height reached
	BlocksRemaining     uint32 `json:"blocks_remaining"` // 0 once spendable
	UnlockedAt          uint32 `json:"unlocked_at"`      // height the lock expired, 0 while locked
}

// Key returns the outpoint key identifying the locked coin.
func (l *LockedOutput) Key() string {
	return fmt.Sprintf("%s:%d", l.TxID, l.Vout)
}

// Recompute updates the height-derived fields for the given chain
// height. Calling it again with the same height is a no-op.
func (l *LockedOutput) Recompute(height uint32) {
	if height >= l.UnlockBlock {
		l.Spendable = true
		l.BlocksRemaining = 0
		l.UnlockedAt = l.UnlockBlock
		return
	}
	l.Spendable = false
	l.BlocksRemaining = l.UnlockBlock - height
	l.UnlockedAt = 0
}
