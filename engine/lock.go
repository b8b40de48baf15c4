package engine

import (
	"context"
	"fmt"
	"time"

	bsvhash "github.com/bsv-blockchain/go-sdk/primitives/hash"
	"go.uber.org/zap"

	"github.com/bitfsorg/libwallet-go/locks"
	"github.com/bitfsorg/libwallet-go/store"
	"github.com/bitfsorg/libwallet-go/tx"
)

// Lock moves satoshis into an output the account's key can spend only
// once the chain is blocks blocks past the current tip. Returns the
// lock transaction's txid.
func (e *Engine) Lock(ctx context.Context, satoshis uint64, blocks uint32) (string, error) {
	if satoshis == 0 {
		return "", fmt.Errorf("%w: zero satoshis", tx.ErrInvalidAmount)
	}
	if blocks == 0 {
		return "", fmt.Errorf("%w: zero lock duration", tx.ErrInvalidAmount)
	}

	e.gate.Lock()
	defer e.gate.Unlock()

	height, err := e.chainHeight(ctx)
	if err != nil {
		return "", err
	}
	unlockBlock := height + blocks

	account := e.account.Load()
	addr, kp, err := e.spendingAddress(account)
	if err != nil {
		return "", err
	}
	lockScript, err := locks.BuildScript(unlockBlock, bsvhash.Hash160(kp.PublicKey.Compressed()))
	if err != nil {
		return "", err
	}

	coins, err := e.spendableCoins(account, spendBaskets...)
	if err != nil {
		return "", err
	}
	rate := e.fees.Rate(ctx)
	sel := tx.Select(coins, satoshis, 1, rate)
	if !sel.Sufficient {
		return "", fmt.Errorf("%w: need %d satoshis plus fee, have %d spendable",
			tx.ErrInsufficientFunds, satoshis, sel.Total)
	}

	signed, err := tx.BuildLock(sel.UTXOs, lockScript, satoshis, addr, rate)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	rec := &store.TxRecord{
		TxID:        signed.TxID,
		RawTx:       signed.Raw,
		Description: fmt.Sprintf("lock %d satoshis until block %d", satoshis, unlockBlock),
		Amount:      -int64(signed.Fee),
		Status:      store.TxStatusBroadcast,
		CreatedAt:   now,
	}
	// The lock pays the first output. It stays selectable by Unlock
	// through the timelocked basket, which send-class selection skips.
	lockRow := &store.UTXORecord{
		TxID:          signed.TxID,
		Vout:          0,
		Satoshis:      satoshis,
		LockingScript: lockScript,
		Address:       addr,
		Basket:        store.BasketTimelocked,
		Spendable:     true,
		CreatedAt:     now,
	}

	accepted, err := e.broadcastAndApply(ctx, account, signed, rec, lockRow, e.changeRecord(signed, now))
	if accepted == "" {
		return "", err
	}

	entry := locks.LockedOutput{
		TxID:                accepted,
		Vout:                0,
		Satoshis:            satoshis,
		UnlockBlock:         unlockBlock,
		LockBlockAtCreation: height,
	}
	entry.Recompute(height)

	if plErr := e.store.Locks(account).PutLock(entry); plErr != nil {
		e.logger.Warn("lock entry not persisted; next sync restores it",
			zap.String("txid", accepted),
			zap.Error(plErr))
	}
	e.stateMu.Lock()
	e.optimistic = append(e.optimistic, entry)
	e.stateMu.Unlock()

	if current, lkErr := e.Locks(); lkErr == nil {
		e.notifyLocks(current)
	}
	return accepted, err
}

// Unlock spends a matured lock back to the account's spending address
// and returns the unlock transaction's txid.
func (e *Engine) Unlock(ctx context.Context, op tx.Outpoint) (string, error) {
	e.gate.Lock()
	defer e.gate.Unlock()

	account := e.account.Load()
	entry, err := e.findLock(account, op)
	if err != nil {
		return "", err
	}

	height, err := e.chainHeight(ctx)
	if err != nil {
		return "", err
	}
	entry.Recompute(height)
	if !entry.Spendable {
		return "", fmt.Errorf("%w: %d blocks remaining", ErrLockNotMature, entry.BlocksRemaining)
	}

	row, err := e.store.UTXOs(account).GetUTXO(op)
	if err != nil {
		return "", err
	}

	addr, kp, err := e.spendingAddress(account)
	if err != nil {
		return "", err
	}

	// Rows imported by a scan carry no script; rebuild it from the
	// lock entry.
	lockScript := row.LockingScript
	if !locks.IsLockScript(lockScript) {
		lockScript, err = locks.BuildScript(entry.UnlockBlock, bsvhash.Hash160(kp.PublicKey.Compressed()))
		if err != nil {
			return "", err
		}
	}

	rate := e.fees.Rate(ctx)
	coin := &tx.UTXO{
		TxID:         row.TxID,
		Vout:         row.Vout,
		Satoshis:     row.Satoshis,
		ScriptPubKey: lockScript,
		Address:      row.Address,
	}
	signed, err := tx.BuildUnlock(coin, entry.UnlockBlock, addr, kp.PrivateKey, rate)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	rec := &store.TxRecord{
		TxID:        signed.TxID,
		RawTx:       signed.Raw,
		Description: fmt.Sprintf("unlock %s", op),
		Amount:      -int64(signed.Fee),
		Status:      store.TxStatusBroadcast,
		CreatedAt:   now,
	}
	script, _ := tx.LockingScriptForAddress(addr)
	redeemed := &store.UTXORecord{
		TxID:          signed.TxID,
		Vout:          0,
		Satoshis:      row.Satoshis - signed.Fee,
		LockingScript: script,
		Address:       addr,
		Basket:        store.BasketDefault,
		Spendable:     true,
		CreatedAt:     now,
	}

	accepted, err := e.broadcastAndApply(ctx, account, signed, rec, redeemed)
	if accepted == "" {
		return "", err
	}

	if dlErr := e.store.Locks(account).DeleteLock(op); dlErr != nil {
		e.logger.Warn("spent lock entry not removed; next sync clears it",
			zap.String("outpoint", op.String()),
			zap.Error(dlErr))
	}
	e.stateMu.Lock()
	kept := e.optimistic[:0]
	for _, l := range e.optimistic {
		if l.TxID != op.TxID || l.Vout != op.Vout {
			kept = append(kept, l)
		}
	}
	e.optimistic = kept
	e.stateMu.Unlock()

	if current, lkErr := e.Locks(); lkErr == nil {
		e.notifyLocks(current)
	}
	return accepted, err
}

// findLock loads a persisted lock entry by outpoint.
func (e *Engine) findLock(account uint32, op tx.Outpoint) (*locks.LockedOutput, error) {
	persisted, err := e.store.Locks(account).ListLocks()
	if err != nil {
		return nil, err
	}
	for i := range persisted {
		if persisted[i].TxID == op.TxID && persisted[i].Vout == op.Vout {
			return &persisted[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", store.ErrLockNotFound, op)
}
