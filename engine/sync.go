package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bitfsorg/libwallet-go/locks"
	"github.com/bitfsorg/libwallet-go/network"
	"github.com/bitfsorg/libwallet-go/store"
	"github.com/bitfsorg/libwallet-go/tx"
)

// scanResult pairs an address with the unspent outputs the indexer
// reports for it.
type scanResult struct {
	address string
	utxos   []*network.UTXO
}

// Sync re-derives the account's local state from the chain: it scans
// every keyring address, imports newly observed coins, heals pending
// outpoints a crashed or failed broadcast left behind, reconciles
// timelocks, and records the synced height.
//
// The network fetches run outside the gate. If SetAccount changes the
// active account while they are in flight, the results are discarded
// and ErrSyncSuperseded is returned.
func (e *Engine) Sync(ctx context.Context) error {
	e.gate.Lock()
	account := e.account.Load()
	version := e.version.Load()
	addresses := e.keyring.Addresses()
	e.gate.Unlock()

	height, err := e.chainHeight(ctx)
	if err != nil {
		return err
	}
	if e.version.Load() != version {
		return ErrSyncSuperseded
	}

	if err := e.fees.Refresh(ctx); err != nil {
		e.logger.Debug("fee quote refresh failed", zap.Error(err))
	}

	scans := make([]scanResult, len(addresses))
	g, gctx := errgroup.WithContext(ctx)
	for i, addr := range addresses {
		g.Go(func() error {
			utxos, err := e.chain.ListUnspent(gctx, addr)
			if err != nil {
				return fmt.Errorf("engine: scan %s: %w", addr, err)
			}
			scans[i] = scanResult{address: addr, utxos: utxos}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if e.version.Load() != version {
		return ErrSyncSuperseded
	}

	e.gate.Lock()
	defer e.gate.Unlock()
	if e.version.Load() != version {
		return ErrSyncSuperseded
	}
	return e.applyScans(account, height, scans)
}

// applyScans reconciles scan results into the store. Caller holds the
// gate.
func (e *Engine) applyScans(account uint32, height uint32, scans []scanResult) error {
	table := e.store.UTXOs(account)
	now := time.Now().UTC()

	spendingAddr, _, err := e.spendingAddress(account)
	if err != nil {
		return err
	}

	// Outpoints the chain reports unspent.
	seen := make(map[tx.Outpoint]bool)

	for _, scan := range scans {
		for _, u := range scan.utxos {
			op := tx.Outpoint{TxID: u.TxID, Vout: u.Vout}
			seen[op] = true

			existing, err := table.GetUTXO(op)
			if err != nil && !errors.Is(err, store.ErrUTXONotFound) {
				return err
			}

			if existing == nil {
				basket := store.BasketDerived
				if scan.address == spendingAddr {
					basket = store.BasketDefault
				}
				rec := &store.UTXORecord{
					TxID:      u.TxID,
					Vout:      u.Vout,
					Satoshis:  u.Satoshis,
					Address:   scan.address,
					Basket:    basket,
					Spendable: true,
					CreatedAt: now,
				}
				if err := table.PutUTXO(rec); err != nil {
					return err
				}
				continue
			}

			if existing.Pending() {
				// The chain still shows the coin unspent, so the
				// candidate that held it never made it out.
				if err := table.Rollback([]tx.Outpoint{op}); err != nil {
					return err
				}
				e.logger.Warn("released stale pending hold",
					zap.String("outpoint", op.String()),
					zap.String("candidate", existing.SpentTxID))
				continue
			}

			if existing.Spendable && existing.Satoshis != u.Satoshis {
				existing.Satoshis = u.Satoshis
				if err := table.PutUTXO(existing); err != nil {
					return err
				}
			}
		}
	}

	// Pending outpoints the chain no longer reports were spent by
	// their candidate transaction.
	pending, err := table.ListPending()
	if err != nil {
		return err
	}
	for _, p := range pending {
		op := p.Outpoint()
		if seen[op] {
			continue
		}
		if err := table.Confirm(op, p.SpentTxID, now); err != nil {
			return err
		}
		e.confirmRecord(account, p.SpentTxID)
	}

	// A spendable row the scan missed points at an external spend of
	// this seed or at indexer lag. Surface it; the next broadcast
	// spending it would fail and roll back anyway.
	spendable, err := table.ListSpendable("")
	if err != nil {
		return err
	}
	for _, u := range spendable {
		if u.Basket == store.BasketTimelocked || seen[u.Outpoint()] {
			continue
		}
		e.logger.Warn("spendable output missing from scan",
			zap.String("outpoint", u.Outpoint().String()),
			zap.String("address", u.Address))
	}

	if err := e.reconcileLocks(account, height, scans); err != nil {
		return err
	}

	settings := e.settingsOrDefault(account)
	settings.LastSyncHeight = height
	settings.LastSyncAt = now
	if err := e.store.Settings(account).PutSettings(settings); err != nil {
		return err
	}

	e.logger.Info("sync complete",
		zap.Uint32("account", account),
		zap.Uint32("height", height),
		zap.Int("addresses", len(scans)))
	return nil
}

// confirmRecord bumps a broadcast history row to confirmed.
func (e *Engine) confirmRecord(account uint32, txid string) {
	records := e.store.TxRecords(account)
	rec, err := records.GetTxRecord(txid)
	if err != nil || rec.Status == store.TxStatusConfirmed {
		return
	}
	rec.Status = store.TxStatusConfirmed
	if err := records.PutTxRecord(rec); err != nil {
		e.logger.Warn("history row not updated",
			zap.String("txid", txid),
			zap.Error(err))
	}
}

// reconcileLocks merges the scanned, persisted, and optimistic lock
// views, drops entries whose outpoint was spent, and persists the
// result. Caller holds the gate.
func (e *Engine) reconcileLocks(account uint32, height uint32, scans []scanResult) error {
	lockTable := e.store.Locks(account)
	persisted, err := lockTable.ListLocks()
	if err != nil {
		return err
	}

	e.stateMu.Lock()
	optimistic := append([]locks.LockedOutput(nil), e.optimistic...)
	e.stateMu.Unlock()

	known := make(map[tx.Outpoint]locks.LockedOutput)
	for _, l := range persisted {
		known[tx.Outpoint{TxID: l.TxID, Vout: l.Vout}] = l
	}
	for _, l := range optimistic {
		op := tx.Outpoint{TxID: l.TxID, Vout: l.Vout}
		if _, ok := known[op]; !ok {
			known[op] = l
		}
	}

	// Scan rows matching a known lock outpoint form the scanned view.
	// The chain is authoritative for their value; the unlock height
	// comes from the stored script when one is held.
	table := e.store.UTXOs(account)
	var scanned []locks.LockedOutput
	for _, scan := range scans {
		for _, u := range scan.utxos {
			op := tx.Outpoint{TxID: u.TxID, Vout: u.Vout}
			entry, ok := known[op]
			if !ok {
				continue
			}
			sl := locks.LockedOutput{
				TxID:        u.TxID,
				Vout:        u.Vout,
				Satoshis:    u.Satoshis,
				UnlockBlock: entry.UnlockBlock,
			}
			if row, err := table.GetUTXO(op); err == nil && locks.IsLockScript(row.LockingScript) {
				if h, _, perr := locks.ParseScript(row.LockingScript); perr == nil {
					sl.UnlockBlock = h
				}
			}
			scanned = append(scanned, sl)
		}
	}

	merged := locks.Merge(scanned, persisted, optimistic, height)

	// Locks whose outpoint is tombstoned were spent; drop them.
	final := merged[:0]
	for _, l := range merged {
		op := tx.Outpoint{TxID: l.TxID, Vout: l.Vout}
		if row, err := table.GetUTXO(op); err == nil && !row.SpentAt.IsZero() {
			continue
		}
		final = append(final, l)
	}

	if err := lockTable.ReplaceLocks(final); err != nil {
		return err
	}

	// Everything surviving is persisted now; the optimistic overlay
	// has served its purpose.
	e.stateMu.Lock()
	e.optimistic = nil
	e.stateMu.Unlock()

	e.notifyLocks(final)
	return nil
}
