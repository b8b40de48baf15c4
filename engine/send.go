package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bitfsorg/libwallet-go/fees"
	"github.com/bitfsorg/libwallet-go/paymail"
	"github.com/bitfsorg/libwallet-go/store"
	"github.com/bitfsorg/libwallet-go/tx"
	"github.com/bitfsorg/libwallet-go/wallet"
)

// Send pays satoshis to a P2PKH address or a paymail handle and
// returns the accepted txid. When the error is a LocalRecordingError
// the txid is still returned: the network accepted the transaction and
// only the local bookkeeping failed.
func (e *Engine) Send(ctx context.Context, to string, satoshis uint64) (string, error) {
	if satoshis == 0 {
		return "", fmt.Errorf("%w: zero satoshis", tx.ErrInvalidAmount)
	}

	// Resolve the destination before taking the gate; paymail
	// resolution is a network round trip.
	dests, err := e.resolveDestinations(ctx, to, satoshis)
	if err != nil {
		return "", err
	}

	e.gate.Lock()
	defer e.gate.Unlock()

	account := e.account.Load()
	coins, err := e.spendableCoins(account, spendBaskets...)
	if err != nil {
		return "", err
	}

	rate := e.fees.Rate(ctx)
	sel := tx.Select(coins, satoshis, len(dests), rate)
	if !sel.Sufficient {
		return "", fmt.Errorf("%w: need %d satoshis plus fee, have %d spendable",
			tx.ErrInsufficientFunds, satoshis, sel.Total)
	}

	changeAddr, spendKP, err := e.spendingAddress(account)
	if err != nil {
		return "", err
	}
	signed, err := e.buildPayment(sel.UTXOs, dests, changeAddr, spendKP, rate)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	rec := &store.TxRecord{
		TxID:        signed.TxID,
		RawTx:       signed.Raw,
		Description: "send to " + to,
		Amount:      -int64(satoshis + signed.Fee),
		Status:      store.TxStatusBroadcast,
		CreatedAt:   now,
	}
	return e.broadcastAndApply(ctx, account, signed, rec, e.changeRecord(signed, now))
}

// ConsolidateResult reports a completed consolidation.
type ConsolidateResult struct {
	TxID     string
	Inputs   int
	Satoshis uint64 // value of the merged output
	Fee      uint64
}

// Consolidate merges every spendable coin into one output paying the
// account's spending address.
func (e *Engine) Consolidate(ctx context.Context) (*ConsolidateResult, error) {
	e.gate.Lock()
	defer e.gate.Unlock()

	account := e.account.Load()
	coins, err := e.spendableCoins(account, spendBaskets...)
	if err != nil {
		return nil, err
	}
	if len(coins) < 2 {
		return nil, tx.ErrConsolidationTooFew
	}

	addr, _, err := e.spendingAddress(account)
	if err != nil {
		return nil, err
	}

	rate := e.fees.Rate(ctx)
	signed, err := tx.BuildConsolidation(coins, addr, rate)
	if err != nil {
		return nil, err
	}

	var total uint64
	for _, c := range coins {
		total += c.Satoshis
	}
	merged := total - signed.Fee

	now := time.Now().UTC()
	rec := &store.TxRecord{
		TxID:        signed.TxID,
		RawTx:       signed.Raw,
		Description: fmt.Sprintf("consolidate %d outputs", len(coins)),
		Amount:      -int64(signed.Fee),
		Status:      store.TxStatusBroadcast,
		CreatedAt:   now,
	}
	script, _ := tx.LockingScriptForAddress(addr)
	out := &store.UTXORecord{
		TxID:          signed.TxID,
		Vout:          0,
		Satoshis:      merged,
		LockingScript: script,
		Address:       addr,
		Basket:        store.BasketDefault,
		Spendable:     true,
		CreatedAt:     now,
	}

	accepted, err := e.broadcastAndApply(ctx, account, signed, rec, out)
	if accepted == "" {
		return nil, err
	}
	return &ConsolidateResult{
		TxID:     accepted,
		Inputs:   len(coins),
		Satoshis: merged,
		Fee:      signed.Fee,
	}, err
}

// MaxSend returns the largest amount one send could deliver after fees
// and the fee that send would pay. Zero coins yield zero.
func (e *Engine) MaxSend(ctx context.Context) (uint64, uint64, error) {
	e.gate.Lock()
	defer e.gate.Unlock()

	account := e.account.Load()
	coins, err := e.spendableCoins(account, spendBaskets...)
	if err != nil {
		return 0, 0, err
	}
	if len(coins) == 0 {
		return 0, 0, nil
	}

	var total uint64
	for _, c := range coins {
		total += c.Satoshis
	}
	amount, fee := fees.MaxSend(len(coins), total, e.fees.Rate(ctx))
	return amount, fee, nil
}

// resolveDestinations turns an address or a paymail handle into the
// concrete transaction outputs totalling satoshis.
func (e *Engine) resolveDestinations(ctx context.Context, to string, satoshis uint64) ([]tx.Destination, error) {
	if paymail.IsHandle(to) {
		if e.paymail == nil {
			return nil, ErrNoPaymailClient
		}
		handle, err := paymail.ParseHandle(to)
		if err != nil {
			return nil, err
		}
		outputs, err := e.paymail.GetPaymentDestination(ctx, handle, satoshis)
		if err != nil {
			return nil, err
		}
		dests := make([]tx.Destination, 0, len(outputs))
		for _, out := range outputs {
			script, err := out.ScriptBytes()
			if err != nil {
				return nil, err
			}
			dests = append(dests, tx.Destination{Script: script, Satoshis: out.Satoshis})
		}
		return dests, nil
	}

	if _, err := tx.LockingScriptForAddress(to); err != nil {
		return nil, err
	}
	return []tx.Destination{{Address: to, Satoshis: satoshis}}, nil
}

// buildPayment signs with the single-key path when every input pays
// the spending address, otherwise each input signs with its own key.
func (e *Engine) buildPayment(coins []*tx.UTXO, dests []tx.Destination, changeAddr string, spendKP *wallet.KeyPair, rate float64) (*tx.SignedTransaction, error) {
	single := true
	for _, c := range coins {
		if c.Address != changeAddr {
			single = false
			break
		}
	}
	if single {
		return tx.BuildSend(coins, dests, changeAddr, spendKP.PrivateKey, rate)
	}
	return tx.BuildMultiKeySend(coins, dests, changeAddr, rate)
}

// changeRecord converts a signed transaction's change output into a
// store row, or nil when change was absorbed into the fee.
func (e *Engine) changeRecord(signed *tx.SignedTransaction, at time.Time) *store.UTXORecord {
	if signed.Change == 0 {
		return nil
	}
	script, _ := tx.LockingScriptForAddress(signed.ChangeAddress)
	return &store.UTXORecord{
		TxID:          signed.TxID,
		Vout:          signed.ChangeVout,
		Satoshis:      signed.Change,
		LockingScript: script,
		Address:       signed.ChangeAddress,
		Basket:        store.BasketDefault,
		Spendable:     true,
		CreatedAt:     at,
	}
}

// broadcastAndApply runs the spend tail shared by every send-class
// operation: durable pending marks, the broadcast cascade, then either
// the atomic local apply or a rollback of the marks. Caller holds the
// gate.
func (e *Engine) broadcastAndApply(ctx context.Context, account uint32, signed *tx.SignedTransaction, rec *store.TxRecord, produced ...*store.UTXORecord) (string, error) {
	table := e.store.UTXOs(account)
	if err := table.MarkPending(signed.Spent, signed.TxID); err != nil {
		return "", err
	}

	accepted, err := e.cascade.Broadcast(ctx, signed.Raw, signed.TxID)
	if err != nil {
		// The rollback outcome never masks the broadcast error.
		if rbErr := table.Rollback(signed.Spent); rbErr != nil {
			e.logger.Error("rollback after failed broadcast incomplete",
				zap.String("txid", signed.TxID),
				zap.Error(rbErr))
		}
		return "", err
	}

	rec.TxID = accepted
	rows := make([]*store.UTXORecord, 0, len(produced))
	for _, p := range produced {
		if p == nil {
			continue
		}
		p.TxID = accepted
		rows = append(rows, p)
	}
	if err := e.store.ApplyBroadcast(account, rec, signed.Spent, rows); err != nil {
		e.logger.Error("broadcast accepted but local recording failed",
			zap.String("txid", accepted),
			zap.Error(err))
		return accepted, &LocalRecordingError{TxID: accepted, Err: err}
	}

	e.logger.Info("transaction broadcast",
		zap.String("txid", accepted),
		zap.Int("inputs", len(signed.Spent)),
		zap.Uint64("fee", signed.Fee))
	return accepted, nil
}
