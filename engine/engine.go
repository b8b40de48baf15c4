// Package engine is the wallet's coordination layer. It owns coin
// selection, signing, broadcast, persistence, and chain sync, and is
// the surface applications call; the packages beneath it (tx, store,
// network, locks) stay policy-free.
package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/avast/retry-go"
	"go.uber.org/zap"

	"github.com/bitfsorg/libwallet-go/config"
	"github.com/bitfsorg/libwallet-go/fees"
	"github.com/bitfsorg/libwallet-go/locks"
	"github.com/bitfsorg/libwallet-go/network"
	"github.com/bitfsorg/libwallet-go/paymail"
	"github.com/bitfsorg/libwallet-go/store"
	"github.com/bitfsorg/libwallet-go/tx"
	"github.com/bitfsorg/libwallet-go/wallet"
)

// spendBaskets are the baskets send-class operations draw coins from.
// Timelocked outputs spend through Unlock only.
var spendBaskets = []string{store.BasketDefault, store.BasketDerived}

// Engine ties the wallet's collaborators together and serializes every
// operation that reads then mutates coin state.
type Engine struct {
	wallet  *wallet.Wallet
	keyring *wallet.Keyring
	store   store.Store
	chain   network.ChainReader
	cascade *network.Cascade
	fees    *fees.Estimator
	paymail *paymail.Client
	logger  *zap.Logger

	// gate serializes send, consolidate, lock, unlock, and the apply
	// phase of sync. Plain reads go straight to the store.
	gate sync.Mutex

	account atomic.Uint32
	version atomic.Uint64

	stateMu    sync.Mutex
	optimistic []locks.LockedOutput
	lockSubs   []func([]locks.LockedOutput)
}

// New wires an Engine from configuration and the wallet seed. A nil
// logger disables logging.
func New(cfg config.Config, seed []byte, logger *zap.Logger) (*Engine, error) {
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	netCfg, err := wallet.GetNetwork(cfg.Network)
	if err != nil {
		return nil, err
	}
	w, err := wallet.NewWallet(seed, netCfg)
	if err != nil {
		return nil, fmt.Errorf("engine: create wallet: %w", err)
	}

	st, err := store.OpenBoltStore(filepath.Join(cfg.DataDir, "wallet.db"))
	if err != nil {
		return nil, err
	}

	woc := network.NewWOCClient(cfg.WOCURL)
	mapi := network.NewMapiClient(cfg.MapiURL)

	e := &Engine{
		wallet: w,
		store:  st,
		chain:  woc,
		cascade: network.NewCascade(logger,
			woc,
			network.NewArcClient(cfg.ArcURL, cfg.ArcToken, network.ArcJSON),
			network.NewArcClient(cfg.ArcURL, cfg.ArcToken, network.ArcRaw),
			mapi,
		),
		fees:    fees.NewEstimator(mapi),
		paymail: paymail.NewClient(nil),
		logger:  logger,
	}

	ring, err := e.loadKeyring(0)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	e.keyring = ring

	// Fee override precedence: config beats whatever was persisted.
	if cfg.FeeRate > 0 {
		e.fees.SetOverride(cfg.FeeRate)
	} else if s, err := st.Settings(0).GetSettings(); err == nil && s.FeeRateOverride > 0 {
		e.fees.SetOverride(s.FeeRateOverride)
	}

	return e, nil
}

// Close releases the store. In-flight mutating operations finish first.
func (e *Engine) Close() error {
	e.gate.Lock()
	defer e.gate.Unlock()
	return e.store.Close()
}

// Account returns the active account index.
func (e *Engine) Account() uint32 { return e.account.Load() }

// SetAccount switches the active account. A sync in flight for the
// previous account discards its results.
func (e *Engine) SetAccount(account uint32) error {
	e.gate.Lock()
	defer e.gate.Unlock()

	ring, err := e.loadKeyring(account)
	if err != nil {
		return err
	}
	e.keyring = ring
	e.account.Store(account)
	e.version.Add(1)

	e.stateMu.Lock()
	e.optimistic = nil
	e.stateMu.Unlock()
	return nil
}

// loadKeyring builds the keyring for an account: the standard key set
// plus every derived key handed out so far.
func (e *Engine) loadKeyring(account uint32) (*wallet.Keyring, error) {
	ring := wallet.NewKeyring(e.wallet.Network().IsMainnet())
	if err := ring.LoadAccount(e.wallet, account); err != nil {
		return nil, err
	}

	s, err := e.store.Settings(account).GetSettings()
	if errors.Is(err, store.ErrNoSettings) {
		return ring, nil
	}
	if err != nil {
		return nil, err
	}
	for i := uint32(1); i < s.NextDerivedIndex; i++ {
		kp, err := e.wallet.DerivedKey(account, i)
		if err != nil {
			return nil, fmt.Errorf("engine: derive key %d: %w", i, err)
		}
		if _, err := ring.Add(kp); err != nil {
			return nil, fmt.Errorf("engine: derive key %d: %w", i, err)
		}
	}
	return ring, nil
}

// ReceiveAddress returns the account's primary receive address.
func (e *Engine) ReceiveAddress() (string, error) {
	kp, err := e.wallet.SpendingKey(e.account.Load())
	if err != nil {
		return "", err
	}
	return kp.Address(e.wallet.Network().IsMainnet())
}

// NewAddress derives a fresh receive address under the active account
// and persists the derivation counter so the address is scanned and
// spendable across restarts.
func (e *Engine) NewAddress() (string, error) {
	e.gate.Lock()
	defer e.gate.Unlock()

	account := e.account.Load()
	settings := e.settingsOrDefault(account)
	idx := settings.NextDerivedIndex
	if idx == 0 {
		idx = 1
	}

	kp, err := e.wallet.DerivedKey(account, idx)
	if err != nil {
		return "", fmt.Errorf("engine: derive address: %w", err)
	}
	addr, err := e.keyring.Add(kp)
	if err != nil {
		return "", fmt.Errorf("engine: derive address: %w", err)
	}

	settings.NextDerivedIndex = idx + 1
	if err := e.store.Settings(account).PutSettings(settings); err != nil {
		return "", err
	}
	return addr, nil
}

// Balance returns the spendable satoshis across the send baskets.
// Timelocked value is excluded; Locks reports it.
func (e *Engine) Balance() (uint64, error) {
	table := e.store.UTXOs(e.account.Load())
	var total uint64
	for _, basket := range spendBaskets {
		records, err := table.ListSpendable(basket)
		if err != nil {
			return 0, err
		}
		for _, r := range records {
			total += r.Satoshis
		}
	}
	return total, nil
}

// SpendableUTXOs returns the spendable coins in one basket, or in
// every basket when basket is empty.
func (e *Engine) SpendableUTXOs(basket string) ([]*store.UTXORecord, error) {
	return e.store.UTXOs(e.account.Load()).ListSpendable(basket)
}

// History returns the account's broadcast history, newest first.
func (e *Engine) History() ([]*store.TxRecord, error) {
	records, err := e.store.TxRecords(e.account.Load()).ListTxRecords()
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// Locks returns the reconciled lock view: persisted entries plus any
// optimistic ones no sync has absorbed yet, recomputed against the
// last synced height.
func (e *Engine) Locks() ([]locks.LockedOutput, error) {
	account := e.account.Load()
	persisted, err := e.store.Locks(account).ListLocks()
	if err != nil {
		return nil, err
	}

	var height uint32
	if s, err := e.store.Settings(account).GetSettings(); err == nil {
		height = s.LastSyncHeight
	}

	e.stateMu.Lock()
	optimistic := append([]locks.LockedOutput(nil), e.optimistic...)
	e.stateMu.Unlock()

	return locks.Merge(nil, persisted, optimistic, height), nil
}

// OnLocksChanged registers a callback invoked with the reconciled lock
// list whenever it changes. Callbacks run on the mutating goroutine
// and must not call back into mutating engine operations.
func (e *Engine) OnLocksChanged(fn func([]locks.LockedOutput)) {
	if fn == nil {
		return
	}
	e.stateMu.Lock()
	e.lockSubs = append(e.lockSubs, fn)
	e.stateMu.Unlock()
}

func (e *Engine) notifyLocks(current []locks.LockedOutput) {
	e.stateMu.Lock()
	subs := append(([]func([]locks.LockedOutput))(nil), e.lockSubs...)
	e.stateMu.Unlock()

	for _, fn := range subs {
		fn(current)
	}
}

// SetFeeRate persists a fee rate override for the active account. Zero
// clears the override and returns the engine to quoted rates.
func (e *Engine) SetFeeRate(rate float64) error {
	if rate < 0 || rate > config.MaxFeeRate {
		return fmt.Errorf("%w: %g sat/byte", config.ErrInvalidFeeRate, rate)
	}
	e.fees.SetOverride(rate)

	account := e.account.Load()
	settings := e.settingsOrDefault(account)
	settings.FeeRateOverride = rate
	return e.store.Settings(account).PutSettings(settings)
}

// settingsOrDefault loads the account's settings, or a zero value when
// none were saved yet.
func (e *Engine) settingsOrDefault(account uint32) *store.Settings {
	s, err := e.store.Settings(account).GetSettings()
	if err != nil {
		return &store.Settings{}
	}
	return s
}

// spendableCoins loads the spendable records in the given baskets and
// attaches each one's signing key. Records without a key in the ring
// are skipped with a warning. Caller holds the gate.
func (e *Engine) spendableCoins(account uint32, baskets ...string) ([]*tx.UTXO, error) {
	table := e.store.UTXOs(account)
	var coins []*tx.UTXO
	for _, basket := range baskets {
		records, err := table.ListSpendable(basket)
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			kp, ok := e.keyring.Lookup(r.Address)
			if !ok {
				e.logger.Warn("no signing key for spendable output",
					zap.String("outpoint", r.Outpoint().String()),
					zap.String("address", r.Address))
				continue
			}
			coins = append(coins, &tx.UTXO{
				TxID:         r.TxID,
				Vout:         r.Vout,
				Satoshis:     r.Satoshis,
				ScriptPubKey: r.LockingScript,
				Address:      r.Address,
				PrivateKey:   kp.PrivateKey,
			})
		}
	}
	return coins, nil
}

// spendingAddress returns the account's spending key and its address.
func (e *Engine) spendingAddress(account uint32) (string, *wallet.KeyPair, error) {
	kp, err := e.wallet.SpendingKey(account)
	if err != nil {
		return "", nil, err
	}
	addr, err := kp.Address(e.wallet.Network().IsMainnet())
	if err != nil {
		return "", nil, err
	}
	return addr, kp, nil
}

// chainHeight fetches the current tip height, retrying transient
// indexer failures.
func (e *Engine) chainHeight(ctx context.Context) (uint32, error) {
	var height uint32
	err := retry.Do(
		func() error {
			h, err := e.chain.ChainHeight(ctx)
			if err != nil {
				return err
			}
			height = h
			return nil
		},
		retry.Attempts(3),
		retry.Context(ctx),
	)
	if err != nil {
		return 0, fmt.Errorf("engine: chain height: %w", err)
	}
	return height, nil
}
