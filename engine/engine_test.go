package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bitfsorg/libwallet-go/config"
	"github.com/bitfsorg/libwallet-go/fees"
	"github.com/bitfsorg/libwallet-go/network"
	"github.com/bitfsorg/libwallet-go/store"
	"github.com/bitfsorg/libwallet-go/tx"
	"github.com/bitfsorg/libwallet-go/wallet"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

// testSeed returns the deterministic seed every engine test builds on.
func testSeed(t *testing.T) []byte {
	t.Helper()
	seed, err := wallet.SeedFromMnemonic(testMnemonic, "")
	require.NoError(t, err)
	return seed
}

// testTxid builds a valid 32-byte txid in hex from a single seed byte.
func testTxid(seed byte) string {
	return fmt.Sprintf("%064x", seed)
}

// okBroadcaster accepts every submission.
func okBroadcaster() *network.MockBroadcaster {
	return &network.MockBroadcaster{
		NameVal: "mock",
		SubmitTxFn: func(ctx context.Context, rawTx []byte) (string, error) {
			return "endpoint-reported", nil
		},
	}
}

// silentChain reports a fixed tip height and no coins anywhere. Tests
// reassign its function fields to shape the scan.
func silentChain(height uint32) *network.MockChainReader {
	return &network.MockChainReader{
		ChainHeightFn: func(ctx context.Context) (uint32, error) { return height, nil },
		ListUnspentFn: func(ctx context.Context, address string) ([]*network.UTXO, error) {
			return nil, nil
		},
	}
}

// testEngine builds an Engine on a temp bbolt store with the given
// network doubles in place of live endpoints.
func testEngine(t *testing.T, chain network.ChainReader, endpoints ...network.Broadcaster) *Engine {
	t.Helper()

	netCfg, err := wallet.GetNetwork("mainnet")
	require.NoError(t, err)
	w, err := wallet.NewWallet(testSeed(t), netCfg)
	require.NoError(t, err)

	st, err := store.OpenBoltStore(filepath.Join(t.TempDir(), "wallet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	e := &Engine{
		wallet:  w,
		store:   st,
		chain:   chain,
		cascade: network.NewCascade(zap.NewNop(), endpoints...),
		fees:    fees.NewEstimator(nil),
		logger:  zap.NewNop(),
	}
	ring, err := e.loadKeyring(0)
	require.NoError(t, err)
	e.keyring = ring
	return e
}

// fundUTXO inserts a spendable coin paying the account's spending
// address.
func fundUTXO(t *testing.T, e *Engine, seed byte, satoshis uint64) *store.UTXORecord {
	t.Helper()

	addr, _, err := e.spendingAddress(0)
	require.NoError(t, err)
	script, err := tx.LockingScriptForAddress(addr)
	require.NoError(t, err)

	rec := &store.UTXORecord{
		TxID:          testTxid(seed),
		Vout:          0,
		Satoshis:      satoshis,
		LockingScript: script,
		Address:       addr,
		Basket:        store.BasketDefault,
		Spendable:     true,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, e.store.UTXOs(0).PutUTXO(rec))
	return rec
}

// otherAddress derives an address outside the loaded key set, usable
// as a payment destination.
func otherAddress(t *testing.T, e *Engine, index uint32) string {
	t.Helper()
	kp, err := e.wallet.DerivedKey(0, index)
	require.NoError(t, err)
	addr, err := kp.Address(true)
	require.NoError(t, err)
	return addr
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func TestNew_WiresEngine(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	e, err := New(cfg, testSeed(t), nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, e.Close()) }()

	assert.Equal(t, uint32(0), e.Account())

	addr, err := e.ReceiveAddress()
	require.NoError(t, err)
	assert.NotEmpty(t, addr)

	balance, err := e.Balance()
	require.NoError(t, err)
	assert.Zero(t, balance)

	history, err := e.History()
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestNew_RejectsBadConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = ""
	_, err := New(cfg, testSeed(t), nil)
	assert.ErrorIs(t, err, config.ErrEmptyDataDir)
}

func TestNew_ConfigFeeRateWins(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.FeeRate = 0.2

	e, err := New(cfg, testSeed(t), nil)
	require.NoError(t, err)
	defer e.Close()

	assert.InDelta(t, 0.2, e.fees.Rate(context.Background()), 1e-9)
}

func TestNew_RestoresPersistedFeeOverride(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	e, err := New(cfg, testSeed(t), nil)
	require.NoError(t, err)
	require.NoError(t, e.SetFeeRate(1.5))
	require.NoError(t, e.Close())

	reopened, err := New(cfg, testSeed(t), nil)
	require.NoError(t, err)
	defer reopened.Close()

	assert.InDelta(t, 1.5, reopened.fees.Rate(context.Background()), 1e-9)
}

// ---------------------------------------------------------------------------
// Accounts
// ---------------------------------------------------------------------------

func TestSetAccount_IsolatesState(t *testing.T) {
	e := testEngine(t, silentChain(800000))
	fundUTXO(t, e, 1, 5000)

	balance, err := e.Balance()
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), balance)

	require.NoError(t, e.SetAccount(1))
	balance, err = e.Balance()
	require.NoError(t, err)
	assert.Zero(t, balance, "accounts must not see each other's coins")

	require.NoError(t, e.SetAccount(0))
	balance, err = e.Balance()
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), balance)
}

func TestSetAccount_BumpsVersion(t *testing.T) {
	e := testEngine(t, silentChain(800000))
	before := e.version.Load()
	require.NoError(t, e.SetAccount(3))
	assert.Equal(t, before+1, e.version.Load())
}

func TestNewAddress_PersistsDerivationCounter(t *testing.T) {
	e := testEngine(t, silentChain(800000))

	a1, err := e.NewAddress()
	require.NoError(t, err)
	a2, err := e.NewAddress()
	require.NoError(t, err)
	assert.NotEqual(t, a1, a2)

	_, ok := e.keyring.Lookup(a1)
	assert.True(t, ok, "new address must be signable immediately")

	s, err := e.store.Settings(0).GetSettings()
	require.NoError(t, err)
	assert.Equal(t, uint32(3), s.NextDerivedIndex)

	// A fresh keyring load picks the handed-out addresses back up.
	ring, err := e.loadKeyring(0)
	require.NoError(t, err)
	_, ok = ring.Lookup(a1)
	assert.True(t, ok)
	_, ok = ring.Lookup(a2)
	assert.True(t, ok)
}

// ---------------------------------------------------------------------------
// Fee override
// ---------------------------------------------------------------------------

func TestSetFeeRate(t *testing.T) {
	e := testEngine(t, silentChain(800000))
	ctx := context.Background()

	require.NoError(t, e.SetFeeRate(0.2))
	assert.InDelta(t, 0.2, e.fees.Rate(ctx), 1e-9)

	s, err := e.store.Settings(0).GetSettings()
	require.NoError(t, err)
	assert.InDelta(t, 0.2, s.FeeRateOverride, 1e-9)

	// Zero clears the override; with no rate source the default wins.
	require.NoError(t, e.SetFeeRate(0))
	assert.InDelta(t, fees.DefaultFeeRate, e.fees.Rate(ctx), 1e-9)
}

func TestSetFeeRate_RejectsOutOfRange(t *testing.T) {
	e := testEngine(t, silentChain(800000))
	assert.ErrorIs(t, e.SetFeeRate(9), config.ErrInvalidFeeRate)
	assert.ErrorIs(t, e.SetFeeRate(-1), config.ErrInvalidFeeRate)
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

func TestHistory_NewestFirst(t *testing.T) {
	e := testEngine(t, silentChain(800000))
	records := e.store.TxRecords(0)

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, offset := range []time.Duration{0, 2 * time.Hour, time.Hour} {
		require.NoError(t, records.PutTxRecord(&store.TxRecord{
			TxID:      testTxid(byte(i + 1)),
			Status:    store.TxStatusBroadcast,
			CreatedAt: base.Add(offset),
		}))
	}

	history, err := e.History()
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, testTxid(2), history[0].TxID)
	assert.Equal(t, testTxid(3), history[1].TxID)
	assert.Equal(t, testTxid(1), history[2].TxID)
}

func TestBalance_ExcludesTimelocked(t *testing.T) {
	e := testEngine(t, silentChain(800000))
	fundUTXO(t, e, 1, 5000)

	addr, _, err := e.spendingAddress(0)
	require.NoError(t, err)
	require.NoError(t, e.store.UTXOs(0).PutUTXO(&store.UTXORecord{
		TxID:      testTxid(2),
		Vout:      0,
		Satoshis:  3000,
		Address:   addr,
		Basket:    store.BasketTimelocked,
		Spendable: true,
		CreatedAt: time.Now().UTC(),
	}))

	balance, err := e.Balance()
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), balance, "timelocked value stays out of the spendable balance")
}
