package tx

import (
	"fmt"

	"github.com/bsv-blockchain/go-sdk/chainhash"
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"
	"github.com/bsv-blockchain/go-sdk/transaction/template/p2pkh"

	"github.com/bitfsorg/libwallet-go/fees"
)

// BuildSend builds and signs a payment where every input is controlled
// by the single key. Change above the threshold goes back to
// changeAddress; change at or below it is absorbed into the fee.
func BuildSend(utxos []*UTXO, dests []Destination, changeAddress string, key *ec.PrivateKey, rate float64) (*SignedTransaction, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: signing key", ErrNilParam)
	}
	return buildPayment(utxos, dests, changeAddress, func(*UTXO) *ec.PrivateKey {
		return key
	}, rate)
}

// BuildMultiKeySend builds and signs a payment where each UTXO carries
// its own signing key.
func BuildMultiKeySend(utxos []*UTXO, dests []Destination, changeAddress string, rate float64) (*SignedTransaction, error) {
	return buildPayment(utxos, dests, changeAddress, func(u *UTXO) *ec.PrivateKey {
		return u.PrivateKey
	}, rate)
}

// buildPayment is the shared path for BuildSend and BuildMultiKeySend.
// keyFor resolves the signing key for each input UTXO.
func buildPayment(utxos []*UTXO, dests []Destination, changeAddress string, keyFor func(*UTXO) *ec.PrivateKey, rate float64) (*SignedTransaction, error) {
	if len(utxos) == 0 {
		return nil, fmt.Errorf("%w: no inputs", ErrNilParam)
	}
	if len(dests) == 0 {
		return nil, fmt.Errorf("%w: no recipients", ErrNilParam)
	}

	var totalOut uint64
	extraBytes := 0
	for i, d := range dests {
		if d.Satoshis == 0 {
			return nil, fmt.Errorf("%w: recipient[%d] amount is zero", ErrInvalidAmount, i)
		}
		if len(d.Script) == 0 && d.Address == "" {
			return nil, fmt.Errorf("%w: recipient[%d] has no destination", ErrInvalidAddress, i)
		}
		if n := len(d.Script); n > fees.P2PKHScriptSize {
			extraBytes += n - fees.P2PKHScriptSize
		}
		totalOut += d.Satoshis
	}

	var totalIn uint64
	for _, u := range utxos {
		totalIn += u.Satoshis
	}

	// Fee assumes a change output; if change ends up absorbed the
	// transaction is smaller than estimated, never larger. Oversized
	// script destinations pay for their excess bytes.
	fee := fees.TxFeeExtra(len(utxos), len(dests)+1, extraBytes, rate)
	if totalIn < totalOut+fee {
		return nil, fmt.Errorf("%w: need %d sat, have %d sat",
			ErrInsufficientFunds, totalOut+fee, totalIn)
	}

	sdkTx := transaction.NewTransaction()

	spent := make([]Outpoint, 0, len(utxos))
	for i, u := range utxos {
		signKey := keyFor(u)
		if signKey == nil {
			return nil, fmt.Errorf("%w: utxo[%d] has no signing key", ErrSigningFailed, i)
		}
		if err := addSignedInput(sdkTx, u, signKey); err != nil {
			return nil, fmt.Errorf("tx: input[%d]: %w", i, err)
		}
		spent = append(spent, u.Outpoint())
	}

	for i, d := range dests {
		lockScript, err := destinationScript(d)
		if err != nil {
			return nil, fmt.Errorf("tx: recipient[%d]: %w", i, err)
		}
		sdkTx.AddOutput(&transaction.TransactionOutput{
			Satoshis:      d.Satoshis,
			LockingScript: lockScript,
		})
	}

	change := totalIn - totalOut - fee
	var changeVout uint32
	changeAddr := ""
	if change > fees.ChangeThreshold {
		if changeAddress == "" {
			return nil, fmt.Errorf("%w: change address required for %d sat change", ErrInvalidAddress, change)
		}
		changeScript, err := lockScriptForAddress(changeAddress)
		if err != nil {
			return nil, fmt.Errorf("tx: change: %w", err)
		}
		changeVout = uint32(len(sdkTx.Outputs))
		changeAddr = changeAddress
		sdkTx.AddOutput(&transaction.TransactionOutput{
			Satoshis:      change,
			LockingScript: changeScript,
		})
	} else {
		// Dust change is left to the miners.
		fee += change
		change = 0
	}

	if err := sdkTx.Sign(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}

	return &SignedTransaction{
		Raw:           sdkTx.Bytes(),
		TxID:          sdkTx.TxID().String(),
		Fee:           fee,
		Change:        change,
		ChangeAddress: changeAddr,
		ChangeVout:    changeVout,
		OutputCount:   len(sdkTx.Outputs),
		Spent:         spent,
	}, nil
}

// BuildConsolidation merges two or more UTXOs into a single output to
// address, each input signed by its own key. The output carries the
// full input value minus the fee.
func BuildConsolidation(utxos []*UTXO, address string, rate float64) (*SignedTransaction, error) {
	if len(utxos) < 2 {
		return nil, fmt.Errorf("%w: have %d", ErrConsolidationTooFew, len(utxos))
	}
	if address == "" {
		return nil, fmt.Errorf("%w: empty consolidation address", ErrInvalidAddress)
	}

	var totalIn uint64
	for _, u := range utxos {
		totalIn += u.Satoshis
	}

	fee := fees.TxFee(len(utxos), 1, rate)
	if totalIn <= fee {
		return nil, fmt.Errorf("%w: need more than %d sat, have %d sat",
			ErrInsufficientFunds, fee, totalIn)
	}

	sdkTx := transaction.NewTransaction()

	spent := make([]Outpoint, 0, len(utxos))
	for i, u := range utxos {
		if u.PrivateKey == nil {
			return nil, fmt.Errorf("%w: utxo[%d] has no signing key", ErrSigningFailed, i)
		}
		if err := addSignedInput(sdkTx, u, u.PrivateKey); err != nil {
			return nil, fmt.Errorf("tx: input[%d]: %w", i, err)
		}
		spent = append(spent, u.Outpoint())
	}

	lockScript, err := lockScriptForAddress(address)
	if err != nil {
		return nil, fmt.Errorf("tx: consolidation output: %w", err)
	}
	sdkTx.AddOutput(&transaction.TransactionOutput{
		Satoshis:      totalIn - fee,
		LockingScript: lockScript,
	})

	if err := sdkTx.Sign(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}

	return &SignedTransaction{
		Raw:         sdkTx.Bytes(),
		TxID:        sdkTx.TxID().String(),
		Fee:         fee,
		OutputCount: 1,
		Spent:       spent,
	}, nil
}

// BuildLock moves satoshis into lockScript, each input signed by its
// own key. Change above the threshold returns to changeAddress, as in
// a send. The locks package builds the CLTV script this pays to.
func BuildLock(utxos []*UTXO, lockScript []byte, satoshis uint64, changeAddress string, rate float64) (*SignedTransaction, error) {
	if len(lockScript) == 0 {
		return nil, fmt.Errorf("%w: empty lock script", ErrScriptBuild)
	}
	return BuildMultiKeySend(utxos, []Destination{{Script: lockScript, Satoshis: satoshis}}, changeAddress, rate)
}

// BuildUnlock spends a height-locked output back to address. The
// transaction carries nLockTime = unlockHeight so nodes reject it
// until the chain reaches that height.
func BuildUnlock(u *UTXO, unlockHeight uint32, address string, key *ec.PrivateKey, rate float64) (*SignedTransaction, error) {
	if u == nil {
		return nil, fmt.Errorf("%w: locked UTXO", ErrNilParam)
	}
	if key == nil {
		return nil, fmt.Errorf("%w: signing key", ErrNilParam)
	}
	if address == "" {
		return nil, fmt.Errorf("%w: empty unlock address", ErrInvalidAddress)
	}
	if unlockHeight == 0 {
		return nil, fmt.Errorf("%w: unlock height is zero", ErrInvalidAmount)
	}

	fee := fees.TxFee(1, 1, rate)
	if u.Satoshis <= fee {
		return nil, fmt.Errorf("%w: need more than %d sat, have %d sat",
			ErrInsufficientFunds, fee, u.Satoshis)
	}

	sdkTx := transaction.NewTransaction()
	sdkTx.LockTime = unlockHeight

	txidHash, err := chainhash.NewHashFromHex(u.TxID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid txid %q: %w", ErrScriptBuild, u.TxID, err)
	}

	unlocker, err := p2pkh.Unlock(key, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: unlocker: %w", ErrSigningFailed, err)
	}

	// Sequence must be < 0xffffffff for nLockTime to be enforced.
	input := &transaction.TransactionInput{
		SourceTXID:       txidHash,
		SourceTxOutIndex: u.Vout,
		SequenceNumber:   0xfffffffe,
	}
	input.SetSourceTxOutput(&transaction.TransactionOutput{
		Satoshis:      u.Satoshis,
		LockingScript: script.NewFromBytes(u.ScriptPubKey),
	})
	input.UnlockingScriptTemplate = unlocker
	sdkTx.AddInput(input)

	lockScript, err := lockScriptForAddress(address)
	if err != nil {
		return nil, fmt.Errorf("tx: unlock output: %w", err)
	}
	sdkTx.AddOutput(&transaction.TransactionOutput{
		Satoshis:      u.Satoshis - fee,
		LockingScript: lockScript,
	})

	if err := sdkTx.Sign(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}

	return &SignedTransaction{
		Raw:         sdkTx.Bytes(),
		TxID:        sdkTx.TxID().String(),
		Fee:         fee,
		OutputCount: 1,
		Spent:       []Outpoint{u.Outpoint()},
	}, nil
}

// addSignedInput appends one P2PKH input spending u, signed by key.
func addSignedInput(sdkTx *transaction.Transaction, u *UTXO, key *ec.PrivateKey) error {
	txidHash, err := chainhash.NewHashFromHex(u.TxID)
	if err != nil {
		return fmt.Errorf("%w: invalid txid %q: %w", ErrScriptBuild, u.TxID, err)
	}

	sourceScript, err := sourceLockingScript(u)
	if err != nil {
		return err
	}

	unlocker, err := p2pkh.Unlock(key, nil)
	if err != nil {
		return fmt.Errorf("%w: unlocker: %w", ErrSigningFailed, err)
	}

	input := &transaction.TransactionInput{
		SourceTXID:       txidHash,
		SourceTxOutIndex: u.Vout,
		SequenceNumber:   transaction.DefaultSequenceNumber,
	}
	input.SetSourceTxOutput(&transaction.TransactionOutput{
		Satoshis:      u.Satoshis,
		LockingScript: sourceScript,
	})
	input.UnlockingScriptTemplate = unlocker
	sdkTx.AddInput(input)
	return nil
}

// sourceLockingScript returns the UTXO's locking script, deriving it
// from the address when the scan did not include script bytes.
func sourceLockingScript(u *UTXO) (*script.Script, error) {
	if len(u.ScriptPubKey) > 0 {
		return script.NewFromBytes(u.ScriptPubKey), nil
	}
	if u.Address == "" {
		return nil, fmt.Errorf("%w: UTXO %s has neither script nor address", ErrScriptBuild, u.Outpoint())
	}
	return lockScriptForAddress(u.Address)
}

// destinationScript resolves a Destination to its locking script.
func destinationScript(d Destination) (*script.Script, error) {
	if len(d.Script) > 0 {
		return script.NewFromBytes(d.Script), nil
	}
	return lockScriptForAddress(d.Address)
}

// lockScriptForAddress builds the P2PKH locking script for an address.
func lockScriptForAddress(address string) (*script.Script, error) {
	addr, err := script.NewAddressFromString(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidAddress, address, err)
	}
	lockScript, err := p2pkh.Lock(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: P2PKH lock: %w", ErrScriptBuild, err)
	}
	return lockScript, nil
}

// LockingScriptForAddress exposes P2PKH script construction for callers
// that persist scripts alongside UTXOs.
func LockingScriptForAddress(address string) ([]byte, error) {
	s, err := lockScriptForAddress(address)
	if err != nil {
		return nil, err
	}
	return []byte(*s), nil
}
