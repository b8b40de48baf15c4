// Package fees implements fee estimation for P2PKH transactions.
//
// Sizes use the standard P2PKH estimate: 148 bytes per input, 34 bytes
// per output, 10 bytes of framing overhead. Fees are computed at a
// sat/byte rate with exact decimal arithmetic and rounded up, with a
// floor of 1 satoshi.
package fees

import (
	"github.com/shopspring/decimal"
)

const (
	// P2PKHInputSize is the serialized size of a signed P2PKH input.
	P2PKHInputSize = 148

	// P2PKHOutputSize is the serialized size of a P2PKH output.
	P2PKHOutputSize = 34

	// P2PKHScriptSize is the bare P2PKH locking script length. Output
	// scripts longer than this add their excess through TxFeeExtra.
	P2PKHScriptSize = 25

	// TxOverhead covers version, locktime, and the in/out counts.
	TxOverhead = 10

	// ChangeThreshold is the smallest change output worth creating.
	// Change at or below this is absorbed into the fee.
	ChangeThreshold = 100

	// DefaultFeeRate is used when no quote or override is available.
	DefaultFeeRate = 0.05

	// MinFeeRate and MaxFeeRate clamp every effective rate.
	MinFeeRate = 0.01
	MaxFeeRate = 5.0
)

// TxSize returns the estimated serialized size in bytes of a transaction
// with the given number of P2PKH inputs and outputs.
func TxSize(inputs, outputs int) int {
	return inputs*P2PKHInputSize + outputs*P2PKHOutputSize + TxOverhead
}

// FeeForSize returns the fee in satoshis for a transaction of the given
// size at rate sat/byte, rounded up, never below 1 satoshi.
func FeeForSize(size int, rate float64) uint64 {
	fee := decimal.NewFromFloat(rate).
		Mul(decimal.NewFromInt(int64(size))).
		Ceil().
		IntPart()
	if fee < 1 {
		return 1
	}
	return uint64(fee)
}

// TxFee returns the fee for a transaction with the given input and
// output counts at rate sat/byte.
func TxFee(inputs, outputs int, rate float64) uint64 {
	return FeeForSize(TxSize(inputs, outputs), rate)
}

// TxFeeExtra is TxFee with extraBytes of output script beyond the
// standard P2PKH shape added to the size estimate.
func TxFeeExtra(inputs, outputs, extraBytes int, rate float64) uint64 {
	return FeeForSize(TxSize(inputs, outputs)+extraBytes, rate)
}

// MaxSend returns the largest amount sendable in a single drain
// transaction spending inputCount coins worth total satoshis, along
// with the fee. Returns (0, fee) when the fee consumes everything.
func MaxSend(inputCount int, total uint64, rate float64) (uint64, uint64) {
	fee := TxFee(inputCount, 1, rate)
	if total <= fee {
		return 0, fee
	}
	return total - fee, fee
}

// ClampRate forces rate into the [MinFeeRate, MaxFeeRate] band.
func ClampRate(rate float64) float64 {
	if rate < MinFeeRate {
		return MinFeeRate
	}
	if rate > MaxFeeRate {
		return MaxFeeRate
	}
	return rate
}
