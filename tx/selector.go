package tx

import (
	"sort"

	"github.com/bitfsorg/libwallet-go/fees"
)

// Selection is the outcome of coin selection for a payment.
type Selection struct {
	UTXOs      []*UTXO
	Total      uint64 // satoshis across selected coins
	Fee        uint64 // fee for the selected input count
	Sufficient bool
}

// Select chooses coins covering target satoshis plus the fee for a
// transaction paying recipients outputs and one change output.
//
// Coins are accumulated smallest-first until the target is covered,
// then pruned: any coin whose removal still leaves the remainder
// covering target plus the recomputed fee is dropped. The result is
// the smallest cover reachable from the greedy pass, never more coins
// than needed.
//
// When the coins cannot cover the target, Sufficient is false and
// Total/Fee describe the full set so callers can report the shortfall.
func Select(utxos []*UTXO, target uint64, recipients int, rate float64) *Selection {
	outputs := recipients + 1 // assume a change output, trimmed later if dust

	sorted := make([]*UTXO, len(utxos))
	copy(sorted, utxos)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Satoshis != sorted[j].Satoshis {
			return sorted[i].Satoshis < sorted[j].Satoshis
		}
		if sorted[i].TxID != sorted[j].TxID {
			return sorted[i].TxID < sorted[j].TxID
		}
		return sorted[i].Vout < sorted[j].Vout
	})

	// Greedy accumulation.
	var picked []*UTXO
	var total uint64
	covered := false
	for _, u := range sorted {
		picked = append(picked, u)
		total += u.Satoshis
		if total >= target+fees.TxFee(len(picked), outputs, rate) {
			covered = true
			break
		}
	}

	if !covered {
		return &Selection{
			UTXOs:      picked,
			Total:      total,
			Fee:        fees.TxFee(len(picked), outputs, rate),
			Sufficient: false,
		}
	}

	// Prune pass: drop smallest-first coins made redundant by larger
	// ones picked after them.
	for i := 0; i < len(picked); {
		remaining := total - picked[i].Satoshis
		if len(picked) > 1 && remaining >= target+fees.TxFee(len(picked)-1, outputs, rate) {
			total = remaining
			picked = append(picked[:i], picked[i+1:]...)
			continue
		}
		i++
	}

	return &Selection{
		UTXOs:      picked,
		Total:      total,
		Fee:        fees.TxFee(len(picked), outputs, rate),
		Sufficient: true,
	}
}
