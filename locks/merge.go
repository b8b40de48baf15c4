package locks

import "sort"

// Merge reconciles the three views of locked coins into one list keyed
// by outpoint:
//
//   - scanned is what the chain indexer currently reports and is
//     authoritative for UnlockBlock and Satoshis.
//   - persisted is the locally stored state and is authoritative for
//     wallet-only fields (LockBlockAtCreation, OrdinalOrigin).
//   - optimistic covers locks created locally that no indexer has seen
//     yet. They are kept until a scan or the store confirms them.
//
// Every entry's spendability is recomputed against height before the
// result is returned. Merging the output of Merge back in with the same
// inputs yields the same result.
func Merge(scanned, persisted, optimistic []LockedOutput, height uint32) []LockedOutput {
	merged := make(map[string]*LockedOutput)

	// Optimistic entries carry the least authority, so they go in
	// first and anything else overwrites them.
	for _, lo := range optimistic {
		cp := lo
		merged[lo.Key()] = &cp
	}

	for _, lo := range scanned {
		cur, ok := merged[lo.Key()]
		if !ok {
			cp := lo
			merged[lo.Key()] = &cp
			continue
		}
		cur.UnlockBlock = lo.UnlockBlock
		cur.Satoshis = lo.Satoshis
		if cur.LockBlockAtCreation == 0 {
			cur.LockBlockAtCreation = lo.LockBlockAtCreation
		}
		if cur.OrdinalOrigin == "" {
			cur.OrdinalOrigin = lo.OrdinalOrigin
		}
	}

	for _, lo := range persisted {
		cur, ok := merged[lo.Key()]
		if !ok {
			cp := lo
			merged[lo.Key()] = &cp
			continue
		}
		if lo.LockBlockAtCreation != 0 {
			cur.LockBlockAtCreation = lo.LockBlockAtCreation
		}
		if lo.OrdinalOrigin != "" {
			cur.OrdinalOrigin = lo.OrdinalOrigin
		}
		if cur.UnlockBlock == 0 {
			cur.UnlockBlock = lo.UnlockBlock
		}
		if cur.Satoshis == 0 {
			cur.Satoshis = lo.Satoshis
		}
	}

	out := make([]LockedOutput, 0, len(merged))
	for _, lo := range merged {
		lo.Recompute(height)
		out = append(out, *lo)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TxID != out[j].TxID {
			return out[i].TxID < out[j].TxID
		}
		return out[i].Vout < out[j].Vout
	})

	return out
}
