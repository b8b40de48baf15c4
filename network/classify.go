package network

import (
	"encoding/hex"
	"strings"
)

// alreadyKnownPatterns is the observed set of endpoint wordings that
// mean "this transaction was accepted previously". The match is a
// case-insensitive substring, so numeric prefixes and surrounding
// punctuation do not defeat it. Extend only with wording seen in a real
// rejection; a wrong entry here either duplicates broadcasts or
// reports a success as failure.
var alreadyKnownPatterns = []string{
	"txn-already-known",
	"already in the mempool",
	"already in mempool",
	"txn-mempool-conflict",
	"transaction already known",
}

// IsAlreadyKnown reports whether an endpoint error message signals that
// the transaction was previously accepted by the network.
func IsAlreadyKnown(msg string) bool {
	msg = strings.ToLower(msg)
	for _, p := range alreadyKnownPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsWellFormedTxID reports whether s is a 64-character hex id.
func IsWellFormedTxID(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
