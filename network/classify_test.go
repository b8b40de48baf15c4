package network

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// --- Classification tests ---

func TestIsAlreadyKnown_KnownWordings(t *testing.T) {
	cases := []string{
		"txn-already-known",
		"257: txn-already-known",
		"Transaction already in the mempool",
		"already in mempool",
		"txn-mempool-conflict",
		"transaction already known",
		"network: broadcast rejected: unexpected response code 500: 257: txn-already-known",
		"TXN-ALREADY-KNOWN",
		"Transaction Already Known",
	}

	for _, msg := range cases {
		assert.True(t, IsAlreadyKnown(msg), "should classify %q", msg)
	}
}

func TestIsAlreadyKnown_OtherFailures(t *testing.T) {
	cases := []string{
		"",
		"insufficient fee",
		"missing inputs",
		"dust",
		"network: connection failed: dial tcp: refused",
		"bad-txns-inputs-spent",
		"known", // bare substring of a pattern must not match
	}

	for _, msg := range cases {
		assert.False(t, IsAlreadyKnown(msg), "should not classify %q", msg)
	}
}

func TestIsWellFormedTxID(t *testing.T) {
	valid := strings.Repeat("ab", 32)
	assert.True(t, IsWellFormedTxID(valid))
	assert.True(t, IsWellFormedTxID(strings.ToUpper(valid)))

	assert.False(t, IsWellFormedTxID(""))
	assert.False(t, IsWellFormedTxID(valid[:63]))
	assert.False(t, IsWellFormedTxID(valid+"ab"))
	assert.False(t, IsWellFormedTxID(strings.Repeat("zz", 32)))
}
