package network

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testRawTx   = []byte{0x01, 0x00, 0x00, 0x00}
	testLocalID = strings.Repeat("aa", 32)
)

func accepting(name, txid string, calls *int) *MockBroadcaster {
	return &MockBroadcaster{
		NameVal: name,
		SubmitTxFn: func(ctx context.Context, raw []byte) (string, error) {
			*calls++
			return txid, nil
		},
	}
}

func rejecting(name, reason string, calls *int) *MockBroadcaster {
	return &MockBroadcaster{
		NameVal: name,
		SubmitTxFn: func(ctx context.Context, raw []byte) (string, error) {
			*calls++
			return "", fmt.Errorf("%w: %s", ErrBroadcastRejected, reason)
		},
	}
}

// --- Cascade tests ---

func TestCascade_FirstEndpointAccepts(t *testing.T) {
	var first, second int
	c := NewCascade(nil,
		accepting("a", testLocalID, &first),
		accepting("b", testLocalID, &second),
	)

	txid, err := c.Broadcast(context.Background(), testRawTx, testLocalID)
	require.NoError(t, err)
	assert.Equal(t, testLocalID, txid)
	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second)
}

func TestCascade_LocalTxidPrecedence(t *testing.T) {
	divergent := strings.Repeat("bb", 32)
	var calls int
	c := NewCascade(nil, accepting("a", divergent, &calls))

	txid, err := c.Broadcast(context.Background(), testRawTx, testLocalID)
	require.NoError(t, err)
	assert.Equal(t, testLocalID, txid, "endpoint id must never override the local id")
}

func TestCascade_MalformedEndpointTxidFallsBackToLocal(t *testing.T) {
	var calls int
	c := NewCascade(nil, accepting("a", "not-a-txid", &calls))

	txid, err := c.Broadcast(context.Background(), testRawTx, testLocalID)
	require.NoError(t, err)
	assert.Equal(t, testLocalID, txid)
}

func TestCascade_EndpointTxidUsedWhenNoLocal(t *testing.T) {
	reported := strings.Repeat("cc", 32)
	var calls int
	c := NewCascade(nil, accepting("a", reported, &calls))

	txid, err := c.Broadcast(context.Background(), testRawTx, "")
	require.NoError(t, err)
	assert.Equal(t, reported, txid)
}

func TestCascade_MalformedTxidNoLocalCascades(t *testing.T) {
	good := strings.Repeat("cc", 32)
	var first, second int
	c := NewCascade(nil,
		accepting("a", "garbage", &first),
		accepting("b", good, &second),
	)

	txid, err := c.Broadcast(context.Background(), testRawTx, "")
	require.NoError(t, err)
	assert.Equal(t, good, txid)
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
}

func TestCascade_AlreadyKnownReturnsLocalTxid(t *testing.T) {
	// Every endpoint rejects with the already-known code; the first
	// classification resolves to the local id and the rest are never
	// tried.
	var first, second, third int
	c := NewCascade(nil,
		rejecting("a", "txn-already-known", &first),
		rejecting("b", "txn-already-known", &second),
		rejecting("c", "txn-already-known", &third),
	)

	txid, err := c.Broadcast(context.Background(), testRawTx, testLocalID)
	require.NoError(t, err)
	assert.Equal(t, testLocalID, txid)
	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second)
	assert.Equal(t, 0, third)
}

func TestCascade_CascadesPastFailures(t *testing.T) {
	var first, second int
	c := NewCascade(nil,
		rejecting("a", "insufficient fee", &first),
		accepting("b", testLocalID, &second),
	)

	txid, err := c.Broadcast(context.Background(), testRawTx, testLocalID)
	require.NoError(t, err)
	assert.Equal(t, testLocalID, txid)
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
}

func TestCascade_ExhaustedReturnsSanitizedError(t *testing.T) {
	var first, second int
	c := NewCascade(nil,
		rejecting("endpoint-alpha", "secret upstream payload", &first),
		rejecting("endpoint-beta", "other upstream detail", &second),
	)

	_, err := c.Broadcast(context.Background(), testRawTx, testLocalID)
	require.Error(t, err)

	var berr *BroadcastError
	require.True(t, errors.As(err, &berr))
	assert.Equal(t, "the network rejected the transaction", berr.Reason)
	assert.NotContains(t, err.Error(), "endpoint-alpha")
	assert.NotContains(t, err.Error(), "endpoint-beta")
	assert.NotContains(t, err.Error(), "secret upstream payload")
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
}

func TestCascade_UnreachableEndpointsError(t *testing.T) {
	var calls int
	c := NewCascade(nil, &MockBroadcaster{
		NameVal: "a",
		SubmitTxFn: func(ctx context.Context, raw []byte) (string, error) {
			calls++
			return "", fmt.Errorf("%w: dial tcp: refused", ErrConnectionFailed)
		},
	})

	_, err := c.Broadcast(context.Background(), testRawTx, testLocalID)
	var berr *BroadcastError
	require.True(t, errors.As(err, &berr))
	assert.Equal(t, "no broadcast endpoint was reachable", berr.Reason)
}

func TestCascade_RescanFindsAlreadyKnownWithoutLocalID(t *testing.T) {
	// With no local id an already-known rejection cannot resolve to a
	// txid mid-loop; the rescan surfaces it as the failure reason.
	var first, second int
	c := NewCascade(nil,
		rejecting("a", "txn-already-known", &first),
		rejecting("b", "insufficient fee", &second),
	)

	_, err := c.Broadcast(context.Background(), testRawTx, "")
	var berr *BroadcastError
	require.True(t, errors.As(err, &berr))
	assert.Equal(t, "transaction already known to the network", berr.Reason)
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second, "cascade continues when the signal is not actionable")
}

func TestCascade_StopsAfterContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var first, second int
	c := NewCascade(nil,
		&MockBroadcaster{
			NameVal: "a",
			SubmitTxFn: func(ctx context.Context, raw []byte) (string, error) {
				first++
				cancel()
				return "", fmt.Errorf("%w: interrupted", ErrConnectionFailed)
			},
		},
		accepting("b", testLocalID, &second),
	)

	_, err := c.Broadcast(ctx, testRawTx, testLocalID)
	require.Error(t, err)
	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second)
}

func TestCascade_NoEndpoints(t *testing.T) {
	c := NewCascade(nil)

	_, err := c.Broadcast(context.Background(), testRawTx, testLocalID)
	var berr *BroadcastError
	require.True(t, errors.As(err, &berr))
}

func TestBroadcastError_Message(t *testing.T) {
	assert.Equal(t, "network: broadcast failed", (&BroadcastError{}).Error())
	assert.Equal(t, "network: broadcast failed: x", (&BroadcastError{Reason: "x"}).Error())
}
