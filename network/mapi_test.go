package network

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapiHandler(t *testing.T, path string, payload string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, path, r.URL.Path)

		// The payload rides inside the envelope as a JSON-encoded
		// string, the shape real deployments produce.
		env, err := json.Marshal(map[string]string{
			"payload":  payload,
			"encoding": "UTF-8",
			"mimetype": "application/json",
		})
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(env)
	}
}

// --- mAPI client tests ---

func TestMapiClient_SubmitTx(t *testing.T) {
	txid := strings.Repeat("ab", 32)
	payload := `{"apiVersion":"1.5.0","txid":"` + txid + `","returnResult":"success","resultDescription":""}`

	srv := httptest.NewServer(mapiHandler(t, "/mapi/tx", payload))
	defer srv.Close()

	got, err := NewMapiClient(srv.URL).SubmitTx(context.Background(), []byte{0x01})
	require.NoError(t, err)
	assert.Equal(t, txid, got)
}

func TestMapiClient_SubmitTxObjectPayload(t *testing.T) {
	// Some deployments inline the payload object instead of string
	// encoding it.
	txid := strings.Repeat("cd", 32)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"payload": {"txid": "` + txid + `", "returnResult": "success"}}`))
	}))
	defer srv.Close()

	got, err := NewMapiClient(srv.URL).SubmitTx(context.Background(), []byte{0x01})
	require.NoError(t, err)
	assert.Equal(t, txid, got)
}

func TestMapiClient_SubmitTxFailureResult(t *testing.T) {
	payload := `{"txid":"","returnResult":"failure","resultDescription":"257: txn-already-known"}`

	srv := httptest.NewServer(mapiHandler(t, "/mapi/tx", payload))
	defer srv.Close()

	_, err := NewMapiClient(srv.URL).SubmitTx(context.Background(), []byte{0x01})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBroadcastRejected))
	assert.True(t, IsAlreadyKnown(err.Error()), "node wording must reach the classifier")
}

func TestMapiClient_SubmitTxMalformedEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"unexpected": true}`))
	}))
	defer srv.Close()

	_, err := NewMapiClient(srv.URL).SubmitTx(context.Background(), []byte{0x01})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidResponse))
}

func TestMapiClient_FeeRate(t *testing.T) {
	payload := `{"fees":[
		{"feeType":"data","miningFee":{"satoshis":100,"bytes":1000}},
		{"feeType":"standard","miningFee":{"satoshis":500,"bytes":1000}}
	]}`

	srv := httptest.NewServer(mapiHandler(t, "/mapi/feeQuote", payload))
	defer srv.Close()

	rate, err := NewMapiClient(srv.URL).FeeRate(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.5, rate, 1e-9)
}

func TestMapiClient_FeeRateNoStandardEntry(t *testing.T) {
	payload := `{"fees":[{"feeType":"data","miningFee":{"satoshis":100,"bytes":1000}}]}`

	srv := httptest.NewServer(mapiHandler(t, "/mapi/feeQuote", payload))
	defer srv.Close()

	_, err := NewMapiClient(srv.URL).FeeRate(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidResponse))
}

func TestMapiClient_FeeRateZeroBytesRejected(t *testing.T) {
	payload := `{"fees":[{"feeType":"standard","miningFee":{"satoshis":500,"bytes":0}}]}`

	srv := httptest.NewServer(mapiHandler(t, "/mapi/feeQuote", payload))
	defer srv.Close()

	_, err := NewMapiClient(srv.URL).FeeRate(context.Background())
	require.Error(t, err)
}

func TestMapiClient_FeeRateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewMapiClient(srv.URL).FeeRate(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidResponse))
}
