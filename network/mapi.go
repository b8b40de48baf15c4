package network

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

// MapiClient talks to a legacy Merchant API relay. It is the cascade's
// last resort and doubles as the fee-quote source for the estimator.
type MapiClient struct {
	http *resty.Client
	url  string
}

var _ Broadcaster = (*MapiClient)(nil)

// NewMapiClient creates a client for the given mAPI base URL.
func NewMapiClient(baseURL string) *MapiClient {
	return &MapiClient{http: newClient(), url: trimBase(baseURL)}
}

func (m *MapiClient) Name() string { return "mapi" }

// mapiEnvelope is the signed wrapper every mAPI response uses. Payload
// arrives either as a JSON-encoded string or inlined as an object,
// depending on the deployment.
type mapiEnvelope struct {
	Payload json.RawMessage `json:"payload"`
}

func decodeMapiPayload(body []byte, out interface{}) error {
	var env mapiEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("envelope: %w", err)
	}
	if len(env.Payload) == 0 {
		return fmt.Errorf("empty payload")
	}

	raw := []byte(env.Payload)
	var inner string
	if err := json.Unmarshal(raw, &inner); err == nil {
		raw = []byte(inner)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("payload: %w", err)
	}
	return nil
}

type mapiBroadcastRequest struct {
	RawTx string `json:"rawtx"`
}

// mapiTxPayload is the inner payload of POST /mapi/tx.
type mapiTxPayload struct {
	TxID              string `json:"txid"`
	ReturnResult      string `json:"returnResult"`
	ResultDescription string `json:"resultDescription"`
}

// SubmitTx submits the transaction through the relay. Rejections come
// back as returnResult "failure" with the node wording in
// resultDescription, inside a 200 response.
func (m *MapiClient) SubmitTx(ctx context.Context, rawTx []byte) (string, error) {
	res, err := m.http.R().
		SetContext(ctx).
		SetBody(mapiBroadcastRequest{RawTx: hex.EncodeToString(rawTx)}).
		Post(m.url + "/mapi/tx")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if res.IsError() {
		return "", fmt.Errorf("%w: HTTP %d", ErrBroadcastRejected, res.StatusCode())
	}

	var payload mapiTxPayload
	if err := decodeMapiPayload(res.Body(), &payload); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	if !strings.EqualFold(payload.ReturnResult, "success") {
		return "", fmt.Errorf("%w: %s", ErrBroadcastRejected, payload.ResultDescription)
	}
	return payload.TxID, nil
}

// mapiFeePayload is the inner payload of GET /mapi/feeQuote.
type mapiFeePayload struct {
	Fees []struct {
		FeeType   string `json:"feeType"`
		MiningFee struct {
			Satoshis int64 `json:"satoshis"`
			Bytes    int64 `json:"bytes"`
		} `json:"miningFee"`
	} `json:"fees"`
}

// FeeRate fetches the current fee quote and derives a satoshis/byte
// rate from the standard mining fee. It satisfies fees.RateSource.
func (m *MapiClient) FeeRate(ctx context.Context) (float64, error) {
	res, err := m.http.R().
		SetContext(ctx).
		Get(m.url + "/mapi/feeQuote")
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if res.IsError() {
		return 0, fmt.Errorf("%w: HTTP %d", ErrInvalidResponse, res.StatusCode())
	}

	var payload mapiFeePayload
	if err := decodeMapiPayload(res.Body(), &payload); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	for _, f := range payload.Fees {
		if !strings.EqualFold(f.FeeType, "standard") {
			continue
		}
		if f.MiningFee.Bytes <= 0 || f.MiningFee.Satoshis < 0 {
			break
		}
		return float64(f.MiningFee.Satoshis) / float64(f.MiningFee.Bytes), nil
	}
	return 0, fmt.Errorf("%w: no standard fee quote", ErrInvalidResponse)
}
