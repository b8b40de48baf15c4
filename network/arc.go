package network

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

// ArcEncoding selects the request body format for an ARC submission.
type ArcEncoding int

const (
	// ArcJSON posts {"rawTx": "<hex>"} as application/json.
	ArcJSON ArcEncoding = iota
	// ArcRaw posts the raw transaction bytes as application/octet-stream.
	ArcRaw
)

// ArcClient submits transactions to an ARC transaction processor. The
// cascade runs two instances with different encodings back to back;
// deployments exist that reject one body format but accept the other.
type ArcClient struct {
	http     *resty.Client
	url      string
	token    string
	encoding ArcEncoding
}

var _ Broadcaster = (*ArcClient)(nil)

// NewArcClient creates a client for the given ARC base URL. token is
// sent as a bearer token when non-empty.
func NewArcClient(baseURL, token string, encoding ArcEncoding) *ArcClient {
	return &ArcClient{
		http:     newClient(),
		url:      trimBase(baseURL),
		token:    token,
		encoding: encoding,
	}
}

func (a *ArcClient) Name() string {
	if a.encoding == ArcRaw {
		return "arc-raw"
	}
	return "arc-json"
}

type arcBroadcastRequest struct {
	RawTx string `json:"rawTx"`
}

// arcTxResponse is the acceptance shape of POST /v1/tx.
type arcTxResponse struct {
	TxID     string `json:"txid"`
	TxStatus string `json:"txStatus"`
}

// arcProblem is the problem-detail rejection body.
type arcProblem struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail"`
	ExtraInfo string `json:"extraInfo"`
	TxID      string `json:"txid"`
}

// reason collects the populated problem fields so the already-known
// classifier sees every wording the endpoint produced.
func (p *arcProblem) reason() string {
	parts := make([]string, 0, 2)
	if p.Detail != "" {
		parts = append(parts, p.Detail)
	}
	if p.ExtraInfo != "" {
		parts = append(parts, p.ExtraInfo)
	}
	if len(parts) == 0 && p.Title != "" {
		parts = append(parts, p.Title)
	}
	if len(parts) == 0 {
		return "rejected without detail"
	}
	return strings.Join(parts, "; ")
}

// SubmitTx submits the transaction in the client's configured encoding.
func (a *ArcClient) SubmitTx(ctx context.Context, rawTx []byte) (string, error) {
	var (
		result  arcTxResponse
		problem arcProblem
	)

	req := a.http.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&problem)
	if a.token != "" {
		req.SetAuthToken(a.token)
	}
	if a.encoding == ArcRaw {
		req.SetHeader("Content-Type", "application/octet-stream").SetBody(rawTx)
	} else {
		req.SetBody(arcBroadcastRequest{RawTx: hex.EncodeToString(rawTx)})
	}

	res, err := req.Post(a.url + "/v1/tx")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if res.IsError() {
		return "", fmt.Errorf("%w: %s", ErrBroadcastRejected, problem.reason())
	}
	if result.TxID == "" {
		return "", fmt.Errorf("%w: missing txid", ErrInvalidResponse)
	}
	return result.TxID, nil
}
