package network

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
)

// WOCClient talks to a WhatsOnChain-style indexer API. It is the first
// endpoint in the broadcast cascade and the chain reader used by sync.
type WOCClient struct {
	http *resty.Client
	url  string
}

var (
	_ Broadcaster = (*WOCClient)(nil)
	_ ChainReader = (*WOCClient)(nil)
)

// NewWOCClient creates a client for the given API base URL, including
// the network segment, e.g. https://api.whatsonchain.com/v1/bsv/main.
func NewWOCClient(baseURL string) *WOCClient {
	return &WOCClient{http: newClient(), url: trimBase(baseURL)}
}

func (w *WOCClient) Name() string { return "woc" }

type wocBroadcastRequest struct {
	TxHex string `json:"txhex"`
}

// SubmitTx broadcasts raw transaction bytes. The endpoint answers with
// the txid as a JSON string on acceptance and a plain-text reason on
// rejection.
func (w *WOCClient) SubmitTx(ctx context.Context, rawTx []byte) (string, error) {
	res, err := w.http.R().
		SetContext(ctx).
		SetBody(wocBroadcastRequest{TxHex: hex.EncodeToString(rawTx)}).
		Post(w.url + "/tx/raw")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	body := strings.TrimSpace(res.String())
	if res.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("%w: %s", ErrBroadcastRejected, body)
	}

	var txid string
	if err := json.Unmarshal([]byte(body), &txid); err != nil {
		// Some deployments skip the JSON quoting.
		txid = body
	}
	return strings.TrimSpace(txid), nil
}

// wocUnspentItem mirrors one entry of GET /address/{address}/unspent.
type wocUnspentItem struct {
	Height int64  `json:"height"`
	TxPos  uint32 `json:"tx_pos"`
	TxHash string `json:"tx_hash"`
	Value  uint64 `json:"value"`
}

// ListUnspent returns the unspent outputs paying address.
func (w *WOCClient) ListUnspent(ctx context.Context, address string) ([]*UTXO, error) {
	var items []wocUnspentItem
	res, err := w.http.R().
		SetContext(ctx).
		SetResult(&items).
		Get(w.url + "/address/" + address + "/unspent")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if res.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrInvalidResponse, res.StatusCode())
	}

	utxos := make([]*UTXO, 0, len(items))
	for _, it := range items {
		utxos = append(utxos, &UTXO{
			TxID:     it.TxHash,
			Vout:     it.TxPos,
			Satoshis: it.Value,
			Height:   it.Height,
		})
	}
	return utxos, nil
}

// wocChainInfo mirrors GET /chain/info.
type wocChainInfo struct {
	Blocks uint32 `json:"blocks"`
}

// ChainHeight returns the current best-chain height.
func (w *WOCClient) ChainHeight(ctx context.Context) (uint32, error) {
	var info wocChainInfo
	res, err := w.http.R().
		SetContext(ctx).
		SetResult(&info).
		Get(w.url + "/chain/info")
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if res.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("%w: HTTP %d", ErrInvalidResponse, res.StatusCode())
	}
	if info.Blocks == 0 {
		return 0, fmt.Errorf("%w: zero chain height", ErrInvalidResponse)
	}
	return info.Blocks, nil
}
