package paymail

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const requestTimeout = 30 * time.Second

// Capability keys in the .well-known/bsvalias document. Basic
// addressing uses a literal name; the P2P destination capability is
// keyed by its BRFC id.
const (
	capPaymentDestination = "paymentDestination"
	capP2PDestination     = "2a40af698840"
)

// Client resolves payment destinations for paymail handles.
type Client struct {
	http     *resty.Client
	resolver DNSResolver
	scheme   string
}

// NewClient creates a paymail client. A nil resolver uses the plain
// net-package resolver; pass a DNSSECResolver to require validated SRV
// answers.
func NewClient(resolver DNSResolver) *Client {
	if resolver == nil {
		resolver = DefaultDNSResolver
	}
	return &Client{
		http:     resty.New().SetTimeout(requestTimeout),
		resolver: resolver,
		scheme:   "https",
	}
}

// Capabilities is the subset of the capability document the wallet
// consumes: the two payment destination URL templates.
type Capabilities struct {
	BsvAlias           string
	PaymentDestination string
	P2PDestination     string
}

type wellKnownResponse struct {
	BsvAlias     string                 `json:"bsvalias"`
	Capabilities map[string]interface{} `json:"capabilities"`
}

// Capabilities fetches .well-known/bsvalias for a domain, going through
// SRV discovery for the host.
func (c *Client) Capabilities(ctx context.Context, domain string) (*Capabilities, error) {
	if domain == "" {
		return nil, fmt.Errorf("%w: empty domain", ErrCapabilityDiscovery)
	}

	host := ResolveHost(domain, c.resolver)

	var wk wellKnownResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetResult(&wk).
		Get(c.scheme + "://" + host + "/.well-known/bsvalias")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapabilityDiscovery, err)
	}
	if res.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrCapabilityDiscovery, res.StatusCode())
	}

	caps := &Capabilities{BsvAlias: wk.BsvAlias}
	for key, val := range wk.Capabilities {
		urlStr, ok := val.(string)
		if !ok {
			continue
		}
		switch key {
		case capPaymentDestination:
			caps.PaymentDestination = urlStr
		case capP2PDestination:
			caps.P2PDestination = urlStr
		}
	}
	return caps, nil
}

// PaymentOutput is one output the receiver asks the sender to fund.
type PaymentOutput struct {
	Script   string `json:"script"`
	Satoshis uint64 `json:"satoshis"`
}

// ScriptBytes decodes the hex locking script.
func (o PaymentOutput) ScriptBytes() ([]byte, error) {
	b, err := hex.DecodeString(o.Script)
	if err != nil {
		return nil, fmt.Errorf("%w: script hex: %w", ErrBadDestination, err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty script", ErrBadDestination)
	}
	return b, nil
}

type p2pDestinationRequest struct {
	Satoshis uint64 `json:"satoshis"`
}

type p2pDestinationResponse struct {
	Outputs   []PaymentOutput `json:"outputs"`
	Reference string          `json:"reference"`
}

type basicDestinationRequest struct {
	SenderName string `json:"senderName"`
	Dt         string `json:"dt"`
	Amount     uint64 `json:"amount"`
	Purpose    string `json:"purpose"`
}

type basicDestinationResponse struct {
	Output string `json:"output"`
}

// GetPaymentDestination resolves the handle to the outputs a payment of
// the given amount should fund. The P2P capability is preferred (the
// receiver chooses the split); basic addressing falls back to a single
// output carrying the full amount.
func (c *Client) GetPaymentDestination(ctx context.Context, h Handle, satoshis uint64) ([]PaymentOutput, error) {
	if satoshis == 0 {
		return nil, fmt.Errorf("%w: zero amount", ErrBadDestination)
	}

	caps, err := c.Capabilities(ctx, h.Domain)
	if err != nil {
		return nil, err
	}

	if caps.P2PDestination != "" {
		return c.p2pDestination(ctx, expandTemplate(caps.P2PDestination, h), satoshis)
	}
	if caps.PaymentDestination != "" {
		return c.basicDestination(ctx, expandTemplate(caps.PaymentDestination, h), satoshis)
	}
	return nil, fmt.Errorf("%w: %s", ErrNoPaymentCapability, h.Domain)
}

func (c *Client) p2pDestination(ctx context.Context, destURL string, satoshis uint64) ([]PaymentOutput, error) {
	var dest p2pDestinationResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(p2pDestinationRequest{Satoshis: satoshis}).
		SetResult(&dest).
		Post(destURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadDestination, err)
	}
	if res.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrBadDestination, res.StatusCode())
	}
	if len(dest.Outputs) == 0 {
		return nil, fmt.Errorf("%w: no outputs", ErrBadDestination)
	}

	var sum uint64
	for _, out := range dest.Outputs {
		if _, err := out.ScriptBytes(); err != nil {
			return nil, err
		}
		sum += out.Satoshis
	}
	// The receiver allocates exactly what was asked for; anything else
	// would change the amount the user approved.
	if sum != satoshis {
		return nil, fmt.Errorf("%w: outputs sum to %d, requested %d", ErrBadDestination, sum, satoshis)
	}
	return dest.Outputs, nil
}

func (c *Client) basicDestination(ctx context.Context, destURL string, satoshis uint64) ([]PaymentOutput, error) {
	var dest basicDestinationResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(basicDestinationRequest{
			SenderName: "libwallet",
			Dt:         time.Now().UTC().Format(time.RFC3339),
			Amount:     satoshis,
			Purpose:    "payment",
		}).
		SetResult(&dest).
		Post(destURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadDestination, err)
	}
	if res.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrBadDestination, res.StatusCode())
	}
	if dest.Output == "" {
		return nil, fmt.Errorf("%w: empty output script", ErrBadDestination)
	}

	out := PaymentOutput{Script: dest.Output, Satoshis: satoshis}
	if _, err := out.ScriptBytes(); err != nil {
		return nil, err
	}
	return []PaymentOutput{out}, nil
}

// expandTemplate substitutes the {alias} and {domain.tld} placeholders,
// escaping both to keep a hostile capability document from steering the
// path.
func expandTemplate(template string, h Handle) string {
	expanded := strings.ReplaceAll(template, "{alias}", url.PathEscape(h.Alias))
	return strings.ReplaceAll(expanded, "{domain.tld}", url.PathEscape(h.Domain))
}
