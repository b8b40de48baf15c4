package network

import (
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// requestTimeout bounds every endpoint call. A hung endpoint degrades
// to its fallback instead of stalling the caller.
const requestTimeout = 30 * time.Second

// newClient builds the resty client used by the endpoint
// implementations. Retries stay off at this level; the cascade decides
// what to try next.
func newClient() *resty.Client {
	return resty.New().
		SetTimeout(requestTimeout).
		SetRetryCount(0)
}

func trimBase(baseURL string) string {
	return strings.TrimSuffix(baseURL, "/")
}
