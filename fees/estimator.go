package fees

import (
	"context"
	"sync"
	"time"

	"github.com/avast/retry-go"
)

// QuoteTTL is how long a fetched fee quote stays fresh.
const QuoteTTL = 5 * time.Minute

// RateSource supplies the current network fee rate in sat/byte.
// Implemented by the mAPI client.
type RateSource interface {
	FeeRate(ctx context.Context) (float64, error)
}

// Estimator resolves the effective fee rate for building transactions.
//
// Precedence: user override, then a fresh cached quote, then a quote
// fetched on demand, then DefaultFeeRate. The result is always clamped
// to [MinFeeRate, MaxFeeRate]. Rate never fails; quote fetch errors
// degrade to the stale cache or the default.
type Estimator struct {
	mu        sync.Mutex
	source    RateSource
	override  float64 // 0 = no override
	cached    float64
	fetchedAt time.Time
	ttl       time.Duration
	now       func() time.Time
}

// NewEstimator creates an Estimator backed by source. A nil source
// disables quote fetching, leaving only override and default.
func NewEstimator(source RateSource) *Estimator {
	return &Estimator{
		source: source,
		ttl:    QuoteTTL,
		now:    time.Now,
	}
}

// SetOverride pins the fee rate to the given value. Zero clears the
// override. The override is clamped like every other rate.
func (e *Estimator) SetOverride(rate float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.override = rate
}

// Rate returns the effective fee rate in sat/byte.
func (e *Estimator) Rate(ctx context.Context) float64 {
	e.mu.Lock()
	if e.override > 0 {
		rate := ClampRate(e.override)
		e.mu.Unlock()
		return rate
	}
	if e.cached > 0 && e.now().Sub(e.fetchedAt) < e.ttl {
		rate := ClampRate(e.cached)
		e.mu.Unlock()
		return rate
	}
	e.mu.Unlock()

	if err := e.Refresh(ctx); err != nil {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.cached > 0 {
			// Stale quote beats the hardcoded default.
			return ClampRate(e.cached)
		}
		return DefaultFeeRate
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return ClampRate(e.cached)
}

// Refresh fetches a new quote from the rate source and caches it.
func (e *Estimator) Refresh(ctx context.Context) error {
	if e.source == nil {
		return ErrNoRateSource
	}

	var rate float64
	err := retry.Do(
		func() error {
			var fetchErr error
			rate, fetchErr = e.source.FeeRate(ctx)
			return fetchErr
		},
		retry.Attempts(3),
		retry.Context(ctx),
	)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.cached = rate
	e.fetchedAt = e.now()
	e.mu.Unlock()
	return nil
}
