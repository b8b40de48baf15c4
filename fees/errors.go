package fees

import "errors"

var (
	// ErrNoRateSource indicates the estimator has no quote source configured.
	ErrNoRateSource = errors.New("fees: no rate source configured")
)
