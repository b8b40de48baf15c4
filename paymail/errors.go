package paymail

import "errors"

var (
	// ErrInvalidHandle indicates a string is not a valid alias@domain handle.
	ErrInvalidHandle = errors.New("paymail: invalid handle")

	// ErrDNSLookupFailed indicates a DNS SRV lookup failed.
	ErrDNSLookupFailed = errors.New("paymail: DNS lookup failed")

	// ErrDNSSECValidationFailed indicates the upstream resolver did not
	// return DNSSEC-authenticated data.
	ErrDNSSECValidationFailed = errors.New("paymail: DNSSEC validation failed")

	// ErrCapabilityDiscovery indicates .well-known/bsvalias fetch failed.
	ErrCapabilityDiscovery = errors.New("paymail: capability discovery failed")

	// ErrNoPaymentCapability indicates the domain advertises no payment
	// destination endpoint.
	ErrNoPaymentCapability = errors.New("paymail: no payment destination capability")

	// ErrBadDestination indicates the payment destination response was
	// unusable.
	ErrBadDestination = errors.New("paymail: bad payment destination")
)
