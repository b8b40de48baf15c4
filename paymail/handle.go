// Package paymail resolves human-readable payment handles
// (alias@domain) into locking scripts via the bsvalias protocol:
// SRV discovery of the capability host, a .well-known capability
// lookup, then a payment destination request against the advertised
// endpoint.
package paymail

import (
	"fmt"
	"strings"
)

// Handle is a parsed alias@domain payment handle.
type Handle struct {
	Alias  string
	Domain string
}

func (h Handle) String() string { return h.Alias + "@" + h.Domain }

// IsHandle reports whether s looks like a payment handle rather than a
// plain chain address.
func IsHandle(s string) bool {
	return strings.Contains(s, "@")
}

// ParseHandle splits and normalizes an alias@domain handle. Both parts
// are lowercased; bsvalias treats handles case-insensitively.
func ParseHandle(s string) (Handle, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Handle{}, fmt.Errorf("%w: empty handle", ErrInvalidHandle)
	}

	parts := strings.Split(s, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Handle{}, fmt.Errorf("%w: %q", ErrInvalidHandle, s)
	}

	domain := strings.ToLower(parts[1])
	if !strings.Contains(domain, ".") {
		return Handle{}, fmt.Errorf("%w: domain %q has no TLD", ErrInvalidHandle, domain)
	}

	return Handle{Alias: strings.ToLower(parts[0]), Domain: domain}, nil
}
