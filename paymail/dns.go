package paymail

import (
	"fmt"
	"net"
	"sort"
	"strings"
)

// DNSResolver defines the interface for DNS lookups.
// This allows tests to mock DNS resolution.
type DNSResolver interface {
	// LookupSRV looks up SRV records for the given service, proto, and name.
	LookupSRV(service, proto, name string) (string, []*net.SRV, error)
}

// defaultDNSResolver wraps the standard net package DNS functions.
type defaultDNSResolver struct{}

func (d *defaultDNSResolver) LookupSRV(service, proto, name string) (string, []*net.SRV, error) {
	return net.LookupSRV(service, proto, name)
}

// DefaultDNSResolver is the production DNS resolver using the net package.
var DefaultDNSResolver DNSResolver = &defaultDNSResolver{}

// srvService is the bsvalias SRV service label: _bsvalias._tcp.{domain}.
const srvService = "bsvalias"

// ResolveHost returns the capability host:port for a paymail domain.
// It prefers the _bsvalias._tcp SRV record, sorted by priority then
// weight, and falls back to the domain itself on port 443 when the
// lookup fails or returns nothing. A nil resolver uses
// DefaultDNSResolver.
func ResolveHost(domain string, resolver DNSResolver) string {
	if resolver == nil {
		resolver = DefaultDNSResolver
	}

	_, addrs, err := resolver.LookupSRV(srvService, "tcp", domain)
	if err != nil || len(addrs) == 0 {
		return domain + ":443"
	}

	sort.Slice(addrs, func(i, j int) bool {
		if addrs[i].Priority != addrs[j].Priority {
			return addrs[i].Priority < addrs[j].Priority
		}
		return addrs[i].Weight > addrs[j].Weight
	})

	host := strings.TrimSuffix(addrs[0].Target, ".")
	if host == "" {
		return domain + ":443"
	}
	return fmt.Sprintf("%s:%d", host, addrs[0].Port)
}
