package paymail

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

type mockResolver struct {
	srvs []*net.SRV
	err  error
}

func (m *mockResolver) LookupSRV(service, proto, name string) (string, []*net.SRV, error) {
	return "", m.srvs, m.err
}

// --- SRV discovery tests ---

func TestResolveHost_UsesSRVRecord(t *testing.T) {
	r := &mockResolver{srvs: []*net.SRV{
		{Target: "pay.example.com.", Port: 8443, Priority: 10, Weight: 5},
	}}

	assert.Equal(t, "pay.example.com:8443", ResolveHost("example.com", r))
}

func TestResolveHost_SortsByPriorityThenWeight(t *testing.T) {
	r := &mockResolver{srvs: []*net.SRV{
		{Target: "low-weight.example.com", Port: 1, Priority: 10, Weight: 1},
		{Target: "backup.example.com", Port: 2, Priority: 20, Weight: 100},
		{Target: "primary.example.com", Port: 3, Priority: 10, Weight: 50},
	}}

	assert.Equal(t, "primary.example.com:3", ResolveHost("example.com", r))
}

func TestResolveHost_FallsBackOnLookupError(t *testing.T) {
	r := &mockResolver{err: errors.New("nxdomain")}

	assert.Equal(t, "example.com:443", ResolveHost("example.com", r))
}

func TestResolveHost_FallsBackOnNoRecords(t *testing.T) {
	r := &mockResolver{}

	assert.Equal(t, "example.com:443", ResolveHost("example.com", r))
}

func TestResolveHost_FallsBackOnEmptyTarget(t *testing.T) {
	r := &mockResolver{srvs: []*net.SRV{{Target: ".", Port: 443}}}

	assert.Equal(t, "example.com:443", ResolveHost("example.com", r))
}
