package tenant

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// DefaultExcludedSubdomains never resolve to a tenant unless overridden.
var DefaultExcludedSubdomains = []string{"www", "api", "admin", "mail", "ftp"}

// Finder looks up active tenants in the shared schema.
type Finder interface {
	FindActiveBySubdomain(ctx context.Context, subdomain string) (*Tenant, error)
}

// Directory maps request hosts to tenants.
type Directory struct {
	finder   Finder
	excluded map[string]bool
}

// NewDirectory builds a Directory. A nil excluded list uses
// DefaultExcludedSubdomains.
func NewDirectory(finder Finder, excluded []string) *Directory {
	if excluded == nil {
		excluded = DefaultExcludedSubdomains
	}
	set := make(map[string]bool, len(excluded))
	for _, e := range excluded {
		set[strings.ToLower(strings.TrimSpace(e))] = true
	}
	return &Directory{finder: finder, excluded: set}
}

// ExtractSubdomain returns the leftmost label of host. Hosts without a
// label in front of their base domain, raw IPs and excluded labels yield
// false. Only the first label is returned for deeper hosts, so
// "api.tenant.example.com" gives "api" and is then excluded.
func (d *Directory) ExtractSubdomain(host string) (string, bool) {
	host = strings.ToLower(strings.TrimSpace(stripPort(host)))
	host = strings.TrimSuffix(host, ".")
	if host == "" || net.ParseIP(host) != nil {
		return "", false
	}

	labels := strings.Split(host, ".")
	minLabels := 3
	if labels[len(labels)-1] == "localhost" {
		minLabels = 2
	}
	if len(labels) < minLabels {
		return "", false
	}

	sub := labels[0]
	if sub == "" || d.excluded[sub] {
		return "", false
	}
	return sub, true
}

// FindBySubdomain returns the active tenant owning subdomain, or nil.
func (d *Directory) FindBySubdomain(ctx context.Context, subdomain string) (*Tenant, error) {
	if subdomain == "" {
		return nil, nil
	}
	return d.finder.FindActiveBySubdomain(ctx, subdomain)
}

// ResolveFromRequest resolves the tenant addressed by r's Host header. A nil
// tenant with a nil error means the request belongs to the public schema;
// errors are reserved for lookup failures.
func (d *Directory) ResolveFromRequest(r *http.Request) (*Tenant, error) {
	sub, ok := d.ExtractSubdomain(r.Host)
	if !ok {
		return nil, nil
	}
	return d.FindBySubdomain(r.Context(), sub)
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	// bare IPv6 literal without a port
	return strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
}
