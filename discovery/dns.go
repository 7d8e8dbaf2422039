// Package discovery locates dedup storage services through DNS. Operators
// publish SRV records under _dedupow._tcp.{domain} for plain host:port
// endpoints, and optionally a _dedupow.{domain} TXT record carrying a full
// base URL when the service sits behind TLS or a path prefix.
package discovery

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"
)

// srvService is the SRV service label: _dedupow._tcp.{domain}.
const srvService = "dedupow"

// txtPrefix marks the TXT record carrying the service base URL,
// e.g. "dedupow=https://dedup.example.com:8443".
const txtPrefix = "dedupow="

// DNSResolver is the lookup surface discovery needs. It exists so tests
// can substitute a canned resolver.
type DNSResolver interface {
	// LookupSRV looks up SRV records for the given service, proto, and name.
	LookupSRV(service, proto, name string) (string, []*net.SRV, error)

	// LookupTXT looks up TXT records for the given name.
	LookupTXT(name string) ([]string, error)
}

// defaultDNSResolver wraps the standard net package DNS functions.
type defaultDNSResolver struct{}

func (d *defaultDNSResolver) LookupSRV(service, proto, name string) (string, []*net.SRV, error) {
	return net.LookupSRV(service, proto, name)
}

func (d *defaultDNSResolver) LookupTXT(name string) ([]string, error) {
	return net.LookupTXT(name)
}

// DefaultDNSResolver is the production resolver using the net package.
var DefaultDNSResolver DNSResolver = &defaultDNSResolver{}

// ResolveEndpoints resolves the service endpoints for a domain from its
// _dedupow._tcp SRV records. Results are host:port strings sorted by
// priority ascending, then weight descending.
func ResolveEndpoints(domain string) ([]string, error) {
	return ResolveEndpointsWithResolver(domain, DefaultDNSResolver)
}

// ResolveEndpointsWithResolver resolves SRV endpoints using the provided
// resolver.
func ResolveEndpointsWithResolver(domain string, resolver DNSResolver) ([]string, error) {
	if domain == "" {
		return nil, fmt.Errorf("%w: empty domain", ErrLookupFailed)
	}

	_, addrs, err := resolver.LookupSRV(srvService, "tcp", domain)
	if err != nil {
		return nil, fmt.Errorf("%w: SRV lookup for _%s._tcp.%s: %w", ErrLookupFailed, srvService, domain, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: no SRV records for _%s._tcp.%s", ErrNoEndpoints, srvService, domain)
	}

	sort.Slice(addrs, func(i, j int) bool {
		if addrs[i].Priority != addrs[j].Priority {
			return addrs[i].Priority < addrs[j].Priority
		}
		return addrs[i].Weight > addrs[j].Weight
	})

	endpoints := make([]string, len(addrs))
	for i, srv := range addrs {
		host := strings.TrimSuffix(srv.Target, ".")
		endpoints[i] = fmt.Sprintf("%s:%d", host, srv.Port)
	}
	return endpoints, nil
}

// ResolveServiceURL resolves the published base URL for a domain from its
// _dedupow.{domain} TXT record. Only http and https URLs are accepted.
func ResolveServiceURL(domain string) (string, error) {
	return ResolveServiceURLWithResolver(domain, DefaultDNSResolver)
}

// ResolveServiceURLWithResolver resolves the TXT base URL using the
// provided resolver.
func ResolveServiceURLWithResolver(domain string, resolver DNSResolver) (string, error) {
	if domain == "" {
		return "", fmt.Errorf("%w: empty domain", ErrLookupFailed)
	}

	name := "_" + srvService + "." + domain
	txts, err := resolver.LookupTXT(name)
	if err != nil {
		return "", fmt.Errorf("%w: TXT lookup for %s: %w", ErrLookupFailed, name, err)
	}

	var raw string
	for _, txt := range txts {
		txt = strings.TrimSpace(txt)
		if strings.HasPrefix(txt, txtPrefix) {
			raw = strings.TrimSpace(strings.TrimPrefix(txt, txtPrefix))
			break
		}
	}
	if raw == "" {
		return "", fmt.Errorf("%w: no %s TXT record for %s", ErrLookupFailed, txtPrefix, name)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrInvalidServiceURL, raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidServiceURL, raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// ResolveBaseURL finds a usable service base URL for a domain: the TXT
// base URL when published, otherwise http:// on the best SRV endpoint.
func ResolveBaseURL(domain string) (string, error) {
	return ResolveBaseURLWithResolver(domain, DefaultDNSResolver)
}

// ResolveBaseURLWithResolver resolves the base URL using the provided
// resolver.
func ResolveBaseURLWithResolver(domain string, resolver DNSResolver) (string, error) {
	if u, err := ResolveServiceURLWithResolver(domain, resolver); err == nil {
		return u, nil
	}

	endpoints, err := ResolveEndpointsWithResolver(domain, resolver)
	if err != nil {
		return "", err
	}
	return "http://" + endpoints[0], nil
}
