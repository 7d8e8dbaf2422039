package discovery

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// defaultUpstreams are the public validating resolvers tried in order
// when a DNSSECResolver is configured without any.
var defaultUpstreams = []string{"8.8.8.8:53", "1.1.1.1:53"}

const (
	// defaultExchangeTimeout bounds one query against one upstream.
	defaultExchangeTimeout = 10 * time.Second

	// edns0BufSize is the EDNS0 UDP buffer size.
	edns0BufSize = 4096
)

// DNSSECResolver implements DNSResolver for deployments that publish
// their service records in signed zones. Validation is delegated to the
// upstream recursive resolvers: every query carries the DNSSEC OK flag,
// and an answer counts only when the upstream set the AD (Authenticated
// Data) flag on it.
//
// Upstreams are tried in order, and only transport failures move the
// query to the next one. An upstream that answers without the AD flag
// fails the lookup outright: retrying elsewhere could turn a validation
// failure into a silently unvalidated answer.
type DNSSECResolver struct {
	// Upstreams lists recursive resolver addresses as "host:port".
	// Empty selects the public defaults.
	Upstreams []string

	// Timeout bounds each individual exchange. Zero selects 10s.
	Timeout time.Duration
}

// NewDNSSECResolver returns a resolver querying the given upstreams in
// order, or the public defaults when none are given.
func NewDNSSECResolver(upstreams ...string) *DNSSECResolver {
	return &DNSSECResolver{Upstreams: upstreams}
}

// exchange runs one authenticated query and returns the answer section.
func (r *DNSSECResolver) exchange(name string, qtype uint16) ([]dns.RR, error) {
	timeout := r.Timeout
	if timeout == 0 {
		timeout = defaultExchangeTimeout
	}
	upstreams := r.Upstreams
	if len(upstreams) == 0 {
		upstreams = defaultUpstreams
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true
	msg.SetEdns0(edns0BufSize, true) // DO (DNSSEC OK) flag

	client := &dns.Client{Timeout: timeout}

	var lastErr error
	for _, upstream := range upstreams {
		msg.Id = dns.Id()
		resp, _, err := client.Exchange(msg, upstream)
		if err != nil {
			lastErr = err
			continue
		}

		// NXDOMAIN is an authenticated empty answer, not a failure.
		if resp.Rcode != dns.RcodeSuccess && resp.Rcode != dns.RcodeNameError {
			return nil, fmt.Errorf("%w: %s %s: rcode %s from %s",
				ErrLookupFailed, name, dns.TypeToString[qtype],
				dns.RcodeToString[resp.Rcode], upstream)
		}
		if !resp.AuthenticatedData {
			return nil, fmt.Errorf("%w: %s %s: %s did not set the AD flag",
				ErrDNSSECValidationFailed, name, dns.TypeToString[qtype], upstream)
		}
		return resp.Answer, nil
	}

	return nil, fmt.Errorf("%w: %s %s: no upstream reachable: %w",
		ErrLookupFailed, name, dns.TypeToString[qtype], lastErr)
}

// LookupSRV resolves _service._proto.name over an authenticated query.
// The cname return is always empty; miekg/dns does not surface a
// canonical name for SRV queries the way net.LookupSRV does.
func (r *DNSSECResolver) LookupSRV(service, proto, name string) (string, []*net.SRV, error) {
	qname := fmt.Sprintf("_%s._%s.%s", service, proto, name)
	answer, err := r.exchange(qname, dns.TypeSRV)
	if err != nil {
		return "", nil, err
	}

	var srvs []*net.SRV
	for _, rr := range answer {
		srv, ok := rr.(*dns.SRV)
		if !ok {
			continue
		}
		srvs = append(srvs, &net.SRV{
			Target:   strings.TrimSuffix(srv.Target, "."),
			Port:     srv.Port,
			Priority: srv.Priority,
			Weight:   srv.Weight,
		})
	}
	if len(srvs) == 0 {
		return "", nil, fmt.Errorf("%w: no SRV records for %s", ErrLookupFailed, qname)
	}
	return "", srvs, nil
}

// LookupTXT resolves TXT records over an authenticated query.
func (r *DNSSECResolver) LookupTXT(name string) ([]string, error) {
	answer, err := r.exchange(name, dns.TypeTXT)
	if err != nil {
		return nil, err
	}

	var txts []string
	for _, rr := range answer {
		txt, ok := rr.(*dns.TXT)
		if !ok {
			continue
		}
		// Long TXT records arrive split into multiple strings.
		txts = append(txts, strings.Join(txt.Txt, ""))
	}
	if len(txts) == 0 {
		return nil, fmt.Errorf("%w: no TXT records for %s", ErrLookupFailed, name)
	}
	return txts, nil
}
