package discovery

import "errors"

var (
	// ErrLookupFailed indicates a DNS SRV/TXT lookup failed.
	ErrLookupFailed = errors.New("discovery: DNS lookup failed")

	// ErrNoEndpoints indicates no SRV records were found for the domain.
	ErrNoEndpoints = errors.New("discovery: no endpoints found")

	// ErrInvalidServiceURL indicates a published service URL is malformed.
	ErrInvalidServiceURL = errors.New("discovery: invalid service URL")

	// ErrDNSSECValidationFailed indicates the upstream resolver did not
	// authenticate the response.
	ErrDNSSECValidationFailed = errors.New("discovery: DNSSEC validation failed")
)
