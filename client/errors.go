package client

import "errors"

var (
	// ErrConnectionFailed indicates the client could not reach the service.
	ErrConnectionFailed = errors.New("client: connection failed")

	// ErrInvalidResponse indicates the service returned a malformed or
	// unexpected response.
	ErrInvalidResponse = errors.New("client: invalid response")

	// ErrUploadRejected indicates the service refused the uploaded content.
	ErrUploadRejected = errors.New("client: upload rejected")

	// ErrNoChallenge indicates no live challenge existed for the tag when
	// the proof arrived. The claimant must run a fresh dedup check to get
	// a new seed.
	ErrNoChallenge = errors.New("client: no pending challenge")
)
