// Package client implements the claimant side of the ownership protocol:
// tagging content locally, asking a storage service whether it already
// holds that content, and answering challenges with locally computed
// proofs instead of re-uploading.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/dedupow/libdedupow-go/blocks"
	"github.com/dedupow/libdedupow-go/pow"
)

// maxResponseBody bounds how much of a service response is read. Every
// documented response is a small JSON object.
const maxResponseBody = 1 << 20

// Client talks to a dedup storage service. It maintains a pooled HTTP
// transport for connection reuse; all network methods take a context,
// which governs the request lifetime (no flat timeout is imposed, so
// large uploads are not cut off).
type Client struct {
	baseURL   string
	http      *http.Client
	suite     pow.Suite
	blockSize int
	workers   int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithSuite selects the hash suite. Both protocol sides must agree on it.
func WithSuite(suite pow.Suite) Option {
	return func(c *Client) {
		c.suite = suite
	}
}

// WithBlockSize sets the segmentation granularity in bytes. Both protocol
// sides must agree on it.
func WithBlockSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.blockSize = n
		}
	}
}

// WithWorkers sets how many goroutines hash blocks when computing proofs.
func WithWorkers(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.workers = n
		}
	}
}

// New creates a Client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
		suite:     pow.DefaultSuite,
		blockSize: blocks.DefaultBlockSize,
		workers:   1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckResult is the service's answer to a dedup check.
type CheckResult struct {
	// Exists reports whether the service already holds the content.
	Exists bool

	// Seed is the ownership challenge to prove against. Set only when
	// Exists; each check supersedes any previously issued seed.
	Seed pow.Seed
}

type checkRequest struct {
	Tag string `json:"tag"`
}

type verifyRequest struct {
	Tag   string `json:"tag"`
	Proof string `json:"proof"`
}

// serverResponse is the union of all documented response bodies.
type serverResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Seed     string `json:"seed"`
	Filename string `json:"filename"`
}

// Tag computes the content tag the way the service would.
func (c *Client) Tag(src blocks.Source) (pow.Tag, error) {
	return pow.ComputeTag(c.suite, src)
}

// ProveOwnership computes the proof for seed over local content.
func (c *Client) ProveOwnership(src blocks.Source, seed pow.Seed) (pow.Proof, error) {
	prover := &pow.Prover{Suite: c.suite, BlockSize: c.blockSize, Workers: c.workers}
	return prover.Prove(src, seed)
}

// CheckFile asks the service whether content with the given tag is
// already stored. On a duplicate the result carries the challenge seed.
func (c *Client) CheckFile(ctx context.Context, tag pow.Tag) (*CheckResult, error) {
	resp, code, err := c.postJSON(ctx, "/check-file", checkRequest{Tag: string(tag)})
	if err != nil {
		return nil, err
	}

	switch {
	case code == http.StatusOK && resp.Status == "new":
		return &CheckResult{}, nil
	case code == http.StatusOK && resp.Status == "exists":
		seed, err := pow.ParseSeed(resp.Seed)
		if err != nil {
			return nil, fmt.Errorf("%w: bad challenge seed: %w", ErrInvalidResponse, err)
		}
		return &CheckResult{Exists: true, Seed: seed}, nil
	case resp.Message != "":
		return nil, fmt.Errorf("client: check rejected: HTTP %d: %s", code, resp.Message)
	default:
		return nil, fmt.Errorf("%w: HTTP %d, status %q", ErrInvalidResponse, code, resp.Status)
	}
}

// UploadFile streams content to the service as multipart form data. The
// content is piped straight into the request body and never buffers
// whole in memory.
func (c *Client) UploadFile(ctx context.Context, src blocks.Source, filename string, tag pow.Tag) error {
	rc, err := src.Open()
	if err != nil {
		return fmt.Errorf("client: open content: %w", err)
	}
	defer func() { _ = rc.Close() }()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := writeUploadForm(mw, rc, filename, tag)
		if cerr := mw.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload-file", pr)
	if err != nil {
		return fmt.Errorf("client: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, code, err := c.do(req)
	if err != nil {
		return err
	}
	if code != http.StatusOK || resp.Status != "uploaded" {
		return fmt.Errorf("%w: HTTP %d: %s", ErrUploadRejected, code, resp.Message)
	}
	return nil
}

func writeUploadForm(mw *multipart.Writer, r io.Reader, filename string, tag pow.Tag) error {
	if err := mw.WriteField("tag", string(tag)); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, r)
	return err
}

// Verify submits a proof for tag and reports whether the service accepted
// it. A false result with a nil error means the proof was compared and
// mismatched. Either way the attempt spends the pending challenge;
// ErrNoChallenge means there was none to spend.
func (c *Client) Verify(ctx context.Context, tag pow.Tag, proof pow.Proof) (bool, error) {
	resp, code, err := c.postJSON(ctx, "/verify", verifyRequest{Tag: string(tag), Proof: string(proof)})
	if err != nil {
		return false, err
	}

	switch {
	case code == http.StatusOK && resp.Status == "verified":
		return true, nil
	case code == http.StatusForbidden:
		return false, nil
	case code == http.StatusNotFound:
		return false, fmt.Errorf("%w: %s", ErrNoChallenge, resp.Message)
	case resp.Message != "":
		return false, fmt.Errorf("client: verify rejected: HTTP %d: %s", code, resp.Message)
	default:
		return false, fmt.Errorf("%w: HTTP %d, status %q", ErrInvalidResponse, code, resp.Status)
	}
}

// AttemptResult reports which path an AttemptUpload took.
type AttemptResult struct {
	// Tag is the locally computed content tag.
	Tag pow.Tag

	// Deduplicated is true when the service already held the content and
	// the ownership path ran instead of an upload.
	Deduplicated bool

	// Verified reports the proof outcome. Meaningful only when
	// Deduplicated.
	Verified bool
}

// AttemptUpload runs the full claimant flow: tag the content, ask the
// service whether it already holds it, then either upload the bytes or
// prove ownership of the stored copy. The source is opened twice on
// either path (tagging, then upload or proof), so it must be re-readable.
func (c *Client) AttemptUpload(ctx context.Context, src blocks.Source, filename string) (*AttemptResult, error) {
	tag, err := c.Tag(src)
	if err != nil {
		return nil, err
	}

	check, err := c.CheckFile(ctx, tag)
	if err != nil {
		return nil, err
	}

	if !check.Exists {
		if err := c.UploadFile(ctx, src, filename, tag); err != nil {
			return nil, err
		}
		return &AttemptResult{Tag: tag}, nil
	}

	proof, err := c.ProveOwnership(src, check.Seed)
	if err != nil {
		return nil, err
	}

	verified, err := c.Verify(ctx, tag, proof)
	if err != nil {
		return nil, err
	}
	return &AttemptResult{Tag: tag, Deduplicated: true, Verified: verified}, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) (*serverResponse, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("client: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("client: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *Client) do(req *http.Request) (*serverResponse, int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var sr serverResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&sr); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: decode response: %w", ErrInvalidResponse, err)
	}
	return &sr, resp.StatusCode, nil
}
