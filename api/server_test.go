package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dedupow/libdedupow-go/blocks"
	"github.com/dedupow/libdedupow-go/challenge"
	"github.com/dedupow/libdedupow-go/dedup"
	"github.com/dedupow/libdedupow-go/pow"
	"github.com/dedupow/libdedupow-go/storage"
)

func patterned(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*7 + 3)
	}
	return data
}

func newTestServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()

	svc := dedup.NewService(
		dedup.NewMemIndex(),
		storage.NewMemStore(),
		challenge.NewManager(challenge.NewMemStore()),
	)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	srv := New(svc, append([]Option{WithLogger(logger)}, opts...)...)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func multipartBody(t *testing.T, filename, tag string, content []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if tag != "" {
		require.NoError(t, mw.WriteField("tag", tag))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func uploadContent(t *testing.T, ts *httptest.Server, data []byte) pow.Tag {
	t.Helper()
	tag, err := pow.ComputeTag(pow.SuiteSHA256, blocks.BytesSource{Data: data})
	require.NoError(t, err)

	body, contentType := multipartBody(t, "data.bin", string(tag), data)
	resp, err := http.Post(ts.URL+"/upload-file", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return tag
}

// checkSeed runs a dedup check expecting a duplicate and returns the seed.
func checkSeed(t *testing.T, ts *httptest.Server, tag pow.Tag) pow.Seed {
	t.Helper()
	resp, body := postJSON(t, ts.URL+"/check-file", fmt.Sprintf(`{"tag":%q}`, tag))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var parsed struct {
		Status string `json:"status"`
		Seed   string `json:"seed"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &parsed))
	require.Equal(t, "exists", parsed.Status)

	seed, err := pow.ParseSeed(parsed.Seed)
	require.NoError(t, err)
	return seed
}

func TestCheckFileMissingTag(t *testing.T) {
	ts := newTestServer(t)

	resp, body := postJSON(t, ts.URL+"/check-file", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"status":"error","message":"File tag missing."}`, body)

	resp, body = postJSON(t, ts.URL+"/check-file", `{"tag":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"status":"error","message":"File tag missing."}`, body)
}

func TestCheckFileInvalidBody(t *testing.T) {
	ts := newTestServer(t)

	resp, body := postJSON(t, ts.URL+"/check-file", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"status":"error","message":"Invalid request."}`, body)
}

func TestCheckFileMalformedTag(t *testing.T) {
	ts := newTestServer(t)

	for _, tag := range []string{"zz", strings.Repeat("A", 64), strings.Repeat("a", 63)} {
		resp, body := postJSON(t, ts.URL+"/check-file", fmt.Sprintf(`{"tag":%q}`, tag))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.JSONEq(t, `{"status":"error","message":"Invalid file tag."}`, body)
	}
}

func TestCheckFileUnknownTag(t *testing.T) {
	ts := newTestServer(t)

	resp, body := postJSON(t, ts.URL+"/check-file", fmt.Sprintf(`{"tag":%q}`, strings.Repeat("ab", 32)))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"new"}`, body)
}

func TestCheckFileKnownTagIssuesSeed(t *testing.T) {
	ts := newTestServer(t)
	data := patterned(12000)
	tag := uploadContent(t, ts, data)

	seed := checkSeed(t, ts, tag)
	again := checkSeed(t, ts, tag)
	assert.NotEqual(t, seed, again, "every check issues a fresh challenge")
}

func TestUploadFileFlow(t *testing.T) {
	ts := newTestServer(t)
	data := patterned(12000)
	tag, err := pow.ComputeTag(pow.SuiteSHA256, blocks.BytesSource{Data: data})
	require.NoError(t, err)

	body, contentType := multipartBody(t, "report.pdf", string(tag), data)
	resp, err := http.Post(ts.URL+"/upload-file", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"uploaded","filename":"report.pdf"}`, string(raw))

	// The content is now a duplicate.
	checkSeed(t, ts, tag)
}

func TestUploadFileNoFilePart(t *testing.T) {
	ts := newTestServer(t)

	// Multipart form without a file part.
	body, contentType := multipartBody(t, "", strings.Repeat("ab", 32), nil)
	resp, err := http.Post(ts.URL+"/upload-file", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"status":"error","message":"No file part."}`, string(raw))

	// Not multipart at all.
	resp2, body2 := postJSON(t, ts.URL+"/upload-file", `{"tag":"x"}`)
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
	assert.JSONEq(t, `{"status":"error","message":"No file part."}`, body2)
}

func TestUploadFileMissingTag(t *testing.T) {
	ts := newTestServer(t)

	body, contentType := multipartBody(t, "data.bin", "", patterned(9000))
	resp, err := http.Post(ts.URL+"/upload-file", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"status":"error","message":"Invalid request."}`, string(raw))
}

func TestUploadFileTagMismatch(t *testing.T) {
	ts := newTestServer(t)
	claimed, err := pow.ComputeTag(pow.SuiteSHA256, blocks.BytesSource{Data: patterned(9000)})
	require.NoError(t, err)

	body, contentType := multipartBody(t, "data.bin", string(claimed), patterned(10000))
	resp, err := http.Post(ts.URL+"/upload-file", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"status":"error","message":"File does not match tag."}`, string(raw))
}

func TestUploadFileTooSmall(t *testing.T) {
	ts := newTestServer(t)
	data := patterned(blocks.DefaultBlockSize) // exactly one block
	tag, err := pow.ComputeTag(pow.SuiteSHA256, blocks.BytesSource{Data: data})
	require.NoError(t, err)

	body, contentType := multipartBody(t, "small.bin", string(tag), data)
	resp, err := http.Post(ts.URL+"/upload-file", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"status":"error","message":"File too small."}`, string(raw))
}

func TestUploadFileTooLarge(t *testing.T) {
	ts := newTestServer(t, WithMaxUpload(1024))
	data := patterned(9000)
	tag, err := pow.ComputeTag(pow.SuiteSHA256, blocks.BytesSource{Data: data})
	require.NoError(t, err)

	body, contentType := multipartBody(t, "big.bin", string(tag), data)
	resp, err := http.Post(ts.URL+"/upload-file", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.JSONEq(t, `{"status":"error","message":"File too large."}`, string(raw))
}

func TestVerifyFlow(t *testing.T) {
	ts := newTestServer(t)
	data := patterned(12000)
	tag := uploadContent(t, ts, data)
	seed := checkSeed(t, ts, tag)

	proof, err := pow.NewProver().Prove(blocks.BytesSource{Data: data}, seed)
	require.NoError(t, err)

	resp, body := postJSON(t, ts.URL+"/verify", fmt.Sprintf(`{"tag":%q,"proof":%q}`, tag, proof))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"verified"}`, body)

	// The challenge is spent: the same submission now finds nothing.
	resp, body = postJSON(t, ts.URL+"/verify", fmt.Sprintf(`{"tag":%q,"proof":%q}`, tag, proof))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"status":"error","message":"Verification failed."}`, body)
}

func TestVerifyWrongProof(t *testing.T) {
	ts := newTestServer(t)
	data := patterned(12000)
	tag := uploadContent(t, ts, data)
	seed := checkSeed(t, ts, tag)

	corrupted := append([]byte(nil), data...)
	corrupted[0] ^= 0x01
	wrongProof, err := pow.NewProver().Prove(blocks.BytesSource{Data: corrupted}, seed)
	require.NoError(t, err)

	resp, body := postJSON(t, ts.URL+"/verify", fmt.Sprintf(`{"tag":%q,"proof":%q}`, tag, wrongProof))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.JSONEq(t, `{"status":"failed"}`, body)

	// The failed attempt burned the challenge.
	goodProof, err := pow.NewProver().Prove(blocks.BytesSource{Data: data}, seed)
	require.NoError(t, err)
	resp, body = postJSON(t, ts.URL+"/verify", fmt.Sprintf(`{"tag":%q,"proof":%q}`, tag, goodProof))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"status":"error","message":"Verification failed."}`, body)
}

func TestVerifyNoChallengePending(t *testing.T) {
	ts := newTestServer(t)
	data := patterned(12000)
	tag := uploadContent(t, ts, data)

	// Uploaded but never checked: nothing to settle.
	resp, body := postJSON(t, ts.URL+"/verify",
		fmt.Sprintf(`{"tag":%q,"proof":%q}`, tag, strings.Repeat("cd", 32)))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"status":"error","message":"Verification failed."}`, body)
}

func TestVerifyUnknownTag(t *testing.T) {
	ts := newTestServer(t)

	resp, body := postJSON(t, ts.URL+"/verify",
		fmt.Sprintf(`{"tag":%q,"proof":%q}`, strings.Repeat("ab", 32), strings.Repeat("cd", 32)))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"status":"error","message":"Verification failed."}`, body)
}

func TestVerifyMalformedInput(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `garbage`},
		{"bad tag", fmt.Sprintf(`{"tag":"zz","proof":%q}`, strings.Repeat("cd", 32))},
		{"bad proof", fmt.Sprintf(`{"tag":%q,"proof":"zz"}`, strings.Repeat("ab", 32))},
		{"empty proof", fmt.Sprintf(`{"tag":%q,"proof":""}`, strings.Repeat("ab", 32))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := postJSON(t, ts.URL+"/verify", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.JSONEq(t, `{"status":"error","message":"Invalid request."}`, body)
		})
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(raw))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	uploadContent(t, ts, patterned(12000))

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	text := string(raw)
	assert.Contains(t, text, "dedupow_api_requests_total")
	assert.Contains(t, text, "dedupow_dedup_uploads_total 1")
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/check-file", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Content-Type", resp.Header.Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "Origin", resp.Header.Get("Vary"))
}

func TestCORSWithoutOrigin(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRequestIDHeader(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "trace-1234")

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "trace-1234", resp.Header.Get("X-Request-ID"))
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/check-file")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
