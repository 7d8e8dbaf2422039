package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dedupow/libdedupow-go/challenge"
	"github.com/dedupow/libdedupow-go/dedup"
	"github.com/dedupow/libdedupow-go/pow"
)

// Client-visible message strings. Deployed claimants match on these
// verbatim; do not reword.
const (
	msgTagMissing   = "File tag missing."
	msgInvalidTag   = "Invalid file tag."
	msgNoFilePart   = "No file part."
	msgInvalidReq   = "Invalid request."
	msgVerifyFailed = "Verification failed."
	msgTagMismatch  = "File does not match tag."
	msgTooSmall     = "File too small."
	msgTooLarge     = "File too large."
	msgUploadFailed = "Upload failed."
	msgServerError  = "Internal server error."
)

// maxJSONBody bounds the two small JSON endpoints.
const maxJSONBody = 4096

type statusResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Seed     string `json:"seed,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type checkRequest struct {
	Tag string `json:"tag"`
}

type verifyRequest struct {
	Tag   string `json:"tag"`
	Proof string `json:"proof"`
}

// handleCheckFile answers the dedup question.
//
//	400 {"status":"error","message":"File tag missing."}  tag absent
//	200 {"status":"exists","seed":"<hex>"}                duplicate, challenge issued
//	200 {"status":"new"}                                  unknown tag
func (s *Server) handleCheckFile(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: msgInvalidReq})
		return
	}
	if req.Tag == "" {
		s.writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: msgTagMissing})
		return
	}

	tag, err := pow.ParseTag(req.Tag)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: msgInvalidTag})
		return
	}

	res, err := s.svc.CheckTag(r.Context(), tag)
	if err != nil {
		s.log.WithError(err).Error("dedup check failed")
		s.writeJSON(w, http.StatusInternalServerError, statusResponse{Status: "error", Message: msgServerError})
		return
	}

	if !res.Exists {
		s.metrics.checks.WithLabelValues("miss").Inc()
		s.writeJSON(w, http.StatusOK, statusResponse{Status: "new"})
		return
	}

	s.metrics.checks.WithLabelValues("hit").Inc()
	s.metrics.challengesIssued.Inc()
	s.writeJSON(w, http.StatusOK, statusResponse{Status: "exists", Seed: string(res.Seed)})
}

// handleUploadFile registers new content sent as multipart form data
// (file part "file", form field "tag").
//
//	400 {"status":"error","message":"No file part."}      no multipart file
//	400 {"status":"error","message":"Invalid request."}   missing tag or filename
//	413 {"status":"error","message":"File too large."}    over the upload cap
//	200 {"status":"uploaded","filename":"<name>"}         registered
func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeJSON(w, http.StatusRequestEntityTooLarge, statusResponse{Status: "error", Message: msgTooLarge})
			return
		}
		s.writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: msgNoFilePart})
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: msgNoFilePart})
		return
	}
	defer file.Close()

	tagField := r.FormValue("tag")
	if header.Filename == "" || tagField == "" {
		s.writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: msgInvalidReq})
		return
	}

	tag, err := pow.ParseTag(tagField)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: msgInvalidTag})
		return
	}

	if _, err := s.svc.Register(r.Context(), tag, file); err != nil {
		switch {
		case errors.Is(err, dedup.ErrTagMismatch):
			s.writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: msgTagMismatch})
		case errors.Is(err, pow.ErrContentTooSmall):
			s.writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: msgTooSmall})
		default:
			s.log.WithError(err).Error("upload failed")
			s.writeJSON(w, http.StatusInternalServerError, statusResponse{Status: "error", Message: msgUploadFailed})
		}
		return
	}

	s.metrics.uploads.Inc()
	s.writeJSON(w, http.StatusOK, statusResponse{Status: "uploaded", Filename: header.Filename})
}

// handleVerify settles a proof submission. The attempt consumes the
// pending challenge whatever the result.
//
//	404 {"status":"error","message":"Verification failed."}  no live challenge or content
//	200 {"status":"verified"}                                proof matched
//	403 {"status":"failed"}                                  proof mismatched
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: msgInvalidReq})
		return
	}

	tag, err := pow.ParseTag(req.Tag)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: msgInvalidReq})
		return
	}
	proof, err := pow.ParseProof(req.Proof)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: msgInvalidReq})
		return
	}

	outcome, err := s.svc.SubmitProof(r.Context(), tag, proof)
	s.metrics.proofs.WithLabelValues(outcome.String()).Inc()
	if err != nil {
		if errors.Is(err, challenge.ErrNoChallenge) || errors.Is(err, dedup.ErrContentNotFound) {
			s.writeJSON(w, http.StatusNotFound, statusResponse{Status: "error", Message: msgVerifyFailed})
			return
		}
		s.log.WithError(err).Error("proof settlement failed")
		s.writeJSON(w, http.StatusInternalServerError, statusResponse{Status: "error", Message: msgServerError})
		return
	}

	if outcome == dedup.OutcomeVerified {
		s.writeJSON(w, http.StatusOK, statusResponse{Status: "verified"})
		return
	}
	s.writeJSON(w, http.StatusForbidden, statusResponse{Status: "failed"})
}

// handleHealthz reports liveness.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}
