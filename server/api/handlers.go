package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mynextid/zkcert/certificate"
	"github.com/mynextid/zkcert/checker"
	"github.com/mynextid/zkcert/claims"
	"github.com/mynextid/zkcert/models"
	"github.com/mynextid/zkcert/pipeline"
	"github.com/mynextid/zkcert/store"
	"github.com/mynextid/zkcert/zkp"
)

// proofFailureMessage is the only proof generation detail a client sees.
const proofFailureMessage = "could not generate proof"

// ProofVerifier is satisfied by *zkp.Engine.
type ProofVerifier interface {
	VerifyProof(p *zkp.Proof) error
}

type Config struct {
	Pipeline *pipeline.Pipeline
	Proofs   ProofVerifier
	Circuit  models.CircuitInfo
	// Origin is the public base URL share links are built on.
	Origin string
	Logger pipeline.Logger
}

// Server handles HTTP requests for certificate operations
type Server struct {
	pipeline *pipeline.Pipeline
	proofs   ProofVerifier
	circuit  models.CircuitInfo
	origin   string
	logger   pipeline.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg Config) *Server {
	return &Server{
		pipeline: cfg.Pipeline,
		proofs:   cfg.Proofs,
		circuit:  cfg.Circuit,
		origin:   cfg.Origin,
		logger:   cfg.Logger,
	}
}

// ==== Handlers ====

// HandleHealth handles health check requests
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// HandleListCircuits lists the loaded proving circuit
func (s *Server) HandleListCircuits(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, CircuitListResponse{
		Circuits: []models.CircuitInfo{s.circuit},
		Count:    1,
	})
}

// HandleVerify verifies a raw proof against its public signals
func (s *Server) HandleVerify(w http.ResponseWriter, r *http.Request) {
	if name := chi.URLParam(r, "circuit"); name != s.circuit.Name {
		respondError(w, http.StatusNotFound, "circuit_not_found",
			fmt.Sprintf("circuit '%s' not found", name))
		return
	}

	var req VerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Proof == "" || len(req.PublicSignals) == 0 {
		respondError(w, http.StatusBadRequest, "missing_input",
			"both proof and publicSignals are required")
		return
	}

	proofBytes, err := base64.StdEncoding.DecodeString(req.Proof)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_proof_encoding",
			"proof must be base64 encoded")
		return
	}

	err = s.proofs.VerifyProof(&zkp.Proof{Data: proofBytes, PublicSignals: req.PublicSignals})
	response := VerifyResponse{
		Valid:     err == nil,
		Timestamp: time.Now(),
		Message:   "proof is valid",
	}
	if err != nil {
		response.Message = "proof verification failed"
	}
	respondJSON(w, http.StatusOK, response)
}

// HandleIssueCertificate proves, builds, signs and stores a certificate
func (s *Server) HandleIssueCertificate(w http.ResponseWriter, r *http.Request) {
	var req IssueCertificateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	dob, err := parseDateOfBirth(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_date_of_birth", err.Error())
		return
	}

	rec, err := s.pipeline.Issue(r.Context(), pipeline.IssueRequest{
		Identity: models.VerifiedIdentity{
			SubjectSystemID: req.SubjectSystemID,
			FullName:        req.FullName,
			DateOfBirth:     dob,
			Photo:           req.Photo,
		},
		ThresholdAge:    req.ThresholdAge,
		CertificateType: req.CertificateType,
	})
	if err != nil {
		s.respondIssueError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, s.certificateResponse(rec))
}

func parseDateOfBirth(req IssueCertificateRequest) (time.Time, error) {
	switch {
	case req.DateOfBirth != "":
		return claims.ParseDate(req.DateOfBirth)
	case req.DateOfBirthEpochMs != "":
		return claims.FromEpochMillisString(req.DateOfBirthEpochMs)
	}
	return time.Time{}, errors.New("dateOfBirth or dateOfBirthEpochMs is required")
}

func (s *Server) respondIssueError(w http.ResponseWriter, err error) {
	var (
		mismatch *claims.ClaimMismatchError
		buildErr *certificate.DocumentBuildError
		proofErr *zkp.ProofGenerationError
	)
	switch {
	case errors.As(err, &mismatch):
		respondError(w, http.StatusUnprocessableEntity, "claim_mismatch", mismatch.Error())
	case errors.As(err, &buildErr):
		respondError(w, http.StatusBadRequest, "invalid_identity", buildErr.Error())
	case errors.As(err, &proofErr):
		respondError(w, http.StatusUnprocessableEntity, "proof_generation_failed", proofFailureMessage)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		respondError(w, http.StatusServiceUnavailable, "proof_generation_timeout", proofFailureMessage)
	default:
		s.logger.Error("Certificate issuance failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", proofFailureMessage)
	}
}

// HandleGetCertificate returns a stored certificate
func (s *Server) HandleGetCertificate(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.fetch(w, r, pathKey(r))
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, s.certificateResponse(rec))
}

// HandleDeleteCertificate deletes a stored certificate
func (s *Server) HandleDeleteCertificate(w http.ResponseWriter, r *http.Request) {
	key := pathKey(r)
	if err := key.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_key", "userId and type are required")
		return
	}
	deleted, err := s.pipeline.Delete(r.Context(), key)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, DeleteResponse{Deleted: deleted})
}

// HandleShareLink returns the verifier link of a stored certificate
func (s *Server) HandleShareLink(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.fetch(w, r, pathKey(r))
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, ShareLinkResponse{URL: pipeline.ShareURL(s.origin, rec.Key())})
}

// HandleFetchProof serves the signed XML to whoever holds the share link
func (s *Server) HandleFetchProof(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.fetch(w, r, s.queryKey(r))
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(rec.SignedDocument)
}

// HandleCheckProof checks a stored certificate against a verifier requirement
func (s *Server) HandleCheckProof(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	requiredDate, err := claims.ParseDate(req.RequiredDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_required_date", "requiredDate must be YYYY-MM-DD")
		return
	}
	if req.RequiredAge < 0 {
		respondError(w, http.StatusBadRequest, "invalid_required_age", "requiredAge must not be negative")
		return
	}

	key := s.queryKey(r)
	if err := key.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_key", "userId and type are required")
		return
	}

	res, err := s.pipeline.Verify(r.Context(), key, checker.Constraint{
		RequiredDate: requiredDate,
		RequiredAge:  req.RequiredAge,
	})
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) fetch(w http.ResponseWriter, r *http.Request, key store.Key) (*store.Record, bool) {
	if err := key.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_key", "userId and type are required")
		return nil, false
	}
	rec, err := s.pipeline.Fetch(r.Context(), key)
	if err != nil {
		s.respondStoreError(w, err)
		return nil, false
	}
	return rec, true
}

func (s *Server) respondStoreError(w http.ResponseWriter, err error) {
	var buildErr *certificate.DocumentBuildError
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "certificate_not_found", "certificate not found")
	case errors.As(err, &buildErr):
		respondError(w, http.StatusUnprocessableEntity, "invalid_certificate", "stored document is not a certificate")
	default:
		s.logger.Error("Store operation failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func (s *Server) certificateResponse(rec *store.Record) CertificateResponse {
	return CertificateResponse{
		SubjectSystemID: rec.SubjectSystemID,
		CertificateType: rec.CertificateType,
		CreatedAt:       claims.ToEpochSeconds(rec.CreatedAt),
		Document:        string(rec.SignedDocument),
		ShareURL:        pipeline.ShareURL(s.origin, rec.Key()),
	}
}

func pathKey(r *http.Request) store.Key {
	return store.Key{
		SubjectSystemID: chi.URLParam(r, "userId"),
		CertificateType: chi.URLParam(r, "type"),
	}
}

func (s *Server) queryKey(r *http.Request) store.Key {
	q := r.URL.Query()
	key := store.Key{SubjectSystemID: q.Get("userId"), CertificateType: q.Get("type")}
	if key.CertificateType == "" {
		key.CertificateType = s.pipeline.DefaultType()
	}
	return key
}

// ==== Helper Functions ====

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request",
			"failed to read request body")
		return false
	}
	defer r.Body.Close()

	if err := json.Unmarshal(body, v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json",
			"failed to parse request")
		return false
	}
	return true
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:     message,
		Code:      code,
		Timestamp: time.Now(),
	})
}
