// Package httpserver exposes the JobPilot HTTP API.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jobpilot/jobpilot/internal/errs"
	"github.com/jobpilot/jobpilot/internal/model"
	"github.com/jobpilot/jobpilot/internal/service"
	"github.com/jobpilot/jobpilot/internal/storage"
)

// maxUploadMemory bounds the in-memory part of multipart parsing; larger
// files spill to disk.
const maxUploadMemory = 4 << 20

// SignatureVerifier checks the HMAC on signed download links; the signer
// in internal/storage implements it.
type SignatureVerifier interface {
	Verify(key, expiresStr, sig string) error
}

var _ SignatureVerifier = (*storage.URLSigner)(nil)

// Server wires services into HTTP handlers.
type Server struct {
	tokens   service.TokenService
	cvs      service.CVService
	apps     service.ApplicationService
	mail     service.MailSender
	blobs    storage.Store
	verifier SignatureVerifier
	signKey  []byte
	ready    func(ctx context.Context) error
	log      *zap.Logger
}

// New constructs the HTTP server with injected services. ready reports
// whether downstream dependencies answer, for the readiness probe.
func New(tokens service.TokenService, cvs service.CVService, apps service.ApplicationService, mail service.MailSender, blobs storage.Store, verifier SignatureVerifier, signKey []byte, ready func(ctx context.Context) error, log *zap.Logger) *Server {
	return &Server{
		tokens:   tokens,
		cvs:      cvs,
		apps:     apps,
		mail:     mail,
		blobs:    blobs,
		verifier: verifier,
		signKey:  signKey,
		ready:    ready,
		log:      log,
	}
}

// Router assembles the route tree with middleware.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(Recover(s.log))
	r.Use(Logging(s.log))
	r.Use(Metrics)

	r.Get("/health/live", s.handleLive)
	r.Get("/health/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/cvs/files/*", s.handleDownload)

	r.Route("/api", func(r chi.Router) {
		r.Use(Auth(s.signKey))

		r.Post("/google/tokens", s.handleSaveTokens)
		r.Get("/google/status", s.handleStatus)
		r.Delete("/google/connection", s.handleDisconnect)

		r.Get("/gmail/check", s.handleGmailCheck)
		r.Post("/email/test", s.handleTestEmail)

		r.Post("/cvs", s.handleUploadCV)
		r.Get("/cvs", s.handleListCVs)
		r.Get("/cvs/{id}", s.handleCVURL)
		r.Delete("/cvs/{id}", s.handleDeleteCV)

		r.Post("/applications", s.handleCreateApplication)
		r.Get("/applications", s.handleListApplications)
	})

	return r
}

// --- Google connection ---

type saveTokensRequest struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// handleSaveTokens seeds the credential record after the OAuth consent
// callback.
func (s *Server) handleSaveTokens(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())

	var req saveTokensRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "malformed json")
		return
	}
	if err := s.tokens.SaveTokens(r.Context(), userID, req.AccessToken, req.RefreshToken, req.ExpiresAt); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())

	st, err := s.tokens.CheckConnectionStatus(r.Context(), userID)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())

	if err := s.tokens.Disconnect(r.Context(), userID); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGmailCheck is the cheap probe: with a fresh stored token it makes
// no provider call at all.
func (s *Server) handleGmailCheck(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())

	if _, err := s.tokens.GetValidAccessToken(r.Context(), userID); err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

type testEmailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (s *Server) handleTestEmail(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())

	var req testEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "malformed json")
		return
	}
	if req.To == "" {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "recipient is required")
		return
	}
	if err := s.mail.Send(r.Context(), userID, req.To, req.Subject, req.Body); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- CVs ---

type cvResponse struct {
	ID         uuid.UUID `json:"id"`
	FileName   string    `json:"file_name"`
	SizeBytes  int64     `json:"size_bytes"`
	UploadedAt time.Time `json:"uploaded_at"`
}

func toCVResponse(cv *model.CV) cvResponse {
	return cvResponse{ID: cv.ID, FileName: cv.FileName, SizeBytes: cv.SizeBytes, UploadedAt: cv.UploadedAt}
}

func (s *Server) handleUploadCV(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "expected multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "missing file field")
		return
	}
	defer file.Close()

	cv, err := s.cvs.Upload(r.Context(), userID, header.Filename, header.Size, file)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCVResponse(cv))
}

func (s *Server) handleListCVs(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())

	cvs, err := s.cvs.List(r.Context(), userID)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	out := make([]cvResponse, 0, len(cvs))
	for i := range cvs {
		out = append(out, toCVResponse(&cvs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCVURL(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())

	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "bad id")
		return
	}
	u, err := s.cvs.SignedURL(r.Context(), userID, id)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": u})
}

func (s *Server) handleDeleteCV(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())

	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "bad id")
		return
	}
	if err := s.cvs.Delete(r.Context(), userID, id); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDownload serves a blob addressed by a signed URL. No session auth;
// the HMAC and expiry in the query are the whole access control.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	key, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil || key == "" {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "bad key")
		return
	}
	q := r.URL.Query()
	if err := s.verifier.Verify(key, q.Get("expires"), q.Get("sig")); err != nil {
		s.writeErr(w, err)
		return
	}

	blob, err := s.blobs.Open(r.Context(), key)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	defer blob.Close()

	w.Header().Set("Content-Type", contentTypeByExt(key))
	w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(key)+`"`)
	if _, err := io.Copy(w, blob); err != nil {
		s.log.Warn("download interrupted", zap.String("key", key), zap.Error(err))
	}
}

func contentTypeByExt(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}

// --- Applications ---

type createApplicationRequest struct {
	CVID           uuid.UUID `json:"cv_id"`
	JobDescription string    `json:"job_description"`
	Recipient      string    `json:"recipient"`
}

type applicationResponse struct {
	ID             uuid.UUID `json:"id"`
	CVID           uuid.UUID `json:"cv_id"`
	JobDescription string    `json:"job_description"`
	Score          int       `json:"score"`
	DocumentURL    string    `json:"document_url"`
	EmailSent      bool      `json:"email_sent"`
	CreatedAt      time.Time `json:"created_at"`
}

func toApplicationResponse(app *model.Application) applicationResponse {
	return applicationResponse{
		ID:             app.ID,
		CVID:           app.CVID,
		JobDescription: app.JobDescription,
		Score:          app.Score,
		DocumentURL:    app.DocumentURL,
		EmailSent:      app.EmailSent,
		CreatedAt:      app.CreatedAt,
	}
}

func (s *Server) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())

	var req createApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "malformed json")
		return
	}
	app, err := s.apps.Create(r.Context(), userID, req.CVID, req.JobDescription, req.Recipient)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toApplicationResponse(app))
}

func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())

	apps, err := s.apps.List(r.Context(), userID)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	out := make([]applicationResponse, 0, len(apps))
	for i := range apps {
		out = append(out, toApplicationResponse(&apps[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// --- Health ---

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.ready(ctx); err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, "not_ready", "dependencies unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
}

// --- Error mapping ---

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// writeErr maps domain sentinels onto the HTTP surface. The three
// terminal credential states share 409 but carry distinct codes so the
// frontend can tell "connect" from "reconnect" from "support".
func (s *Server) writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		writeJSONError(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, errs.ErrUnauthorized):
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	case errors.Is(err, errs.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, errs.ErrNotConnected):
		writeJSONError(w, http.StatusConflict, "connect", "google account not connected")
	case errors.Is(err, errs.ErrReauthRequired):
		writeJSONError(w, http.StatusConflict, "reconnect", "google authorization expired, reconnect required")
	case errors.Is(err, errs.ErrCorruptCredential):
		writeJSONError(w, http.StatusConflict, "support", "stored credential unusable, contact support")
	case errors.Is(err, errs.ErrScopeMissing):
		writeJSONError(w, http.StatusConflict, "scope", "gmail send permission not granted")
	case errors.Is(err, errs.ErrProviderUnavailable):
		writeJSONError(w, http.StatusBadGateway, "provider_unavailable", "upstream provider unavailable, retry later")
	case errors.Is(err, errs.ErrStoreUnavailable):
		writeJSONError(w, http.StatusServiceUnavailable, "store_unavailable", "storage unavailable, retry later")
	default:
		s.log.Error("unhandled error", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Code: code, Error: msg})
}
