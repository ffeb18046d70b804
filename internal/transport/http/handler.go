// Package httptransport is the thin HTTP layer over the issuance,
// verification, and rendering workflows. Handlers decode, delegate, and
// encode; no workflow logic lives here.
package httptransport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"certchain/internal/certificate"
	"certchain/internal/certificate/store"
	"certchain/internal/identity"
	"certchain/internal/issuance"
	"certchain/internal/ledger"
	"certchain/internal/platform/middleware"
	"certchain/internal/render"
	"certchain/internal/verification"
	"certchain/pkg/domain"
	dErrors "certchain/pkg/domain-errors"
	"certchain/pkg/platform/httputil"
)

// IdentityService exposes the wallet binding.
type IdentityService interface {
	Snapshot() identity.Snapshot
	Connect(ctx context.Context) identity.Snapshot
	Mode() ledger.Mode
}

// DraftService manages issuance sessions.
type DraftService interface {
	Create() *issuance.Session
	Get(id domain.SessionID) (*issuance.Session, error)
	Submit(ctx context.Context, id domain.SessionID) (*issuance.Session, error)
}

type Verifier interface {
	Verify(ctx context.Context, certificateID string) (*verification.Result, error)
}

// RecordFinder looks up records seeded by issuance or verification.
type RecordFinder interface {
	Find(ctx context.Context, certificateID string) (store.Entry, error)
}

type Exporter interface {
	Export(ctx context.Context, target *render.Target) (*render.Artifact, error)
}

// Services are the collaborators of a Handler.
type Services struct {
	Identity IdentityService
	Drafts   DraftService
	Verifier Verifier
	Records  RecordFinder
	Exporter Exporter
}

type Handler struct {
	Services
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithClock sets the clock used for the issue date shown on previews.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

func NewHandler(s Services, opts ...Option) *Handler {
	h := &Handler{
		Services: s,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the workflow routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/identity", h.handleIdentity)
	r.Post("/identity/connect", h.handleConnect)

	r.Post("/drafts", h.handleCreateDraft)
	r.Route("/drafts/{id}", func(r chi.Router) {
		r.Get("/", h.handleGetDraft)
		r.Put("/fields/{field}", h.handleUpdateField)
		r.Post("/submit", h.handleSubmit)
		r.Get("/layout", h.handleDraftLayout)
		r.Get("/artifact", h.handleDraftArtifact)
	})

	r.Post("/verify", h.handleVerify)
	r.Get("/certificates/{certificateID}/artifact", h.handleCertificateArtifact)
}

// IdentityResponse is the wallet binding as shown to clients.
type IdentityResponse struct {
	identity.Snapshot
	NetworkName string      `json:"network_name,omitempty"`
	Mode        ledger.Mode `json:"mode"`
}

func (h *Handler) identityResponse(snap identity.Snapshot) IdentityResponse {
	resp := IdentityResponse{Snapshot: snap, Mode: h.Identity.Mode()}
	if snap.NetworkID != 0 {
		resp.NetworkName = identity.NetworkName(snap.NetworkID)
	}
	return resp
}

func (h *Handler) handleIdentity(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.identityResponse(h.Identity.Snapshot()))
}

// handleConnect is the explicit retry affordance for connectivity errors.
// The outcome, including a failed connection, is reported in the snapshot.
func (h *Handler) handleConnect(w http.ResponseWriter, r *http.Request) {
	snap := h.Identity.Connect(r.Context())
	if snap.State == identity.StateError {
		h.logger.WarnContext(r.Context(), "wallet connection failed",
			"message", snap.Message,
			"request_id", middleware.GetRequestID(r.Context()),
		)
	}
	httputil.WriteJSON(w, http.StatusOK, h.identityResponse(snap))
}

func (h *Handler) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	s := h.Drafts.Create()
	w.Header().Set("Location", "/drafts/"+s.ID().String())
	httputil.WriteJSON(w, http.StatusCreated, s.View())
}

func (h *Handler) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s.View())
}

type fieldRequest struct {
	Value string `json:"value"`
}

func (h *Handler) handleUpdateField(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[fieldRequest](w, r, h.logger)
	if !ok {
		return
	}
	field := certificate.Field(chi.URLParam(r, "field"))
	if err := s.Update(field, req.Value); err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s.View())
}

// handleSubmit validates synchronously and hands the ledger call to the
// background; clients poll the draft for the outcome.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	s, err := h.Drafts.Submit(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/drafts/"+id.String())
	httputil.WriteJSON(w, http.StatusAccepted, s.View())
}

func (h *Handler) handleDraftLayout(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, render.Compose(s.Draft().Record(), render.WithClock(h.now)))
}

// handleDraftArtifact exports the preview of the current draft. It does not
// require the certificate to have been issued.
func (h *Handler) handleDraftArtifact(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.export(w, r, s.Draft().Record())
}

type verifyRequest struct {
	CertificateID string `json:"certificate_id"`
}

// VerifyResponse adds display helpers to a verification result.
type VerifyResponse struct {
	*verification.Result
	Details          *verification.Details `json:"details,omitempty"`
	TransactionShort string                `json:"transaction_short,omitempty"`
	ExplorerURL      string                `json:"explorer_url,omitempty"`
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[verifyRequest](w, r, h.logger)
	if !ok {
		return
	}
	result, err := h.Verifier.Verify(r.Context(), req.CertificateID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := VerifyResponse{
		Result:           result,
		TransactionShort: verification.AbbreviateRef(result.TransactionRef),
		ExplorerURL:      verification.ExplorerURL(result.TransactionRef),
	}
	if result.Record != nil {
		details := verification.DisplayDetails(*result.Record)
		resp.Details = &details
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// handleCertificateArtifact renders a record previously issued or verified
// by this process.
func (h *Handler) handleCertificateArtifact(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseCertificateID(chi.URLParam(r, "certificateID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	entry, err := h.Records.Find(r.Context(), id.String())
	if err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeNotFound, "certificate has not been issued or verified here"))
		return
	}
	if entry.TransactionRef != "" {
		w.Header().Set("X-Transaction-Ref", entry.TransactionRef)
	}
	h.export(w, r, entry.Record)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request, record certificate.Record) {
	target := render.Mount(render.Compose(record, render.WithClock(h.now)))
	artifact, err := h.Exporter.Export(r.Context(), target)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+artifact.Name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(artifact.PDF)))
	w.Header().Set("X-Content-CID", artifact.CID.String())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifact.PDF)
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (domain.SessionID, bool) {
	id, err := domain.ParseSessionID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return domain.SessionID{}, false
	}
	return id, true
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*issuance.Session, bool) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return nil, false
	}
	s, err := h.Drafts.Get(id)
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	return s, true
}

// writeError logs input errors at info and everything else at warn or error.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	attrs := []any{
		"code", dErrors.CodeOf(err),
		"error", err,
		"request_id", middleware.GetRequestID(ctx),
	}
	switch code := dErrors.CodeOf(err); {
	case dErrors.IsUserCorrectable(err), code == dErrors.CodeConflict:
		h.logger.InfoContext(ctx, "request rejected", attrs...)
	case code == dErrors.CodeInternal:
		h.logger.ErrorContext(ctx, "request failed", attrs...)
	default:
		h.logger.WarnContext(ctx, "request failed", attrs...)
	}
	httputil.WriteError(w, err)
}
