// Package handler exposes the escrow engine over HTTP. Participants act under
// their JWT identity; account cancellation sits behind the admin token.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"conveyr/internal/escrow/models"
	"conveyr/internal/escrow/service"
	"conveyr/internal/platform/metrics"
	"conveyr/internal/platform/middleware"
	id "conveyr/pkg/domain"
	dErrors "conveyr/pkg/domain-errors"
	"conveyr/pkg/platform/httputil"
	adminmw "conveyr/pkg/platform/middleware/admin"
	authmw "conveyr/pkg/platform/middleware/auth"
	"conveyr/pkg/platform/middleware/metadata"
	"conveyr/pkg/platform/middleware/request"
	"conveyr/pkg/platform/middleware/requesttime"
	"conveyr/pkg/requestcontext"
)

// Service is the escrow operation surface the handler depends on.
type Service interface {
	CreateEscrowAccount(ctx context.Context, params service.CreateAccountParams) (*models.EscrowAccount, error)
	GetEscrowAccount(ctx context.Context, escrowID id.EscrowID) (*models.EscrowAccount, error)
	GetEscrowSummary(ctx context.Context, escrowID id.EscrowID) (*models.Summary, error)
	GetTransactionEscrows(ctx context.Context, transactionID id.TransactionID) ([]*models.EscrowAccount, error)
	GetParticipantEscrows(ctx context.Context, participantID id.ParticipantID) ([]*models.EscrowAccount, error)
	CancelEscrowAccount(ctx context.Context, escrowID id.EscrowID, reason string) (*models.EscrowAccount, error)
	Deposit(ctx context.Context, escrowID id.EscrowID, params service.DepositParams) (*models.EscrowAccount, error)
	AddCondition(ctx context.Context, escrowID id.EscrowID, spec models.ConditionSpec) (*models.EscrowAccount, error)
	MarkConditionMet(ctx context.Context, escrowID id.EscrowID, conditionID id.ConditionID, params service.VerifyConditionParams) (*models.EscrowAccount, error)
	RequestRelease(ctx context.Context, escrowID id.EscrowID, params service.RequestReleaseParams) (*models.ReleaseRequest, error)
	ApproveRelease(ctx context.Context, escrowID id.EscrowID, releaseID id.ReleaseID, params service.ApproveParams) (*models.ReleaseRequest, error)
	RejectRelease(ctx context.Context, escrowID id.EscrowID, releaseID id.ReleaseID, params service.RejectParams) (*models.ReleaseRequest, error)
	RetryRelease(ctx context.Context, escrowID id.EscrowID, releaseID id.ReleaseID, requestedBy id.ParticipantID) (*models.ReleaseRequest, error)
}

// Handler handles escrow endpoints.
type Handler struct {
	logger       *slog.Logger
	escrow       Service
	metrics      *metrics.Metrics
	jwtValidator authmw.JWTValidator
	adminToken   string
}

func New(
	escrow Service,
	logger *slog.Logger,
	m *metrics.Metrics,
	jwtValidator authmw.JWTValidator,
	adminToken string,
) *Handler {
	return &Handler{
		logger:       logger,
		escrow:       escrow,
		metrics:      m,
		jwtValidator: jwtValidator,
		adminToken:   adminToken,
	}
}

// Register mounts the escrow routes on the given router.
func (h *Handler) Register(r chi.Router) {
	escrowRouter := chi.NewRouter()
	escrowRouter.Use(middleware.Recovery(h.logger))
	escrowRouter.Use(request.RequestID)
	escrowRouter.Use(middleware.Logger(h.logger))
	escrowRouter.Use(middleware.Timeout(30 * time.Second))
	escrowRouter.Use(middleware.ContentTypeJSON)
	escrowRouter.Use(middleware.Latency(h.metrics))
	escrowRouter.Use(requesttime.Middleware)
	escrowRouter.Use(metadata.ClientMetadata)
	escrowRouter.Use(authmw.RequireAuth(h.jwtValidator, h.logger))

	escrowRouter.Post("/escrows", h.handleCreateEscrow)
	escrowRouter.Get("/escrows", h.handleListParticipantEscrows)
	escrowRouter.Get("/escrows/{escrowID}", h.handleGetEscrow)
	escrowRouter.Get("/escrows/{escrowID}/summary", h.handleGetSummary)
	escrowRouter.Get("/transactions/{transactionID}/escrows", h.handleListTransactionEscrows)
	escrowRouter.Post("/escrows/{escrowID}/deposits", h.handleDeposit)
	escrowRouter.Post("/escrows/{escrowID}/conditions", h.handleAddCondition)
	escrowRouter.Post("/escrows/{escrowID}/conditions/{conditionID}/verify", h.handleVerifyCondition)
	escrowRouter.Post("/escrows/{escrowID}/releases", h.handleCreateRelease)
	escrowRouter.Post("/escrows/{escrowID}/releases/{releaseID}/approvals", h.handleApproveRelease)
	escrowRouter.Post("/escrows/{escrowID}/releases/{releaseID}/reject", h.handleRejectRelease)
	escrowRouter.Post("/escrows/{escrowID}/releases/{releaseID}/retry", h.handleRetryRelease)

	adminRouter := chi.NewRouter()
	adminRouter.Use(middleware.Recovery(h.logger))
	adminRouter.Use(request.RequestID)
	adminRouter.Use(middleware.Logger(h.logger))
	adminRouter.Use(middleware.Timeout(30 * time.Second))
	adminRouter.Use(middleware.ContentTypeJSON)
	adminRouter.Use(middleware.Latency(h.metrics))
	adminRouter.Use(requesttime.Middleware)
	adminRouter.Use(adminmw.RequireAdminToken(h.adminToken, h.logger))
	adminRouter.Post("/escrows/{escrowID}/cancel", h.handleCancelEscrow)

	r.Mount("/", escrowRouter)
	r.Mount("/admin", adminRouter)
}

func (h *Handler) handleCreateEscrow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateEscrowRequest
	if !h.decode(ctx, w, r, &req) {
		return
	}
	params, err := req.ToParams()
	if err != nil {
		h.writeError(ctx, w, err, "create escrow")
		return
	}

	account, err := h.escrow.CreateEscrowAccount(ctx, params)
	if err != nil {
		h.writeError(ctx, w, err, "create escrow")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, account)
}

func (h *Handler) handleGetEscrow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	escrowID, ok := h.escrowID(ctx, w, r)
	if !ok {
		return
	}

	account, err := h.escrow.GetEscrowAccount(ctx, escrowID)
	if err != nil {
		h.writeError(ctx, w, err, "get escrow")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, account)
}

func (h *Handler) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	escrowID, ok := h.escrowID(ctx, w, r)
	if !ok {
		return
	}

	summary, err := h.escrow.GetEscrowSummary(ctx, escrowID)
	if err != nil {
		h.writeError(ctx, w, err, "get escrow summary")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleListParticipantEscrows(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accounts, err := h.escrow.GetParticipantEscrows(ctx, requestcontext.ActorID(ctx))
	if err != nil {
		h.writeError(ctx, w, err, "list participant escrows")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Escrows: accounts})
}

func (h *Handler) handleListTransactionEscrows(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	transactionID, err := id.ParseTransactionID(chi.URLParam(r, "transactionID"))
	if err != nil {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "invalid transaction id"), "list transaction escrows")
		return
	}
	accounts, err := h.escrow.GetTransactionEscrows(ctx, transactionID)
	if err != nil {
		h.writeError(ctx, w, err, "list transaction escrows")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Escrows: accounts})
}

func (h *Handler) handleDeposit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	escrowID, ok := h.escrowID(ctx, w, r)
	if !ok {
		return
	}

	var req DepositRequest
	if !h.decode(ctx, w, r, &req) {
		return
	}
	params, err := req.ToParams()
	if err != nil {
		h.writeError(ctx, w, err, "deposit")
		return
	}

	account, err := h.escrow.Deposit(ctx, escrowID, params)
	if err != nil {
		h.writeError(ctx, w, err, "deposit")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, account)
}

func (h *Handler) handleAddCondition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	escrowID, ok := h.escrowID(ctx, w, r)
	if !ok {
		return
	}

	var req ConditionInput
	if !h.decode(ctx, w, r, &req) {
		return
	}
	spec, err := req.toSpec()
	if err != nil {
		h.writeError(ctx, w, err, "add condition")
		return
	}

	account, err := h.escrow.AddCondition(ctx, escrowID, spec)
	if err != nil {
		h.writeError(ctx, w, err, "add condition")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, account)
}

func (h *Handler) handleVerifyCondition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	escrowID, ok := h.escrowID(ctx, w, r)
	if !ok {
		return
	}
	conditionID, err := id.ParseConditionID(chi.URLParam(r, "conditionID"))
	if err != nil {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "invalid condition id"), "verify condition")
		return
	}

	var req VerifyConditionRequest
	if !h.decode(ctx, w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(ctx, w, err, "verify condition")
		return
	}

	account, err := h.escrow.MarkConditionMet(ctx, escrowID, conditionID, service.VerifyConditionParams{
		VerifiedBy: requestcontext.ActorID(ctx),
		Evidence:   req.Evidence,
		Notes:      req.Notes,
	})
	if err != nil {
		h.writeError(ctx, w, err, "verify condition")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, account)
}

func (h *Handler) handleCreateRelease(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	escrowID, ok := h.escrowID(ctx, w, r)
	if !ok {
		return
	}

	var req CreateReleaseRequest
	if !h.decode(ctx, w, r, &req) {
		return
	}
	params, err := req.ToParams(requestcontext.ActorID(ctx))
	if err != nil {
		h.writeError(ctx, w, err, "request release")
		return
	}

	release, err := h.escrow.RequestRelease(ctx, escrowID, params)
	if err != nil {
		h.writeError(ctx, w, err, "request release")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, release)
}

func (h *Handler) handleApproveRelease(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	escrowID, releaseID, ok := h.releaseIDs(ctx, w, r)
	if !ok {
		return
	}

	var req ApproveReleaseRequest
	if !h.decode(ctx, w, r, &req) {
		return
	}

	release, err := h.escrow.ApproveRelease(ctx, escrowID, releaseID, service.ApproveParams{
		ApprovedBy: requestcontext.ActorID(ctx),
		Notes:      req.Notes,
		Signature:  req.Signature,
	})
	if err != nil {
		h.writeError(ctx, w, err, "approve release")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, release)
}

func (h *Handler) handleRejectRelease(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	escrowID, releaseID, ok := h.releaseIDs(ctx, w, r)
	if !ok {
		return
	}

	var req RejectReleaseRequest
	if !h.decode(ctx, w, r, &req) {
		return
	}

	release, err := h.escrow.RejectRelease(ctx, escrowID, releaseID, service.RejectParams{
		RejectedBy: requestcontext.ActorID(ctx),
		Reason:     req.Reason,
	})
	if err != nil {
		h.writeError(ctx, w, err, "reject release")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, release)
}

func (h *Handler) handleRetryRelease(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	escrowID, releaseID, ok := h.releaseIDs(ctx, w, r)
	if !ok {
		return
	}

	release, err := h.escrow.RetryRelease(ctx, escrowID, releaseID, requestcontext.ActorID(ctx))
	if err != nil {
		h.writeError(ctx, w, err, "retry release")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, release)
}

func (h *Handler) handleCancelEscrow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	escrowID, ok := h.escrowID(ctx, w, r)
	if !ok {
		return
	}

	var req CancelEscrowRequest
	if !h.decode(ctx, w, r, &req) {
		return
	}

	account, err := h.escrow.CancelEscrowAccount(ctx, escrowID, req.Reason)
	if err != nil {
		h.writeError(ctx, w, err, "cancel escrow")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, account)
}

type listResponse struct {
	Escrows []*models.EscrowAccount `json:"escrows"`
}

func (h *Handler) escrowID(ctx context.Context, w http.ResponseWriter, r *http.Request) (id.EscrowID, bool) {
	escrowID, err := id.ParseEscrowID(chi.URLParam(r, "escrowID"))
	if err != nil {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "invalid escrow id"), "parse path")
		return escrowID, false
	}
	return escrowID, true
}

func (h *Handler) releaseIDs(ctx context.Context, w http.ResponseWriter, r *http.Request) (id.EscrowID, id.ReleaseID, bool) {
	escrowID, ok := h.escrowID(ctx, w, r)
	if !ok {
		return escrowID, id.ReleaseID{}, false
	}
	releaseID, err := id.ParseReleaseID(chi.URLParam(r, "releaseID"))
	if err != nil {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "invalid release id"), "parse path")
		return escrowID, releaseID, false
	}
	return escrowID, releaseID, true
}

func (h *Handler) decode(ctx context.Context, w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.logger.WarnContext(ctx, "invalid request body",
			"request_id", request.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return false
	}
	return true
}

// writeError logs the failure and writes the standard error envelope. Client
// errors log at warn, internal ones at error.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error, op string) {
	code := dErrors.CodeOf(err)
	attrs := []any{
		"request_id", request.GetRequestID(ctx),
		"error", err.Error(),
	}
	if code == dErrors.CodeInternal || code == dErrors.CodePaymentFailed {
		h.logger.ErrorContext(ctx, "failed to "+op, attrs...)
	} else {
		h.logger.WarnContext(ctx, "failed to "+op, attrs...)
	}
	httputil.WriteError(w, err)
}
