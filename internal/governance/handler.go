package governance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/aiox-platform/governor/internal/api"
	"github.com/aiox-platform/governor/internal/auth"
	"github.com/aiox-platform/governor/internal/governance/access"
	"github.com/aiox-platform/governor/internal/governance/retention"
	"github.com/aiox-platform/governor/internal/users"
)

type AccessDecider interface {
	DecideAccess(ctx context.Context, userID uuid.UUID, requestType string) access.Decision
}

type RetentionRunner interface {
	GetConversationsToDelete(ctx context.Context, userID uuid.UUID, policy *users.Policy) ([]retention.Candidate, error)
	DeleteOldConversations(ctx context.Context, userID uuid.UUID) (retention.Result, error)
}

type PolicyService interface {
	GetPolicy(ctx context.Context, id uuid.UUID) (*users.Policy, error)
	UpdatePolicy(ctx context.Context, id uuid.UUID, req *users.UpdatePolicyRequest) (*users.Policy, error)
}

// Handler provides HTTP handlers for access checks and retention.
type Handler struct {
	access    AccessDecider
	retention RetentionRunner
	policies  PolicyService
	validate  *validator.Validate
}

// NewHandler creates a new governance Handler.
func NewHandler(accessSvc AccessDecider, retentionSvc RetentionRunner, policies PolicyService) *Handler {
	return &Handler{
		access:    accessSvc,
		retention: retentionSvc,
		policies:  policies,
		validate:  validator.New(),
	}
}

// CheckAccess reports whether the caller may make a metered request of the
// given type. Denials are 403 with the denial code and the usage snapshot.
func (h *Handler) CheckAccess(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	d := h.access.DecideAccess(r.Context(), userID, r.URL.Query().Get("type"))
	if !d.Allowed {
		api.JSONErrorCode(w, http.StatusForbidden, string(d.Code), d.Message, d.Limits)
		return
	}

	api.JSON(w, http.StatusOK, d)
}

// GetSettings returns the caller's retention policy.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	policy, err := h.policies.GetPolicy(r.Context(), userID)
	if err != nil {
		h.handleUserError(w, "getting retention policy", err)
		return
	}

	api.JSON(w, http.StatusOK, policy)
}

// UpdateSettings replaces the caller's retention policy.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req users.UpdatePolicyRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	policy, err := h.policies.UpdatePolicy(r.Context(), userID, &req)
	if err != nil {
		h.handleUserError(w, "updating retention policy", err)
		return
	}

	api.JSON(w, http.StatusOK, policy)
}

// Preview lists the conversations a run would delete right now.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	candidates, err := h.retention.GetConversationsToDelete(r.Context(), userID, nil)
	if err != nil {
		h.handleUserError(w, "previewing retention", err)
		return
	}

	api.JSON(w, http.StatusOK, candidates)
}

// RunRetention deletes the caller's idle conversations now. The route is
// expected to sit behind a per-user rate limiter.
func (h *Handler) RunRetention(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	res, err := h.retention.DeleteOldConversations(r.Context(), userID)
	if err != nil {
		h.handleUserError(w, "running retention", err)
		return
	}

	if res.NotEnabled() {
		api.HandleError(w, api.NewCodedError(http.StatusBadRequest, api.CodeRetentionDisabled, retention.NotEnabledMessage))
		return
	}

	api.JSONWithMessage(w, http.StatusOK, summarize(res), res)
}

func (h *Handler) handleUserError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, users.ErrUserNotFound) {
		api.HandleError(w, api.NewNotFoundError("user not found"))
		return
	}
	slog.Error(op, "error", err)
	api.HandleError(w, api.ErrInternalServer)
}

func summarize(res retention.Result) string {
	msg := fmt.Sprintf("Successfully deleted %d %s.", res.DeletedCount, plural(res.DeletedCount, "conversation"))
	if n := len(res.Errors); n > 0 {
		msg += fmt.Sprintf(" %d %s could not be completed.", n, plural(n, "operation"))
	}
	return msg
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
