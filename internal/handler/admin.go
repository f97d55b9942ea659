package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/ruslan20200/ios-messages-generator/internal/middleware"
	"github.com/ruslan20200/ios-messages-generator/internal/model"
	"github.com/ruslan20200/ios-messages-generator/internal/service"
)

const (
	defaultSessionsLimit = 200
	maxSessionsLimit     = 1000
	defaultActionsLimit  = 100
	maxActionsLimit      = 500
)

// AdminAPI - административные операции (service.AdminService).
type AdminAPI interface {
	CreateUser(ctx context.Context, actorID int64, in service.CreateUserInput) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	ResetDevice(ctx context.Context, actorID, userID int64) (int64, error)
	ExtendExpiry(ctx context.Context, actorID, userID int64, in service.ExtendInput) (*model.User, error)
	DeleteUser(ctx context.Context, actorID, userID int64) error
	ListSessions(ctx context.Context, activeOnly bool, limit int) ([]model.Session, error)
	DeleteSession(ctx context.Context, actorID, currentSessionID, sessionID int64) error
	CleanupExpired(ctx context.Context, actorID *int64, mode service.CleanupMode) (*service.CleanupResult, error)
	ListActions(ctx context.Context, limit int) ([]model.AdminAction, error)
}

type AdminHandler struct {
	svc AdminAPI
}

func NewAdminHandler(svc AdminAPI) *AdminHandler {
	return &AdminHandler{svc: svc}
}

type createUserRequest struct {
	Login     string     `json:"login" validate:"required,max=128"`
	Password  string     `json:"password" validate:"required,max=72"`
	Role      model.Role `json:"role" validate:"omitempty,oneof=admin user"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

type extendRequest struct {
	Months    *int       `json:"months" validate:"omitempty,min=1,max=120"`
	Permanent bool       `json:"permanent"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

type cleanupRequest struct {
	Mode string `json:"mode" validate:"required,oneof=deactivate delete"`
}

// actor - id администратора из контекста. Без Authenticate сюда не попасть, но проверяем.
func actor(w http.ResponseWriter, r *http.Request) (*service.Identity, bool) {
	id, ok := middleware.GetIdentity(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	return id, true
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": list})
}

func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	var req createUserRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := h.svc.CreateUser(r.Context(), id.UserID, service.CreateUserInput{
		Login:     req.Login,
		Password:  req.Password,
		Role:      req.Role,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": u})
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	userID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if err := h.svc.DeleteUser(r.Context(), id.UserID, userID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AdminHandler) ResetDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	userID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	n, err := h.svc.ResetDevice(r.Context(), id.UserID, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessionsDeactivated": n})
}

func (h *AdminHandler) Extend(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	userID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req extendRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := h.svc.ExtendExpiry(r.Context(), id.UserID, userID, service.ExtendInput{
		Months:    req.Months,
		Permanent: req.Permanent,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (h *AdminHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	active := r.URL.Query().Get("active")
	activeOnly := active == "1" || active == "true"
	limit := clampLimit(queryInt(r, "limit", defaultSessionsLimit), maxSessionsLimit)
	list, err := h.svc.ListSessions(r.Context(), activeOnly, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": list})
}

func (h *AdminHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	sessionID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	if err := h.svc.DeleteSession(r.Context(), id.UserID, id.SessionID, sessionID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AdminHandler) CleanupExpired(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	var req cleanupRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.svc.CleanupExpired(r.Context(), &id.UserID, service.CleanupMode(req.Mode))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AdminHandler) ListActions(w http.ResponseWriter, r *http.Request) {
	limit := clampLimit(queryInt(r, "limit", defaultActionsLimit), maxActionsLimit)
	list, err := h.svc.ListActions(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": list})
}
