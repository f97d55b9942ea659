package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/ruslan20200/ios-messages-generator/internal/middleware"
	"github.com/ruslan20200/ios-messages-generator/internal/model"
	"github.com/ruslan20200/ios-messages-generator/internal/service"
)

// AuthAPI - операции входа, которые нужны обработчикам (service.AuthService).
type AuthAPI interface {
	Login(ctx context.Context, req service.LoginRequest) (*service.LoginResult, error)
	Logout(ctx context.Context, sessionID int64) error
	CurrentUser(ctx context.Context, userID int64) (*model.User, error)
}

// CookieOptions - cookie, в которую дублируется токен для браузерного клиента.
type CookieOptions struct {
	Name   string
	Secure bool
}

type AuthHandler struct {
	svc    AuthAPI
	cookie CookieOptions
}

func NewAuthHandler(svc AuthAPI, cookie CookieOptions) *AuthHandler {
	return &AuthHandler{svc: svc, cookie: cookie}
}

type loginRequest struct {
	Login    string `json:"login" validate:"required,max=128"`
	Password string `json:"password" validate:"required,max=72"`
	DeviceID string `json:"deviceId" validate:"required,max=256"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	User      *model.User `json:"user"`
	SessionID int64       `json:"sessionId"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

type meResponse struct {
	User      *model.User `json:"user"`
	SessionID int64       `json:"sessionId"`
	DeviceID  string      `json:"deviceId"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.svc.Login(r.Context(), service.LoginRequest{
		Login:     req.Login,
		Password:  req.Password,
		DeviceID:  req.DeviceID,
		IP:        middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.setCookie(w, res.Token, res.ExpiresAt)
	writeJSON(w, http.StatusOK, loginResponse{Token: res.Token, User: res.User, SessionID: res.SessionID, ExpiresAt: res.ExpiresAt})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.GetIdentity(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	u, err := h.svc.CurrentUser(r.Context(), id.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{User: u, SessionID: id.SessionID, DeviceID: id.DeviceID})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.GetIdentity(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.Logout(r.Context(), id.SessionID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.clearCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AuthHandler) setCookie(w http.ResponseWriter, token string, expires time.Time) {
	if h.cookie.Name == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter) {
	if h.cookie.Name == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
