package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/ruslan20200/ios-messages-generator/internal/config"
	"github.com/ruslan20200/ios-messages-generator/internal/handler"
	"github.com/ruslan20200/ios-messages-generator/internal/metrics"
	"github.com/ruslan20200/ios-messages-generator/internal/middleware"
	"github.com/ruslan20200/ios-messages-generator/internal/storage"
)

// authAPI объединяет то, что нужно обработчикам входа и проверке токена.
type authAPI interface {
	handler.AuthAPI
	middleware.Authenticator
}

func newRouter(cfg *config.Config, authSvc authAPI, adminSvc handler.AdminAPI, attempts storage.AttemptStore) http.Handler {
	authH := handler.NewAuthHandler(authSvc, handler.CookieOptions{Name: cfg.Auth.CookieName, Secure: cfg.Auth.CookieSecure})
	adminH := handler.NewAdminHandler(adminSvc)
	configH := handler.NewConfigHandler(cfg)

	r := chi.NewRouter()
	r.Use(middleware.TrustedRealIP(cfg.TrustedProxies))
	r.Use(middleware.RecoverJSON)
	r.Use(middleware.RequestLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.With(middleware.InternalOnly(cfg.MetricsSecret)).Handle("/metrics", metrics.Handler())
	r.Get("/api/auth/config", configH.GetAuthConfig)

	r.With(middleware.LoginRateLimit(attempts, cfg.RateLimit.LoginMax, cfg.RateLimit.LoginWindow)).
		Post("/api/auth/login", authH.Login)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(authSvc, cfg.Auth.CookieName))
		r.Get("/api/auth/me", authH.Me)
		r.Post("/api/auth/logout", authH.Logout)

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Get("/users", adminH.ListUsers)
			r.Post("/users", adminH.CreateUser)
			r.Delete("/users/{id}", adminH.DeleteUser)
			r.Post("/users/{id}/reset-device", adminH.ResetDevice)
			r.Post("/users/{id}/extend", adminH.Extend)
			r.Get("/sessions", adminH.ListSessions)
			r.Delete("/sessions/{id}", adminH.DeleteSession)
			r.Post("/cleanup-expired", adminH.CleanupExpired)
			r.Get("/actions", adminH.ListActions)
		})
	})

	return r
}
