package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Результаты входа (метка result у LoginAttempts).
const (
	LoginOK                 = "ok"
	LoginInvalidCredentials = "invalid_credentials"
	LoginDeviceInUse        = "device_in_use"
	LoginExpired            = "expired"
	LoginRateLimited        = "rate_limited"
	LoginError              = "error"
)

var (
	// LoginAttempts - попытки входа по результату.
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_login_total",
			Help: "Total number of login attempts by result",
		},
		[]string{"result"},
	)

	// AuthRejections - отказы при проверке токена (reason: token, session, inactive, device_in_use, expired).
	AuthRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_reject_total",
			Help: "Total number of rejected authenticated requests by reason",
		},
		[]string{"reason"},
	)

	// AdminActions - выполненные административные действия.
	AdminActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_admin_actions_total",
			Help: "Total number of admin actions by kind",
		},
		[]string{"action"},
	)

	// CleanupSessions - сессии, затронутые очисткой просроченных аккаунтов.
	CleanupSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_cleanup_sessions_total",
			Help: "Sessions deactivated or deleted by expired-account cleanup",
		},
		[]string{"mode"},
	)
)

// Handler отдаёт метрики в формате Prometheus.
func Handler() http.Handler {
	return promhttp.Handler()
}

// LoginResultForStatus переводит HTTP-статус отказа политики в метку результата.
func LoginResultForStatus(status int) string {
	switch status {
	case http.StatusForbidden:
		return LoginDeviceInUse
	case http.StatusGone:
		return LoginExpired
	default:
		return LoginError
	}
}
