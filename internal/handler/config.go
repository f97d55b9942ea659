package handler

import (
	"net/http"

	"github.com/ruslan20200/ios-messages-generator/internal/config"
)

// ConfigHandler отдаёт публичные параметры входа для клиента (без авторизации).
type ConfigHandler struct {
	cfg *config.Config
}

func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

// GetAuthConfig возвращает срок жизни токена и лимит попыток входа.
func (h *ConfigHandler) GetAuthConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"tokenTtlHours": int(h.cfg.Auth.TokenTTL.Hours()),
		"loginRateLimit": map[string]int{
			"max":       h.cfg.RateLimit.LoginMax,
			"windowSec": int(h.cfg.RateLimit.LoginWindow.Seconds()),
		},
	})
}
