package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ruslan20200/ios-messages-generator/internal/logger"
	"github.com/ruslan20200/ios-messages-generator/internal/service"
)

type errorResponse struct {
	Error string `json:"error"`
}

var validate = newValidator()

// newValidator - валидатор тел запросов; поля в ошибках называются по json-тегам.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("writeJSON encode: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeBody читает JSON и проверяет теги validate. Ошибку можно отдавать клиенту как есть.
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			return err
		}
		parts := make([]string, 0, len(ve))
		for _, fe := range ve {
			if fe.Param() != "" {
				parts = append(parts, fe.Field()+": "+fe.Tag()+"="+fe.Param())
			} else {
				parts = append(parts, fe.Field()+": "+fe.Tag())
			}
		}
		return errors.New(strings.Join(parts, "; "))
	}
	return nil
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

// clampLimit ограничивает limit из запроса диапазоном 1..max.
func clampLimit(n, max int) int {
	if n < 1 {
		return 1
	}
	if n > max {
		return max
	}
	return n
}

func pathID(r *http.Request, key string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// writeServiceError переводит ошибку сервиса в HTTP-статус. Неизвестные ошибки - 500 без подробностей.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if pe, ok := service.AsPolicyError(err); ok {
		writeError(w, pe.Status(), pe.Error())
		return
	}
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, service.MsgInvalidCredentials)
	case errors.Is(err, service.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "Пользователь не найден")
	case errors.Is(err, service.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "Сессия не найдена")
	case errors.Is(err, service.ErrLoginTaken):
		writeError(w, http.StatusConflict, "Логин уже занят")
	case errors.Is(err, service.ErrMissingFields),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrInvalidExtend),
		errors.Is(err, service.ErrInvalidCleanupMode),
		errors.Is(err, service.ErrSelfSession),
		errors.Is(err, service.ErrSelfDelete):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
