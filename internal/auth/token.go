package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ruslan20200/ios-messages-generator/internal/model"
)

const DefaultTokenTTL = 7 * 24 * time.Hour

var ErrInvalidToken = errors.New("invalid token")

// Claims - содержимое токена. Роль и устройство здесь только для справки:
// на каждом запросе они перечитываются из сессии и пользователя.
type Claims struct {
	UserID    int64      `json:"uid"`
	Role      model.Role `json:"role"`
	DeviceID  string     `json:"did"`
	SessionID int64      `json:"sid"`
	jwt.RegisteredClaims
}

type TokenConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
	Clock  func() time.Time
}

// TokenService выпускает и проверяет подписанные HS256 токены.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt: secret must be provided")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}
	return &TokenService{secret: []byte(cfg.Secret), issuer: cfg.Issuer, ttl: ttl, now: now}, nil
}

// Issue подписывает токен для сессии. Возвращает токен и момент его истечения.
func (s *TokenService) Issue(userID int64, role model.Role, deviceID string, sessionID int64) (string, time.Time, error) {
	if userID <= 0 || sessionID <= 0 || deviceID == "" || role == "" {
		return "", time.Time{}, errors.New("jwt: user, role, device and session are required")
	}
	now := s.now()
	exp := now.Add(s.ttl)
	claims := &Claims{
		UserID:    userID,
		Role:      role,
		DeviceID:  deviceID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse проверяет подпись, срок и наличие всех четырёх полей.
// Любая ошибка оборачивает ErrInvalidToken.
func (s *TokenService) Parse(raw string) (*Claims, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidToken)
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	var claims Claims
	_, err := jwt.NewParser(opts...).ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID <= 0 || claims.SessionID <= 0 || claims.DeviceID == "" || claims.Role == "" {
		return nil, fmt.Errorf("%w: missing claims", ErrInvalidToken)
	}
	return &claims, nil
}
