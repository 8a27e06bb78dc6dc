package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"slidecraft/internal/apperr"
)

// Claims: содержимое сессионного токена. Роль кладётся для клиента,
// сервер всё равно перечитывает пользователя из БД на каждом запросе.
type Claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Tokens выпускает и проверяет подписанные HS256 токены.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock подменяет часы (для тестов истечения срока).
func (t *Tokens) WithClock(now func() time.Time) *Tokens {
	cp := *t
	cp.now = now
	return &cp
}

func (t *Tokens) TTL() time.Duration { return t.ttl }

// Issue возвращает токен и момент его истечения.
func (t *Tokens) Issue(userID, role string) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	s, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return s, exp, nil
}

// Verify проверяет подпись и срок. Ошибки: apperr.Unauthorized с причиной
// apperr.ErrInvalidToken или apperr.ErrExpiredToken.
func (t *Tokens) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, apperr.Unauthorized("Access denied. No token provided.", apperr.ErrMissingToken)
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, apperr.Unauthorized("Token expired.", apperr.ErrExpiredToken)
	case err != nil || !token.Valid:
		return nil, apperr.Unauthorized("Invalid token.", apperr.ErrInvalidToken)
	}
	if claims.UserID == "" {
		return nil, apperr.Unauthorized("Invalid token.", apperr.ErrInvalidToken)
	}
	return claims, nil
}

// VerifyOptional: те же проверки, но без ошибки: невалидный токен
// означает «нет пользователя».
func (t *Tokens) VerifyOptional(tokenString string) (*Claims, bool) {
	if tokenString == "" {
		return nil, false
	}
	c, err := t.Verify(tokenString)
	if err != nil {
		return nil, false
	}
	return c, true
}
