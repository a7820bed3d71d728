package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kaamsetu-in/kaamsetu/internal/config"
	"github.com/kaamsetu-in/kaamsetu/internal/models"
)

// ErrInvalidToken indicates a session token failed validation.
var ErrInvalidToken = errors.New("invalid session token")

// Claims carries the session identity inside a JWT.
type Claims struct {
	UserID uint64          `json:"uid"`
	Role   models.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs a session token for the user.
func IssueToken(user *models.User, cfg config.JWTConfig) (string, error) {
	if cfg.Secret == "" {
		return "", fmt.Errorf("auth: jwt secret not configured")
	}

	now := time.Now().UTC()
	claims := Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "kaamsetu",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.Expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, errSign := token.SignedString([]byte(cfg.Secret))
	if errSign != nil {
		return "", fmt.Errorf("auth: sign token: %w", errSign)
	}
	return signed, nil
}

// ParseToken validates a session token and returns its claims.
func ParseToken(raw string, cfg config.JWTConfig) (*Claims, error) {
	claims := &Claims{}
	token, errParse := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	})
	if errParse != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
