package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zenithmed/registry-api/internal/model"
)

// JWTService issues and validates role session tokens. A "stay signed in"
// token gets the extended expiry so the terminal survives reloads.
type JWTService interface {
	GenerateToken(role model.Role, staySignedIn bool) (string, error)
	ValidateToken(token string) (model.Role, error)
}

type Config struct {
	Secret         string
	Expiry         time.Duration
	ExtendedExpiry time.Duration
}

type jwtService struct {
	cfg Config
}

func NewJWTService(cfg Config) JWTService {
	if cfg.Expiry <= 0 {
		cfg.Expiry = 12 * time.Hour
	}
	if cfg.ExtendedExpiry <= 0 {
		cfg.ExtendedExpiry = 30 * 24 * time.Hour
	}
	return &jwtService{cfg: cfg}
}

func (s *jwtService) GenerateToken(role model.Role, staySignedIn bool) (string, error) {
	expiry := s.cfg.Expiry
	if staySignedIn {
		expiry = s.cfg.ExtendedExpiry
	}

	claims := jwt.MapClaims{
		"role": string(role),
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(expiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.Secret))
}

func (s *jwtService) ValidateToken(tokenStr string) (model.Role, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token claims")
	}

	roleStr, _ := claims["role"].(string)
	role := model.Role(roleStr)
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", roleStr)
	}

	return role, nil
}
