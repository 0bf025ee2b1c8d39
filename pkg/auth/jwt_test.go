package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenithmed/registry-api/internal/model"
)

func TestGenerateAndValidateToken(t *testing.T) {
	svc := NewJWTService(Config{Secret: "test-secret"})

	token, err := svc.GenerateToken(model.RoleDoctor, false)
	require.NoError(t, err)

	role, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, model.RoleDoctor, role)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	issuer := NewJWTService(Config{Secret: "issuer-secret"})
	verifier := NewJWTService(Config{Secret: "other-secret"})

	token, err := issuer.GenerateToken(model.RoleReceptionist, false)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	svc := NewJWTService(Config{Secret: "test-secret"})

	claims := jwt.MapClaims{
		"role": string(model.RoleDoctor),
		"iat":  time.Now().Add(-2 * time.Hour).Unix(),
		"exp":  time.Now().Add(-time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateRejectsUnknownRole(t *testing.T) {
	svc := NewJWTService(Config{Secret: "test-secret"})

	claims := jwt.MapClaims{
		"role": "janitor",
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc := NewJWTService(Config{Secret: "test-secret"})

	_, err := svc.ValidateToken("not.a.token")
	assert.Error(t, err)
}
