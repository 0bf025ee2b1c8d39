package auth

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/zenithmed/registry-api/internal/model"
	"github.com/zenithmed/registry-api/pkg/auth"
	apperrors "github.com/zenithmed/registry-api/pkg/errors"
	"github.com/zenithmed/registry-api/pkg/httputil"
	"github.com/zenithmed/registry-api/pkg/security"
)

// Handler is the role login gate. Roles may carry a bcrypt-hashed access
// code; a role with no configured hash logs in with no code, matching the
// open front-desk setup.
type Handler struct {
	jwt    auth.JWTService
	hasher security.AccessCodeHasher
	// role name -> bcrypt hash of its access code
	accessCodes map[model.Role]string
}

func NewHandler(jwt auth.JWTService, hasher security.AccessCodeHasher, accessCodes map[model.Role]string) *Handler {
	return &Handler{jwt: jwt, hasher: hasher, accessCodes: accessCodes}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/auth/login", h.Login)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest(err.Error(), err))
		return
	}

	if !req.Role.Valid() {
		httputil.RespondWithError(c, apperrors.NewBadRequest(fmt.Sprintf("unknown role %q", req.Role), nil))
		return
	}

	if hash, ok := h.accessCodes[req.Role]; ok && hash != "" {
		if err := h.hasher.Compare(hash, req.AccessCode); err != nil {
			httputil.RespondWithError(c, apperrors.Unauthorized(err))
			return
		}
	}

	token, err := h.jwt.GenerateToken(req.Role, req.StaySignedIn)
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewInternal(err))
		return
	}

	httputil.RespondWithSuccess(c, model.LoginResponse{
		Token: token,
		Role:  req.Role,
	})
}
