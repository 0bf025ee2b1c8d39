package service

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zenithmed/registry-api/internal/gateway"
	"github.com/zenithmed/registry-api/internal/model"
	"github.com/zenithmed/registry-api/internal/registry"
	apperrors "github.com/zenithmed/registry-api/pkg/errors"
	"github.com/zenithmed/registry-api/pkg/httputil"
	"github.com/zenithmed/registry-api/pkg/validator"
)

const echoWarning = "write committed but not yet visible; the change feed has not echoed it"

type Handler struct {
	reg       *registry.Registry
	gw        *gateway.Gateway
	validator *validator.Validator
}

func NewHandler(reg *registry.Registry, gw *gateway.Gateway, v *validator.Validator) *Handler {
	return &Handler{reg: reg, gw: gw, validator: v}
}

func (h *Handler) ListServices(c *gin.Context) {
	httputil.RespondWithSuccess(c, h.reg.Services())
}

// ListCurrencies returns the static display-formatting choices. The
// selection itself is a terminal preference, never stored remotely.
func (h *Handler) ListCurrencies(c *gin.Context) {
	httputil.RespondWithSuccess(c, model.Currencies)
}

func (h *Handler) CreateService(c *gin.Context) {
	var req model.CreateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest(err.Error(), err))
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest(err.Error(), err))
		return
	}

	token, err := h.gw.AddService(c.Request.Context(), req.Name, req.BaseCost)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.respondAfterEcho(c, token, http.StatusCreated)
}

// DeleteService removes a catalog entry. Appointments referencing the
// service name keep their snapshot text.
func (h *Handler) DeleteService(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("invalid service ID", err))
		return
	}

	token, err := h.gw.RemoveService(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.respondAfterEcho(c, token, http.StatusOK)
}

func (h *Handler) respondAfterEcho(c *gin.Context, token string, okStatus int) {
	if err := h.gw.Await(c.Request.Context(), token); err != nil {
		if errors.Is(err, apperrors.ErrEchoTimeout) {
			httputil.RespondWithAccepted(c, h.reg.Services(), echoWarning)
			return
		}
		httputil.RespondWithError(c, apperrors.NewInternal(err))
		return
	}

	c.JSON(okStatus, httputil.Response{
		Success: true,
		Data:    h.reg.Services(),
	})
}
