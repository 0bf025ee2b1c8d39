package appointment

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

// Handler reads from the local reconciled state and writes through the
// mutation gateway. After each write it waits for the feed echo so the
// terminal learns whether its change became visible.
type Handler struct {
	reg       *registry.Registry
	gw        *gateway.Gateway
	validator *validator.Validator
}

func NewHandler(reg *registry.Registry, gw *gateway.Gateway, v *validator.Validator) *Handler {
	return &Handler{reg: reg, gw: gw, validator: v}
}

// ListAppointments serves the mirror, newest first. An empty list is
// ambiguous between "no appointments" and "bulk load failed"; the client
// cannot tell the difference here.
func (h *Handler) ListAppointments(c *gin.Context) {
	httputil.RespondWithSuccess(c, h.reg.Appointments())
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest(err.Error(), err))
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest(err.Error(), err))
		return
	}

	token, err := h.gw.AddAppointment(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.respondAfterEcho(c, token, http.StatusCreated)
}

func (h *Handler) UpdateAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("invalid appointment ID", err))
		return
	}

	var req model.UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest(err.Error(), err))
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest(err.Error(), err))
		return
	}

	token, err := h.gw.UpdateAppointment(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.respondAfterEcho(c, token, http.StatusOK)
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("invalid appointment ID", err))
		return
	}

	token, err := h.gw.RemoveAppointment(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.respondAfterEcho(c, token, http.StatusOK)
}

func (h *Handler) respondAfterEcho(c *gin.Context, token string, okStatus int) {
	if err := h.gw.Await(c.Request.Context(), token); err != nil {
		if errors.Is(err, apperrors.ErrEchoTimeout) {
			httputil.RespondWithAccepted(c, h.reg.Appointments(), echoWarning)
			return
		}
		httputil.RespondWithError(c, apperrors.NewInternal(err))
		return
	}

	c.JSON(okStatus, httputil.Response{
		Success: true,
		Data:    h.reg.Appointments(),
	})
}
