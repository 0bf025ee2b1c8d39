package clinicstate

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/zenithmed/registry-api/internal/gateway"
	"github.com/zenithmed/registry-api/internal/model"
	"github.com/zenithmed/registry-api/internal/registry"
	apperrors "github.com/zenithmed/registry-api/pkg/errors"
	"github.com/zenithmed/registry-api/pkg/httputil"
)

type Handler struct {
	reg *registry.Registry
	gw  *gateway.Gateway
}

func NewHandler(reg *registry.Registry, gw *gateway.Gateway) *Handler {
	return &Handler{reg: reg, gw: gw}
}

func (h *Handler) GetWorkDay(c *gin.Context) {
	httputil.RespondWithSuccess(c, gin.H{"isWorkDayActive": h.reg.WorkDayActive()})
}

// SetWorkDay flips the shared singleton flag. Racing writers get
// last-writer-wins with no merge.
func (h *Handler) SetWorkDay(c *gin.Context) {
	var req model.SetWorkDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest(err.Error(), err))
		return
	}

	token, err := h.gw.SetWorkDayActive(c.Request.Context(), req.Active)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if err := h.gw.Await(c.Request.Context(), token); err != nil {
		if errors.Is(err, apperrors.ErrEchoTimeout) {
			httputil.RespondWithAccepted(c, gin.H{"isWorkDayActive": h.reg.WorkDayActive()},
				"write committed but not yet visible; the change feed has not echoed it")
			return
		}
		httputil.RespondWithError(c, apperrors.NewInternal(err))
		return
	}

	httputil.RespondWithSuccess(c, gin.H{"isWorkDayActive": h.reg.WorkDayActive()})
}
