package assist

import (
	"github.com/gin-gonic/gin"

	"github.com/zenithmed/registry-api/internal/assist"
	"github.com/zenithmed/registry-api/internal/notification"
	"github.com/zenithmed/registry-api/internal/registry"
	apperrors "github.com/zenithmed/registry-api/pkg/errors"
	"github.com/zenithmed/registry-api/pkg/httputil"
)

type Handler struct {
	client *assist.Client
	reg    *registry.Registry
	mailer *notification.Mailer
}

func NewHandler(client *assist.Client, reg *registry.Registry, mailer *notification.Mailer) *Handler {
	return &Handler{client: client, reg: reg, mailer: mailer}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/assist/parse", h.ParseIntake)
	r.GET("/assist/summary", h.Summary)
}

type parseRequest struct {
	Text string `json:"text" binding:"required"`
}

// ParseIntake extracts a structured appointment from free text. A nil parse
// result is a benign no-op for the terminal, so it maps to success with null
// data rather than an error status.
func (h *Handler) ParseIntake(c *gin.Context) {
	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest(err.Error(), err))
		return
	}

	parsed := h.client.ParseAppointmentText(c.Request.Context(), req.Text)
	httputil.RespondWithSuccess(c, parsed)
}

func (h *Handler) Summary(c *gin.Context) {
	summary := h.client.Summarize(c.Request.Context(), h.reg.Appointments(), 20)

	if c.Query("email") == "true" {
		if err := h.mailer.SendSummary(summary); err != nil {
			httputil.RespondWithSuccess(c, gin.H{"summary": summary, "emailed": false})
			return
		}
		httputil.RespondWithSuccess(c, gin.H{"summary": summary, "emailed": h.mailer.Enabled()})
		return
	}

	httputil.RespondWithSuccess(c, gin.H{"summary": summary})
}
