package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/zenithmed/registry-api/internal/handler"
	appointmentHandler "github.com/zenithmed/registry-api/internal/handler/appointment"
	assistHandler "github.com/zenithmed/registry-api/internal/handler/assist"
	authHandler "github.com/zenithmed/registry-api/internal/handler/auth"
	clinicstateHandler "github.com/zenithmed/registry-api/internal/handler/clinicstate"
	serviceHandler "github.com/zenithmed/registry-api/internal/handler/service"
	"github.com/zenithmed/registry-api/internal/middleware"
	"github.com/zenithmed/registry-api/internal/model"
)

type Config struct {
	RateLimit rate.Limit
	RateBurst int
	CORS      middleware.CORSConfig
}

type Router struct {
	engine       *gin.Engine
	auth         *middleware.AuthMiddleware
	authH        *authHandler.Handler
	appointmentH *appointmentHandler.Handler
	serviceH     *serviceHandler.Handler
	clinicStateH *clinicstateHandler.Handler
	assistH      *assistHandler.Handler
	healthH      *handler.HealthHandler
	config       Config
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	authH *authHandler.Handler,
	appointmentH *appointmentHandler.Handler,
	serviceH *serviceHandler.Handler,
	clinicStateH *clinicstateHandler.Handler,
	assistH *assistHandler.Handler,
	healthH *handler.HealthHandler,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)

	return &Router{
		engine:       gin.New(),
		auth:         auth,
		authH:        authH,
		appointmentH: appointmentH,
		serviceH:     serviceH,
		clinicStateH: clinicStateH,
		assistH:      assistH,
		healthH:      healthH,
		config:       config,
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) Setup(promRegistry *prometheus.Registry) {
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.Logger())
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.CORS(r.config.CORS))

	if r.config.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  r.config.RateLimit,
			Burst: r.config.RateBurst,
		})
		r.engine.Use(limiter.RateLimit())
	}

	r.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})))

	public := r.engine.Group("/api/v1")
	r.healthH.RegisterRoutes(public)
	r.authH.RegisterRoutes(public)

	// Any signed-in terminal can read state and use the assist surface.
	anyRole := r.engine.Group("/api/v1")
	anyRole.Use(r.auth.RequireRole())
	anyRole.GET("/appointments", r.appointmentH.ListAppointments)
	anyRole.GET("/services", r.serviceH.ListServices)
	anyRole.GET("/currencies", r.serviceH.ListCurrencies)
	anyRole.GET("/clinic-state", r.clinicStateH.GetWorkDay)
	r.assistH.RegisterRoutes(anyRole)

	// Front desk owns appointment lifecycle and the service catalog.
	frontDesk := r.engine.Group("/api/v1")
	frontDesk.Use(r.auth.RequireRole(model.RoleReceptionist))
	frontDesk.POST("/appointments", r.appointmentH.CreateAppointment)
	frontDesk.DELETE("/appointments/:id", r.appointmentH.DeleteAppointment)
	frontDesk.POST("/services", r.serviceH.CreateService)
	frontDesk.DELETE("/services/:id", r.serviceH.DeleteService)

	// Edits come from the front desk, status changes from the clinical
	// terminal; both use the same full-overwrite endpoint.
	editors := r.engine.Group("/api/v1")
	editors.Use(r.auth.RequireRole(model.RoleReceptionist, model.RoleDoctor))
	editors.PUT("/appointments/:id", r.appointmentH.UpdateAppointment)

	clinical := r.engine.Group("/api/v1")
	clinical.Use(r.auth.RequireRole(model.RoleDoctor))
	clinical.PUT("/clinic-state", r.clinicStateH.SetWorkDay)
}
