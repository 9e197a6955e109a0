// Package httpapi exposes the account and academic flows over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"campusauth/internal/academic"
	"campusauth/internal/account"
	"campusauth/internal/auth"
	"campusauth/internal/httpmiddleware"
	"campusauth/internal/metrics"
)

// Options carries the router settings that come from configuration.
type Options struct {
	ServiceName        string
	CORSOrigins        []string
	AcademicWriteRoles []string
}

// Deps are the collaborators the handlers call into. Limiters and Ready are
// optional.
type Deps struct {
	Accounts      *account.Service
	Academic      *academic.Service
	Signer        *auth.Signer
	Metrics       *metrics.Metrics
	GlobalLimiter httpmiddleware.Limiter
	OTPLimiter    httpmiddleware.Limiter
	// Ready reports backing service health for /healthz.
	Ready func(ctx context.Context) map[string]bool
}

type handler struct {
	opts Options
	deps Deps
}

// NewRouter builds the gin engine with every route and middleware attached.
func NewRouter(opts Options, deps Deps) *gin.Engine {
	registerValidators()
	if opts.ServiceName == "" {
		opts.ServiceName = "uniz-auth-service"
	}
	h := &handler{opts: opts, deps: deps}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/health", "/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware(opts.CORSOrigins))
	r.Use(securityHeaders())
	if deps.Metrics != nil {
		r.Use(deps.Metrics.GinMiddleware())
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
	if deps.GlobalLimiter != nil {
		r.Use(httpmiddleware.RateLimit(deps.GlobalLimiter, "global"))
	}

	r.GET("/health", h.health)
	r.GET("/healthz", h.ready)

	r.POST("/login", h.login)
	r.POST("/signup", h.signup)
	otpRequest := []gin.HandlerFunc{h.requestOTP}
	if deps.OTPLimiter != nil {
		otpRequest = append([]gin.HandlerFunc{httpmiddleware.RateLimit(deps.OTPLimiter, "otp")}, otpRequest...)
	}
	r.POST("/otp/request", otpRequest...)
	r.POST("/otp/verify", h.verifyOTP)
	r.POST("/password/reset", h.resetPassword)
	r.POST("/logout", h.logout)

	bearer := auth.BearerAuth(deps.Signer)
	r.GET("/grades", bearer, h.grades)
	r.GET("/attendance", bearer, h.attendance)
	r.GET("/subjects", bearer, h.subjects)

	writes := r.Group("/")
	if len(opts.AcademicWriteRoles) > 0 {
		writes.Use(bearer, auth.RequireRole(opts.AcademicWriteRoles...))
	}
	writes.POST("/grades/add", h.addGrades)
	writes.POST("/attendance/add", h.addAttendance)

	return r
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": h.opts.ServiceName})
}

func (h *handler) ready(c *gin.Context) {
	checks := map[string]bool{}
	if h.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		checks = h.deps.Ready(ctx)
	}
	status := http.StatusOK
	for _, ok := range checks {
		if !ok {
			status = http.StatusServiceUnavailable
		}
	}
	resp := gin.H{"status": "ok"}
	if status != http.StatusOK {
		resp["status"] = "degraded"
	}
	for name, ok := range checks {
		resp[name] = ok
	}
	c.JSON(status, resp)
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
