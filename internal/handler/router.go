package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"observe/dashboard/internal/activity"
	"observe/dashboard/internal/config"
	"observe/dashboard/internal/handler/middleware"
	"observe/dashboard/internal/service"
	"observe/dashboard/internal/session"
	jwtpkg "observe/dashboard/pkg/jwt"
	"observe/dashboard/pkg/response"
)

func SetupRouter(
	cfg *config.Config,
	logger *zap.Logger,
	jwtManager *jwtpkg.Manager,
	sessions *session.Manager,
	loading *activity.Indicator,
	dashboardService service.DashboardService,
) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	authHandler := NewAuthHandler(dashboardService)
	traceHandler := NewTraceHandler(dashboardService)
	photoHandler := NewPhotoHandler(dashboardService)
	userHandler := NewUserHandler(dashboardService)
	adminHandler := NewAdminHandler(dashboardService)

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")

	// Global loading indicator and live session count
	api.GET("/status", func(c *gin.Context) {
		response.Success(c, gin.H{
			"loading":  loading.Status(),
			"sessions": sessions.Len(),
		})
	})

	// Public auth routes
	api.POST("/auth/login", authHandler.Login)

	// Session routes
	protected := api.Group("")
	protected.Use(middleware.SessionAuth(jwtManager, sessions))
	{
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/profile", authHandler.Profile)

		protected.GET("/traces", traceHandler.List)
		protected.GET("/traces/:id", traceHandler.Get)
		protected.PATCH("/traces/:id", traceHandler.Update)
		protected.DELETE("/traces/:id", traceHandler.Delete)
		protected.GET("/traces/:id/josm", traceHandler.JOSM)
		protected.GET("/traces/:id/gpx", traceHandler.GPX)

		protected.GET("/photos", photoHandler.List)
		protected.GET("/photos/:id", photoHandler.Get)
		protected.PATCH("/photos/:id", photoHandler.Update)
		protected.DELETE("/photos/:id", photoHandler.Delete)
		protected.GET("/photos/:id/download", photoHandler.Download)

		protected.GET("/users", userHandler.List)
	}

	// Admin routes (session + Observe admin flag)
	admin := api.Group("")
	admin.Use(middleware.SessionAuth(jwtManager, sessions))
	admin.Use(middleware.AdminAuth())
	{
		admin.PATCH("/users/:id/role", userHandler.SetRole)
		admin.GET("/admin/audit", adminHandler.ListAudit)
	}

	return r
}
