package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/stemsi/ielts-backend/internal/config"
	"github.com/stemsi/ielts-backend/internal/handler"
	"github.com/stemsi/ielts-backend/internal/metrics"
	"github.com/stemsi/ielts-backend/internal/middleware"
	"github.com/stemsi/ielts-backend/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Exam    *handler.ExamHandler
	Admin   *handler.AdminHandler
	Markup  *handler.MarkupHandler
	Writing *handler.WritingHandler
	WS      *handler.WSHandler
	System  *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background work owned by the router, such as rate limiter
// cleanup.
func SetupRouter(
	ctx context.Context,
	auth middleware.TokenValidator,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(metrics.Middleware())
	router.Use(middleware.Brotli())

	router.NoRoute(func(c *gin.Context) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	})

	router.GET("/health", middleware.NoStore(), handlers.System.Health)
	router.GET("/metrics", metrics.Handler())

	authLimiter := middleware.NewRateLimiter(ctx, cfg.AuthRatePerMinute, cfg.AuthRateBurst)
	requireUser := []gin.HandlerFunc{middleware.RequireAuth(auth), middleware.CheckSession(auth)}

	// ─── 1. Auth Group ─────────────────────────────────────────────────
	authAPI := router.Group("/api/v1/auth")
	{
		authAPI.POST("/register", authLimiter.Middleware(), handlers.Auth.Register)
		authAPI.POST("/login", authLimiter.Middleware(), handlers.Auth.Login)

		authAPI.GET("/me", append(requireUser, handlers.Auth.Me)...)
		authAPI.POST("/logout", append(requireUser, handlers.Auth.Logout)...)
	}

	// ─── 2. Public Exam Catalogue ──────────────────────────────────────
	publicAPI := router.Group("/api/v1/exams")
	publicAPI.Use(middleware.CacheControl(30))
	{
		publicAPI.GET("", handlers.Exam.ListExams)
		publicAPI.GET("/:id", handlers.Exam.GetExam)
		publicAPI.GET("/:id/items", handlers.Exam.ListItems)
	}

	// ─── 3. Learner Group (JWT + live session) ─────────────────────────
	userAPI := router.Group("/api/v1")
	userAPI.Use(requireUser...)
	userAPI.Use(middleware.NoStore())
	{
		userAPI.POST("/exams/submit", handlers.Exam.SubmitAttempt)

		userAPI.GET("/attempts", handlers.Exam.ListMyAttempts)
		userAPI.GET("/attempts/:attempt_id", handlers.Exam.GetAttempt)
		userAPI.GET("/users/:user_id/attempts", handlers.Exam.ListUserAttempts)

		userAPI.POST("/markup/render", handlers.Markup.Render)

		userAPI.POST("/writing/grade", handlers.Writing.Grade)
		userAPI.GET("/writing/feedback/:exam_id", handlers.Writing.Feedback)
	}

	// ─── 4. WebSocket Group ────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(auth))
	{
		ws.GET("/writing/feedback/:exam_id/stream", handlers.WS.FeedbackStream)
	}

	// ─── 5. Admin Group (JWT + role) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(requireUser...)
	adminAPI.Use(middleware.RequireAdmin(), middleware.NoStore())
	{
		adminAPI.POST("/exams", handlers.Admin.CreateExam)
		adminAPI.GET("/exams/:id", handlers.Admin.GetExam)
		adminAPI.PUT("/exams/:id", handlers.Admin.UpdateExam)
		adminAPI.DELETE("/exams/:id", handlers.Admin.DeleteExam)

		adminAPI.POST("/exams/:id/items", handlers.Admin.CreateItem)
		adminAPI.PUT("/items/:item_id", handlers.Admin.UpdateItem)
		adminAPI.DELETE("/items/:item_id", handlers.Admin.DeleteItem)

		adminAPI.GET("/system/status", handlers.System.Status)
	}

	return router
}
