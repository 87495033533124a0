package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"

	"github.com/cppla/homedash/config"
	"github.com/cppla/homedash/controllers"
	"github.com/cppla/homedash/middleware"
	"github.com/cppla/homedash/services"
	"github.com/cppla/homedash/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(svc *services.HabitService) *gin.Engine {
	// Load config and set Gin mode from configuration
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl := utils.Logger
	if cfg.GinPath != "" {
		if l, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress); err == nil {
			gl = l
		} else {
			utils.Sugar.Warnf("gin access log disabled: %v", err)
		}
	}
	r.Use(ginzap.Ginzap(gl, time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(gl, false))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		// credentials cannot be combined with a wildcard origin
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	habitController := controllers.NewHabitController(svc)
	userController := controllers.NewUserController(svc)

	api := r.Group("/api/v1")
	api.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())

	protected.GET("/users/me", userController.Me)

	habits := protected.Group("/habits")
	habits.GET("", habitController.ListHabits)
	habits.POST("", habitController.CreateHabit)
	habits.GET("/summary", habitController.Summary)
	habits.GET("/badges", habitController.Badges)
	habits.GET("/challenges", habitController.Challenges)
	habits.GET("/:id", habitController.GetHabit)
	habits.PATCH("/:id", habitController.UpdateHabit)
	habits.DELETE("/:id", habitController.DeleteHabit)
	habits.POST("/:id/logs", habitController.LogCompletion)
	habits.GET("/:id/logs", habitController.ListLogs)
	habits.DELETE("/:id/logs/:logId", habitController.UndoLog)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
	})

	return r
}
