package router

import (
	"context"
	"time"

	"github.com/Mussapinga011/PartQuip-sub000/internal/config"
	"github.com/Mussapinga011/PartQuip-sub000/internal/handler"
	"github.com/Mussapinga011/PartQuip-sub000/internal/middleware"
	"github.com/Mussapinga011/PartQuip-sub000/internal/realtime"
	"github.com/Mussapinga011/PartQuip-sub000/internal/repository"
	"github.com/Mussapinga011/PartQuip-sub000/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the infrastructure pieces the router wires into handlers.
// Redis is optional; without it change events only reach this instance.
type Deps struct {
	Repos     *repository.Registry
	Hub       *realtime.Hub
	Publisher realtime.Publisher
	Checks    map[string]handler.HealthCheck
}

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB, Publisher ← Redis/Hub
func New(cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())

	// ── Services ─────────────────────────────────────────────────────────────
	collectionSvc := service.NewCollectionService(deps.Repos, deps.Publisher)

	// ── Handlers ─────────────────────────────────────────────────────────────
	collectionsH := handler.NewCollectionsHandler(collectionSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(deps.Checks))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW, middleware.RateLimiter(cfg.RateLimitPerMinute, time.Minute))
	{
		v1.GET("/realtime", middleware.RequireRole(service.RoleTerminal, service.RoleAdmin), handler.Realtime(deps.Hub))

		colls := v1.Group("/collections/:collection", middleware.RequireRole(service.RoleTerminal, service.RoleAdmin))
		{
			colls.GET("", collectionsH.List)
			colls.POST("", collectionsH.Insert)
			colls.PUT("/:id", collectionsH.Upsert)
			colls.PATCH("/:id", collectionsH.Update)
			colls.DELETE("/:id", collectionsH.Delete)
		}
	}

	return r
}

// HealthChecks builds the /health probes for the database and, when set, Redis.
func HealthChecks(db *gorm.DB, rdb *redis.Client) map[string]handler.HealthCheck {
	checks := map[string]handler.HealthCheck{
		"db": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return checks
}
