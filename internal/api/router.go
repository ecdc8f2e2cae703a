// Package api wires together all HTTP routes for the admin backend.
//
// Route grouping philosophy:
//   - /health, /ready, and /version are public so load balancers and the
//     game bot can probe the service without credentials.
//   - Everything under /api/v1/admin requires authentication (session JWT or
//     API key) AND a privileged Discord guild role. Authorization is checked
//     per request, not per session, so a revoked staff role takes effect
//     within the privilege cache TTL.
package api

import (
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/tavernkeep/tavernkeep/internal/api/admin"
	"github.com/tavernkeep/tavernkeep/internal/audit"
	"github.com/tavernkeep/tavernkeep/internal/auth"
	"github.com/tavernkeep/tavernkeep/internal/config"
	"github.com/tavernkeep/tavernkeep/internal/docstore"
	"github.com/tavernkeep/tavernkeep/internal/gateway"
	"github.com/tavernkeep/tavernkeep/internal/middleware"
	"github.com/tavernkeep/tavernkeep/internal/model"
	"github.com/tavernkeep/tavernkeep/internal/shard"
)

// BackgroundServices holds resources that must be stopped during graceful
// shutdown. The caller (cmd/server) is responsible for calling Shutdown()
// when the process receives a termination signal.
type BackgroundServices struct {
	shipper       *audit.MultiShipper
	localLimiter  *middleware.LocalRateLimiter
	importLimiter *middleware.LocalRateLimiter
	redisClient   *redis.Client
}

// Shutdown stops background resources. It should be called after the HTTP
// server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.shipper != nil {
		if err := bg.shipper.Close(); err != nil {
			slog.Warn("audit shipper close failed", "error", err)
		}
	}
	if bg.localLimiter != nil {
		bg.localLimiter.Stop()
	}
	if bg.importLimiter != nil {
		bg.importLimiter.Stop()
	}
	if bg.redisClient != nil {
		if err := bg.redisClient.Close(); err != nil {
			slog.Warn("redis close failed", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, conn *sqlx.DB) (*gin.Engine, *BackgroundServices) {
	router := gin.New()

	// Document store and entity catalog. The registry's shard probe is the
	// store's connectivity check, so per-owner shard operations surface a
	// store-unavailable error instead of failing mid-request.
	store := docstore.New(conn)
	registry := model.NewCatalogRegistry()
	registry.SetShardProbe(store.Connected)

	// Audit trail: synchronous DB insert plus best-effort external shipping.
	shipperConfigs := make([]audit.ShipperConfig, 0, len(cfg.Audit.Shippers))
	for _, sc := range cfg.Audit.Shippers {
		shipperConfigs = append(shipperConfigs, toShipperConfig(sc))
	}
	shipper, err := audit.NewMultiShipper(shipperConfigs)
	if err != nil {
		log.Fatalf("Failed to initialize audit shippers: %v", err)
	}
	auditRepo := audit.NewRepository(conn)
	trail := audit.NewTrail(auditRepo, shipper)

	// Record gateway and inventory shard adapter.
	stores := gateway.NewStoreResolver(store)
	gw := gateway.New(registry, stores, trail)

	resolver, err := shard.NewResolver(store, cfg.Admin.ShardCacheSize)
	if err != nil {
		log.Fatalf("Failed to initialize shard resolver: %v", err)
	}
	adapter := shard.New(conn, store, resolver, registry, stores, trail)

	keyStore := auth.NewAPIKeyStore(conn)

	// Rate limiting: Redis-backed when configured, per-instance otherwise.
	var (
		limiter      middleware.Limiter
		localLimiter *middleware.LocalRateLimiter
		redisClient  *redis.Client
	)
	limitCfg := middleware.DefaultRateLimitConfig()
	if cfg.Security.RateLimiting.RequestsPerMinute > 0 {
		limitCfg.RequestsPerMinute = cfg.Security.RateLimiting.RequestsPerMinute
	}
	if cfg.Security.RateLimiting.Burst > 0 {
		limitCfg.BurstSize = cfg.Security.RateLimiting.Burst
	}
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		limiter = middleware.NewRedisRateLimiter(redisClient, limitCfg)
		slog.Info("rate limiting backed by redis", "addr", cfg.Redis.Addr)
	} else {
		localLimiter = middleware.NewLocalRateLimiter(limitCfg)
		limiter = localLimiter
	}

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(store))

	// Readiness check endpoint
	router.GET("/ready", readinessHandler(store))

	// API version
	router.GET("/version", versionHandler())

	// Initialize admin handlers
	recordHandlers := admin.NewRecordHandlers(gw, cfg.Admin.MaxPageSize, cfg.Admin.MaxImportBatch)
	schemaHandlers := admin.NewSchemaHandlers(registry)
	auditHandlers := admin.NewAuditHandlers(auditRepo, cfg.Admin.MaxPageSize)
	inventoryHandlers := admin.NewInventoryHandlers(adapter, cfg.Admin.MaxPageSize)
	apiKeyHandlers := admin.NewAPIKeyHandlers(keyStore, cfg.Auth.APIKeys.Prefix)

	// Admin API endpoints
	adminGroup := router.Group("/api/v1/admin")
	// Bulk import gets a stricter bucket on top of the group limiter; a
	// single import can fan out into hundreds of record writes.
	importLimit := gin.HandlerFunc(func(c *gin.Context) { c.Next() })
	var importLimiter *middleware.LocalRateLimiter
	if cfg.Security.RateLimiting.Enabled {
		adminGroup.Use(middleware.RateLimitMiddleware(limiter))
		importLimiter = middleware.NewLocalRateLimiter(middleware.ImportRateLimitConfig())
		importLimit = middleware.RateLimitMiddleware(importLimiter)
	}
	adminGroup.Use(middleware.AuthMiddleware(keyStore))
	if cfg.Auth.RoleService.URL != "" {
		roleClient := auth.NewRoleServiceClient(
			cfg.Auth.RoleService.URL,
			cfg.Auth.RoleService.Token,
			cfg.Auth.RoleService.Timeout,
		)
		checker := auth.NewPrivilegeChecker(roleClient, cfg.Auth.RoleService.PrivilegeCacheTTL)
		adminGroup.Use(middleware.RequirePrivilege(checker))
	} else {
		// Without a role service every authenticated actor is privileged.
		// Acceptable for local development only.
		slog.Warn("role service not configured, privilege checks disabled")
	}
	{
		// Schema introspection
		adminGroup.GET("/models", schemaHandlers.ListTypes())
		adminGroup.GET("/models/:entity", schemaHandlers.Describe())

		// Generic record CRUD
		adminGroup.GET("/models/:entity/records", recordHandlers.List())
		adminGroup.POST("/models/:entity/records", recordHandlers.Create())
		adminGroup.GET("/models/:entity/records/:id", recordHandlers.Get())
		adminGroup.PATCH("/models/:entity/records/:id", recordHandlers.Update())
		adminGroup.DELETE("/models/:entity/records/:id", recordHandlers.Delete())
		adminGroup.POST("/models/:entity/records/bulk-delete", recordHandlers.BulkDelete())
		adminGroup.POST("/models/:entity/records/import", importLimit, recordHandlers.Import())

		// Audit trail
		adminGroup.GET("/audit", auditHandlers.List())

		// Inventory shards
		adminGroup.GET("/inventories", inventoryHandlers.ListOwners())
		adminGroup.GET("/inventories/:ownerId", inventoryHandlers.Get())
		adminGroup.POST("/inventories/:ownerId/items", inventoryHandlers.AddItem())
		adminGroup.PATCH("/inventories/:ownerId/items/:itemId", inventoryHandlers.UpdateItem())
		adminGroup.DELETE("/inventories/:ownerId/items/:itemId", inventoryHandlers.DeleteItem())

		// API key management
		adminGroup.GET("/apikeys", apiKeyHandlers.List())
		adminGroup.POST("/apikeys", apiKeyHandlers.Create())
		adminGroup.DELETE("/apikeys/:id", apiKeyHandlers.Revoke())
	}

	bg := &BackgroundServices{
		shipper:       shipper,
		localLimiter:  localLimiter,
		importLimiter: importLimiter,
		redisClient:   redisClient,
	}

	return router, bg
}

// toShipperConfig converts the viper-shaped audit shipper config into the
// audit package's runtime form.
func toShipperConfig(sc config.AuditShipperConfig) audit.ShipperConfig {
	out := audit.ShipperConfig{
		Enabled: sc.Enabled,
		Type:    sc.Type,
	}
	if sc.Type == "syslog" {
		// A missing block means local delivery with defaults.
		out.Syslog = &audit.SyslogConfig{}
		if sc.Syslog != nil {
			out.Syslog = &audit.SyslogConfig{
				Network:  sc.Syslog.Network,
				Address:  sc.Syslog.Address,
				Tag:      sc.Syslog.Tag,
				Facility: sc.Syslog.Facility,
			}
		}
	}
	if sc.Webhook != nil {
		out.Webhook = &audit.WebhookConfig{
			URL:           sc.Webhook.URL,
			Headers:       sc.Webhook.Headers,
			Timeout:       time.Duration(sc.Webhook.TimeoutSecs) * time.Second,
			BatchSize:     sc.Webhook.BatchSize,
			FlushInterval: time.Duration(sc.Webhook.FlushInterval) * time.Second,
		}
	}
	if sc.File != nil {
		out.File = &audit.FileConfig{
			Path:       sc.File.Path,
			MaxSizeMB:  sc.File.MaxSizeMB,
			MaxBackups: sc.File.MaxBackups,
		}
	}
	return out
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
func healthCheckHandler(store *docstore.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !store.Connected() {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true"
// @Failure      503  {object}  map[string]interface{}  "ready: false"
// @Router       /ready [get]
func readinessHandler(store *docstore.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}
		if !store.Connected() {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /version [get]
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured request logging through the global
// slog handler configured in telemetry.SetupLogger.
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		requestID, _ := c.Get(middleware.RequestIDKey)
		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", latency),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", fmt.Sprintf("%v", requestID)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Check if origin is allowed
		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
