package main

import (
	"context"
	"esign-dashboard/internal/action"
	"esign-dashboard/internal/audit"
	"esign-dashboard/internal/auth"
	"esign-dashboard/internal/config"
	"esign-dashboard/internal/db"
	"esign-dashboard/internal/document"
	"esign-dashboard/internal/i18n"
	"esign-dashboard/internal/logger"
	"esign-dashboard/internal/metrics"
	"esign-dashboard/internal/middleware"
	"esign-dashboard/internal/sharelink"
	"esign-dashboard/internal/storage"
	"esign-dashboard/internal/team"
	"esign-dashboard/internal/user"
	"esign-dashboard/internal/worker"
	"esign-dashboard/redis"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()
	logger.Setup(cfg.Environment, cfg.LogLevel)

	// Connect to database
	database, err := db.ConnectDb(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("database unavailable")
	}
	defer db.CloseDb(database)

	// Migrate database schema
	if err := db.Migrate(database); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	// Seed database with initial data (for development)
	if cfg.Environment == "development" {
		db.SeedData(database)
	}

	cache := redis.NewCache(redis.Connect(cfg.RedisAddress))

	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	minioClient, err := storage.Connect(startCtx, cfg)
	cancelStart()
	if err != nil {
		log.Fatal().Err(err).Msg("object storage unavailable")
	}
	files := storage.NewFileStore(minioClient, cfg.MinioBucket)

	bundle, err := i18n.NewBundle()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load translations")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry)

	pool := worker.NewWorkerPool(cfg.WorkerPoolSize, 256)

	// Initialize repository
	userRepo := user.NewRepository(database)
	teamRepo := team.NewRepository(database)
	docRepo := document.NewRepository(database)
	shareRepo := sharelink.NewRepository(database)
	auditRepo := audit.NewRepository(database)

	// Initialize service
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	userService := user.NewService(userRepo)
	teamService := team.NewService(teamRepo)
	recorder := audit.NewRecorder(auditRepo, pool)
	docStore := document.NewStore(docRepo)
	shareService := sharelink.NewService(shareRepo, docStore, teamService, cache, cfg.CacheTTL, cfg.PublicURL)
	docService := document.NewService(docRepo, teamService, files, recorder, auditRepo, cache, cfg.CacheTTL)
	executor := action.NewExecutor(docStore, files, shareService, recorder, appMetrics)

	// Initialize handler
	userHandler := user.NewHandler(userService, tokens)
	teamHandler := team.NewHandler(teamService)
	docHandler := document.NewHandler(docService, executor, appMetrics)
	shareHandler := sharelink.NewHandler(shareService)

	authMiddleware := &middleware.Auth{
		UserService:    userService,
		Tokens:         tokens,
		InternalSecret: cfg.InternalSecret,
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	// cors setting
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept-Language"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: false,
	}

	if cfg.Environment == "development" {
		// Allow all origins in development
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = []string{cfg.FrontendAddress}
	}
	router.Use(cors.New(corsConfig))
	router.Use(middleware.Locale(bundle), middleware.ErrorHandler())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "cache": cache.Enabled(), "object_storage": minioClient != nil})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// User routes
	router.POST("/register", userHandler.Register)
	router.POST("/login", userHandler.Login)
	router.DELETE("/logout", authMiddleware.AuthMiddleWare(), userHandler.Logout)
	router.GET("/profile", authMiddleware.AuthMiddleWare(), userHandler.GetProfile)
	router.GET("/teams", authMiddleware.AuthMiddleWare(), teamHandler.ListMine)

	// Public share pages
	router.GET("/share/:slug", shareHandler.GetShared)

	// The primary action endpoints answer anonymous callers with no action
	router.GET("/documents/:id/action", authMiddleware.OptionalAuth(), docHandler.ShowAction)
	router.POST("/documents/:id/action", authMiddleware.OptionalAuth(), docHandler.ExecuteAction)

	documents := router.Group("/documents", authMiddleware.AuthMiddleWare())
	{
		documents.GET("", docHandler.ListDocuments)
		documents.POST("", docHandler.Create)
		documents.GET("/:id", docHandler.ShowDocument)
		documents.DELETE("/:id", docHandler.Delete)
		documents.GET("/:id/download", docHandler.Download)
		documents.POST("/:id/share", docHandler.Share)
		documents.POST("/:id/send", docHandler.Send)
		documents.POST("/:id/template", docHandler.SaveAsTemplate)
		documents.GET("/:id/audit-logs", docHandler.ListAuditLogs)
	}

	// internal use routes
	router.POST("/internal/recipients/:token/signed", authMiddleware.InternalAuthMiddleware(), docHandler.MarkSigned)

	// Server configuration
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router.Handler(),
	}

	// Start server
	go func() {
		log.Info().Str("port", cfg.ServerPort).Msg("Server listening")
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	// drain pending audit writes before the db closes
	pool.Shutdown()
	log.Info().Msg("Server shutdown complete")
}
