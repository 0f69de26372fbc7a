package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jack/golang-campaign-redirect-service/internal/cache"
	"github.com/jack/golang-campaign-redirect-service/internal/config"
	"github.com/jack/golang-campaign-redirect-service/internal/handler"
	"github.com/jack/golang-campaign-redirect-service/internal/logging"
	"github.com/jack/golang-campaign-redirect-service/internal/middleware"
	"github.com/jack/golang-campaign-redirect-service/internal/repository"
	"github.com/jack/golang-campaign-redirect-service/internal/repository/migrations"
	"github.com/jack/golang-campaign-redirect-service/internal/scheduler"
	"github.com/jack/golang-campaign-redirect-service/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logWriter, logCloser := logging.Setup(&cfg.Log)
	defer logCloser.Close()
	gin.DefaultWriter = logWriter
	gin.DefaultErrorWriter = logWriter

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	store, closeStore := openStore(cfg)
	defer closeStore()

	// Redis 為選配：沒有 Redis 時不做限流，點擊暫存留在本機記憶體。
	var redisRepo *repository.RedisRepository
	if cfg.Redis.Host != "" {
		redisRepo, err = repository.NewRedisRepository(&cfg.Redis, cfg.App.InstanceID)
		switch {
		case err == nil:
			defer redisRepo.Close()
			log.Println("Connected to Redis")
		case cfg.Clicks.Buffer == "redis":
			log.Fatalf("Failed to connect to Redis: %v", err)
		default:
			log.Printf("Redis unavailable, continuing without it: err=%v", err)
			redisRepo = nil
		}
	}

	var pending cache.PendingClicks = cache.NewMemoryPending()
	if cfg.Clicks.Buffer == "redis" {
		if redisRepo == nil {
			log.Fatalf("CLICK_BUFFER=redis requires REDIS_HOST")
		}
		pending = redisRepo
		log.Printf("Click buffer: redis instance=%s", cfg.App.InstanceID)
	}

	readCache := cache.New(cfg.Cache.TTL, time.Now)
	if readCache.TTL() > 0 {
		log.Printf("Read cache enabled: ttl=%s", readCache.TTL())
	}

	svc := service.New(store, readCache, pending, service.Options{
		BatchThreshold: cfg.Clicks.BatchThreshold,
	})

	clickSyncScheduler := scheduler.NewClickSyncScheduler(svc, cfg.Clicks.FlushInterval)
	clickSyncScheduler.Start()

	if err := handler.RegisterValidations(); err != nil {
		log.Fatalf("Failed to register validations: %v", err)
	}

	var (
		apiMW      []gin.HandlerFunc
		redirectMW []gin.HandlerFunc
		pinger     handler.Pinger
	)
	if redisRepo != nil {
		rateLimiter := middleware.NewRateLimiter(redisRepo.Client(), &cfg.RateLimit)
		apiMW = append(apiMW, rateLimiter.Middleware("api"))
		redirectMW = append(redirectMW, rateLimiter.Middleware("redirect"))
		pinger = redisRepo
	}

	h := handler.NewHandler(svc, pinger)

	router := gin.New()

	// panic 時記錄細節，對外只回固定格式。
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Printf("panic recovered: path=%s err=%v", c.Request.URL.Path, recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Internal server error",
		})
	}))
	router.Use(middleware.RequestID())
	router.Use(gin.Logger())
	router.Use(middleware.Metrics())

	// 若服務部署在 Nginx/Proxy 後面，需設定可信任來源，否則 ClientIP() 可能被偽造。
	router.SetTrustedProxies([]string{"127.0.0.1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"})

	h.RegisterRoutes(router, apiMW, redirectMW)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	SetupSwagger(router, &cfg.Auth)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.App.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	drain(ctx, clickSyncScheduler.Stop, svc)

	log.Println("Server exited properly")
}

// drain stops the periodic flush and writes whatever is still buffered. A flush can
// start status sync tasks, so the task runner is waited on again after the last one.
func drain(ctx context.Context, stopScheduler func(), svc *service.Service) {
	// 停止排程會再做一次 flush；之後等背景任務把剩下的點擊寫完。
	stopScheduler()
	svc.Tasks().Wait()
	if _, err := svc.FlushPendingClickUpdates(ctx); err != nil {
		log.Printf("Final click flush failed: %v", err)
	}
	svc.Tasks().Wait()
}

// openStore returns the configured store and its cleanup.
func openStore(cfg *config.Config) (repository.Store, func()) {
	if cfg.Store.Driver == "memory" {
		log.Println("Using in-memory store")
		return repository.NewMemoryRepository(), func() {}
	}

	if cfg.Store.AutoMigrate {
		m, err := migrations.New(cfg.Postgres.DSN())
		if err != nil {
			log.Fatalf("Failed to prepare migrations: %v", err)
		}
		if err := m.Up(); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		if err := m.Close(); err != nil {
			log.Printf("Failed to close migrator: %v", err)
		}
	}

	postgresRepo, err := repository.NewPostgresRepository(&cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	log.Println("Connected to PostgreSQL")
	return postgresRepo, postgresRepo.Close
}
