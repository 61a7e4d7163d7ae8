package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/studyhub/studyhub/handlers"
	"github.com/studyhub/studyhub/internal/catalog"
	"github.com/studyhub/studyhub/internal/config"
	"github.com/studyhub/studyhub/internal/database"
	"github.com/studyhub/studyhub/internal/identity"
	"github.com/studyhub/studyhub/internal/qa"
	"github.com/studyhub/studyhub/internal/remote"
	"github.com/studyhub/studyhub/internal/remote/docstore"
	"github.com/studyhub/studyhub/internal/sessions"
	"github.com/studyhub/studyhub/internal/storage"
	"github.com/studyhub/studyhub/internal/workspace"
	"github.com/studyhub/studyhub/pkg/logger"
	"github.com/studyhub/studyhub/pkg/metrics"
	"github.com/studyhub/studyhub/pkg/middleware"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"
)

var startTime = time.Now()

func main() {
	// initialize logging (can be controlled with LOG_LEVEL env: debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: keycloak=%v mongo=%v redis=%v minio=%v", cfg.Keycloak.URL != "", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.MinIO.Endpoint != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis is optional: it fans change notifications out across instances and
	// holds sessions, revocations and rate-limit counters.
	var rdb *redis.Client
	if addr := cfg.Redis.Addr(); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v; continuing without it", addr, err)
			_ = rdb.Close()
			rdb = nil
		} else {
			defer rdb.Close()
			logger.Infof("connected to Redis at %s", addr)
		}
	}

	var (
		engine      docstore.Engine
		sessionRepo sessions.Repository
		mongoClient *mongo.Client
	)
	if cfg.MongoDB.URI != "" {
		mongoClient, err = database.ConnectWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5, time.Second)
		if err != nil {
			logger.Fatalf("%v", err)
		}
		defer func() { _ = mongoClient.Disconnect(context.Background()) }()
		db := mongoClient.Database(cfg.MongoDB.Database)

		me := docstore.NewMongoEngine(db)
		if err := me.EnsureIndexes(ctx, "timestamp", catalog.Collection, qa.Collection); err != nil {
			logger.Warnf("ensure document indexes: %v", err)
		}
		engine = me

		mr := sessions.NewMongoRepository(db.Collection("sessions"))
		if err := mr.EnsureIndexes(ctx); err != nil {
			logger.Warnf("ensure session indexes: %v", err)
		}
		sessionRepo = mr
	} else {
		logger.Warnf("MONGODB_URI not set; documents and questions live in memory")
		engine = docstore.NewMemoryEngine()
	}
	// Prefer Redis-based sessions when configured (fast, in-memory)
	if rdb != nil {
		sessionRepo = sessions.NewRedisRepository(rdb, "session:")
	}
	if sessionRepo == nil {
		sessionRepo = sessions.NewMemoryRepository()
	}

	var notifier docstore.Notifier = docstore.NewLocalNotifier()
	if rdb != nil {
		notifier = docstore.NewRedisNotifier(rdb, docstore.DefaultChannel)
	}
	docs, err := docstore.New(engine, notifier)
	if err != nil {
		logger.Fatalf("document store: %v", err)
	}
	defer docs.Close()

	var blobs remote.BlobStore
	if cfg.MinIO.Endpoint != "" {
		ms, err := storage.NewMinIOStore(ctx, cfg.MinIO)
		if err != nil {
			logger.Fatalf("minio: %v", err)
		}
		blobs = ms
	} else {
		logger.Warnf("MINIO_ENDPOINT not set; files live in memory")
		blobs = storage.NewMemoryStore(cfg.MinIO.PublicURL)
	}

	provider, err := identityProvider(ctx, cfg)
	if err != nil {
		logger.Fatalf("identity provider: %v", err)
	}

	registry := workspace.NewRegistry(workspace.Deps{
		Docs:       docs,
		Blobs:      blobs,
		Provider:   provider,
		Sessions:   sessions.NewService(sessionRepo),
		SessionTTL: cfg.Workspace.SessionTTL,
	}, cfg.Workspace.IdleTTL)
	defer registry.Close()

	// Optional rate limiter (per-user when signed in, otherwise per-workspace)
	var limiter gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && rdb != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			limiter = middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win)
		} else {
			limiter = middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		}
	}

	if cfg.Server.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	// readiness: 200 only when the configured backends answer
	r.GET("/ready", func(c *gin.Context) {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		deps := map[string]bool{"mongo": true, "redis": true}
		if mongoClient != nil {
			deps["mongo"] = mongoClient.Ping(pingCtx, nil) == nil
		}
		if rdb != nil {
			deps["redis"] = rdb.Ping(pingCtx).Err() == nil
		}
		status, code := "ready", http.StatusOK
		if !deps["mongo"] || !deps["redis"] {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "deps": deps, "workspaces": registry.Len(), "uptime": time.Since(startTime).String()})
	})

	// Expose Prometheus metrics
	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.NewRouter(r, handlers.RouterDeps{
		Config:      cfg,
		Registry:    registry,
		Revocations: sessions.NewRevocations(rdb),
		Blobs:       blobs,
		Limiter:     limiter,
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		// request contexts end with the process so event streams let go on shutdown
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("starting studyhub on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return registry.Run(gctx, cfg.Workspace.SweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Errorf("server stopped: %v", err)
	}
	logger.Infof("shutdown complete")
}

// identityProvider prefers the configured OIDC issuer. The insecure provider
// is only used under ALLOW_INSECURE_TOKEN, for local and integration runs.
func identityProvider(ctx context.Context, cfg *config.Config) (identity.Provider, error) {
	if issuer := cfg.Keycloak.Issuer(); issuer != "" && cfg.Keycloak.ClientID != "" {
		p, err := identity.NewOIDCProvider(ctx, issuer, cfg.Keycloak.ClientID, cfg.Keycloak.ClientSecret, cfg.Keycloak.RedirectURL)
		if err == nil {
			return p, nil
		}
		if !cfg.Keycloak.AllowInsecure {
			return nil, err
		}
		logger.Warnf("failed to initialize OIDC provider: %v", err)
	}
	if cfg.Keycloak.AllowInsecure {
		logger.Warnf("enabling insecure identity provider (integration mode)")
		return identity.NewInsecureProvider(cfg.Keycloak.RedirectURL), nil
	}
	return nil, errors.New("set KEYCLOAK_URL and KEYCLOAK_CLIENT_ID, or ALLOW_INSECURE_TOKEN=true")
}
