package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/include-portal/users-api/handlers"
	"github.com/include-portal/users-api/internal/config"
	"github.com/include-portal/users-api/internal/database"
	"github.com/include-portal/users-api/internal/oidc"
	"github.com/include-portal/users-api/internal/storage"
	"github.com/include-portal/users-api/internal/users"
	"github.com/include-portal/users-api/pkg/logger"
	"github.com/include-portal/users-api/pkg/metrics"
	"github.com/include-portal/users-api/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var startTime = time.Now()

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: store=%s delete_mode=%s keycloak=%v minio=%v",
		cfg.Users.StoreBackend, cfg.Users.DeleteMode, cfg.Keycloak.URL != "", cfg.MinIO.Endpoint != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeStore, err := openRepository(ctx, cfg)
	if err != nil {
		logger.Fatalf("failed to open user store: %v", err)
	}
	defer closeStore()
	userSvc := users.NewService(repo, users.WithDeleteMode(users.DeleteMode(cfg.Users.DeleteMode)))

	verifier, err := newVerifier(ctx, cfg.Keycloak)
	if err != nil {
		logger.Fatalf("failed to initialize token verifier: %v", err)
	}

	// profile images are optional; without MinIO the routes are not registered
	var images handlers.ImageStore
	if cfg.MinIO.Endpoint != "" {
		s, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			logger.Warnf("profile images disabled: %v", err)
		} else {
			images = s
		}
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), middleware.CORS(cfg.Server.CORSOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness: 200 only when the user store answers
	r.GET("/ready", func(c *gin.Context) {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		deps := map[string]bool{"store": true, "images": images != nil}
		if err := userSvc.Ping(pingCtx); err != nil {
			logger.Warnf("readiness: store ping failed: %v", err)
			deps["store"] = false
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "deps": deps, "uptime": time.Since(startTime).String()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "deps": deps, "uptime": time.Since(startTime).String()})
	})

	handlers.RegisterSwagger(r)

	h := handlers.NewUsersHandler(userSvc, images, cfg.MinIO.URLTTL)
	h.Register(r.Group("/", middleware.AuthMiddleware(verifier)))

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("Starting users service on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("graceful shutdown failed: %v", err)
	}
}

// openRepository connects the configured store and returns a func that
// releases it.
func openRepository(ctx context.Context, cfg *config.Config) (users.UserRepository, func(), error) {
	switch cfg.Users.StoreBackend {
	case "mongo":
		client, err := database.ConnectMongo(ctx, cfg.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() { _ = client.Disconnect(context.Background()) }
		repo, err := users.NewMongoUserRepository(ctx, client.Database(cfg.MongoDB.Database))
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		logger.Infof("using MongoDB user store (database %s)", cfg.MongoDB.Database)
		return repo, closeFn, nil
	default:
		db, err := database.OpenSQL(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		repo := users.NewGormUserRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			closeFn()
			return nil, nil, err
		}
		logger.Infof("using %s user store", cfg.Database.Driver)
		return repo, closeFn, nil
	}
}

func newVerifier(ctx context.Context, kc config.KeycloakConfig) (middleware.Verifier, error) {
	if kc.AllowInsecureToken {
		logger.Warn("enabling insecure OIDC verifier (integration mode)")
		return oidc.NewInsecureVerifier(), nil
	}
	if kc.URL == "" {
		return nil, fmt.Errorf("KEYCLOAK_URL is required unless ALLOW_INSECURE_TOKEN=true")
	}
	v, err := oidc.NewVerifier(ctx, kc.IssuerURL(), kc.ClientID)
	if err != nil {
		return nil, err
	}
	return v, nil
}
