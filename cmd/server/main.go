package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"cardapio/backend/internal/cache"
	"cardapio/backend/internal/config"
	"cardapio/backend/internal/domain"
	"cardapio/backend/internal/httpapi"
	"cardapio/backend/internal/ledger"
	"cardapio/backend/internal/logging"
	"cardapio/backend/internal/service"
	"cardapio/backend/internal/store"
	"cardapio/backend/internal/store/memory"
	pgstore "cardapio/backend/internal/store/postgres"
	sqlitestore "cardapio/backend/internal/store/sqlite"
)

func main() {
	cfg := config.Load()
	log := logging.Configure(cfg.LogLevel, cfg.LogFormat)
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	loc, err := ledger.LoadLocation(cfg.BusinessTimezone)
	if err != nil {
		log.Fatalf("invalid BUSINESS_TIMEZONE %q: %v", cfg.BusinessTimezone, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, closers, err := openRepository(ctx, cfg, log)
	if err != nil {
		log.Fatalf("repository unavailable: %v", err)
	}
	if err := bootstrapAdmin(ctx, repo, cfg); err != nil {
		log.Fatalf("bootstrap admin: %v", err)
	}

	var reports cache.ReportCache = cache.NoopReportCache{}
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisReportCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.WithError(err).Warn("redis unavailable, using noop report cache")
		} else {
			reports = redisCache
			closers = append(closers, redisCache.Close)
			log.Info("cache: redis")
		}
	} else {
		log.Info("cache: noop")
	}

	clock := ledger.NewClock(loc)
	svc := service.New(repo, reports, time.Duration(cfg.ReportCacheTTLSeconds)*time.Second, clock, cfg.DefaultTenantID)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, cfg.DefaultTenantID, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{"addr": cfg.Address(), "timezone": loc.String()}).Info("cardapio backend listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.WithError(err).Error("close error")
		}
	}

	log.Info("server stopped")
}

// openRepository picks postgres when DATABASE_URL is set, then sqlite when
// SQLITE_PATH is set, and otherwise a seeded in-memory store.
func openRepository(ctx context.Context, cfg config.Config, log *logrus.Logger) (store.Repository, []func() error, error) {
	closers := make([]func() error, 0, 2)

	switch {
	case cfg.DatabaseURL != "":
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, fmt.Errorf("postgres schema: %w", err)
		}
		log.Info("repository: postgres")
		return pg, append(closers, pg.Close), nil
	case cfg.SQLitePath != "":
		db, err := sqlitestore.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite: %w", err)
		}
		log.WithField("path", cfg.SQLitePath).Info("repository: sqlite")
		return db, append(closers, db.Close), nil
	default:
		log.WithField("tenant_id", cfg.DefaultTenantID).Info("repository: in-memory")
		return memory.NewSeeded(cfg.DefaultTenantID), closers, nil
	}
}

// bootstrapAdmin creates an "admin" account in the default tenant when the
// store has no users yet and SEED_ADMIN_PASSWORD is set.
func bootstrapAdmin(ctx context.Context, users httpapi.UserStore, cfg config.Config) error {
	if cfg.SeedAdminPassword == "" {
		return nil
	}
	existing, err := users.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.SeedAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return users.CreateUser(ctx, domain.UserAccount{
		Username:    "admin",
		DisplayName: "Administrador",
		Password:    string(hash),
		Role:        domain.RoleAdmin,
		TenantID:    cfg.DefaultTenantID,
		IsCashier:   true,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	})
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.DefaultTenantID == "" {
		return fmt.Errorf("DEFAULT_TENANT_ID must not be empty")
	}
	return nil
}
