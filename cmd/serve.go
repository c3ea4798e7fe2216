package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kyz7/authserver/internal/cache"
	"github.com/Kyz7/authserver/internal/config"
	"github.com/Kyz7/authserver/internal/database"
	"github.com/Kyz7/authserver/internal/mail"
	"github.com/Kyz7/authserver/internal/reset"
	"github.com/Kyz7/authserver/internal/server"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	cfg, db, err := bootstrap()
	if err != nil {
		return err
	}

	// ========== CACHE ==========
	store, closeCache, err := newCacheStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	// ========== MAIL ==========
	mailer, err := mail.New(cfg)
	if err != nil {
		return fmt.Errorf("mail: %w", err)
	}
	log.Printf("📧 Mail driver: %s", cfg.MailDriver)

	resets := reset.NewStore(db)

	// ========== BACKGROUND JOBS ==========
	if cfg.ResetPurgeInterval > 0 {
		janitor := reset.NewJanitor(resets, cfg.ResetPurgeInterval)
		janitor.Start(ctx)
		log.Printf("🧹 Reset token purge every %s", cfg.ResetPurgeInterval)
	}

	// ========== START SERVER ==========
	deps, err := server.Build(cfg, db, store, resets, mailer)
	if err != nil {
		return err
	}
	app := server.New(deps)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Printf("⚠️  Shutdown: %v", err)
		}
	}()

	log.Printf("🚀 Auth server starting on %s", cfg.ServerAddr)
	log.Printf("🔐 Access TTL %s, refresh TTL %s, reset TTL %s",
		cfg.AccessTokenTTL, cfg.RefreshTokenTTL, cfg.ResetTokenTTL)

	if err := app.Listen(cfg.ServerAddr); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	log.Println("👋 Server stopped")
	return nil
}

// bootstrap loads and validates config, then connects and migrates.
func bootstrap() (*config.Config, *gorm.DB, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	log.Println("✅ Configuration validated")

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func newCacheStore(ctx context.Context, cfg *config.Config) (cache.Store, func(), error) {
	if cfg.RedisAddr == "" {
		log.Println("💾 Using in-memory response cache")
		return cache.NewMemoryStore(cfg.CacheTTL), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
	}
	log.Printf("✅ Connected to Redis at %s", cfg.RedisAddr)

	return cache.NewRedisStore(client, "authserver", cfg.CacheTTL), func() { client.Close() }, nil
}
