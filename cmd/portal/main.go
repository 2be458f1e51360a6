package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"

	"github.com/splax/gameportal/internal/app/migrate"
	httpx "github.com/splax/gameportal/internal/http"
	"github.com/splax/gameportal/internal/repository/postgres"
	"github.com/splax/gameportal/internal/service/auth"
	"github.com/splax/gameportal/internal/service/contact"
	"github.com/splax/gameportal/internal/service/notify"
	"github.com/splax/gameportal/internal/service/payment"
	"github.com/splax/gameportal/internal/service/upload"
	"github.com/splax/gameportal/internal/session"
	"github.com/splax/gameportal/pkg/config"
	"github.com/splax/gameportal/pkg/logger"
)

func main() {
	cfg := config.LoadPortalConfig()
	log := logger.New("portal", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}

	if cfg.AutoMigrate {
		src, err := migrate.Source(cfg.MigrationsDir)
		if err != nil {
			log.Error("failed to load migrations", "error", err)
			os.Exit(1)
		}
		runner, err := migrate.New(cfg.DatabaseURL, src, log)
		if err != nil {
			log.Error("failed to configure migrations", "error", err)
			os.Exit(1)
		}
		if err := runner.Ensure(ctx); err != nil {
			log.Error("migrations failed", "error", err)
			os.Exit(1)
		}
	}

	repo := postgres.New(pool)

	var rdb redis.UniversalClient
	if strings.EqualFold(cfg.SessionStore, "redis") || cfg.RateLimitRedis {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Error("redis unavailable", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
	}

	var store session.Store
	if strings.EqualFold(cfg.SessionStore, "redis") {
		store = session.NewRedisStore(rdb)
	} else {
		mem := session.NewMemoryStore()
		defer mem.Close()
		store = mem
	}
	sessions, err := session.NewManager(store, repo, session.Config{
		Secret:      cfg.SessionSecret,
		MaxAge:      cfg.SessionMaxAge,
		IdleTimeout: cfg.SessionIdleTimeout,
	}, log)
	if err != nil {
		log.Error("failed to configure sessions", "error", err)
		os.Exit(1)
	}

	storage, uploadDir, err := newUploadStorage(ctx, cfg)
	if err != nil {
		log.Error("failed to configure upload storage", "backend", cfg.UploadBackend, "error", err)
		os.Exit(1)
	}
	links, _ := storage.(httpx.ProofLinker)
	uploads := upload.New(storage, upload.Config{
		MaxBytes:     cfg.UploadMaxBytes,
		AllowedTypes: cfg.UploadAllowedTypes,
	}, log)

	sender, err := notify.NewSender(notify.SenderConfig{
		Provider:      cfg.EmailProvider,
		From:          cfg.EmailFrom,
		FromName:      cfg.EmailFromName,
		SendGridKey:   cfg.SendGridKey,
		MailgunDomain: cfg.MailgunDomain,
		MailgunKey:    cfg.MailgunKey,
		SMTPHost:      cfg.SMTPHost,
		SMTPPort:      cfg.SMTPPort,
		SMTPUsername:  cfg.SMTPUsername,
		SMTPPassword:  cfg.SMTPPassword,
	}, log)
	if err != nil {
		log.Error("failed to configure email sender", "provider", cfg.EmailProvider, "error", err)
		os.Exit(1)
	}
	dispatcher := notify.NewDispatcher(sender, repo, notify.Config{
		Workers:     cfg.NotifyWorkers,
		QueueSize:   cfg.NotifyQueueSize,
		MaxAttempts: cfg.NotifyAttempts,
		Backoff:     cfg.NotifyBackoff,
		SendTimeout: cfg.NotifyTimeout,
	}, log)

	var tokenizer payment.Tokenizer = payment.LocalTokenizer{}
	if url := strings.TrimSpace(cfg.PaymentProviderURL); url != "" {
		tokenizer = payment.NewHTTPTokenizer(url, cfg.PaymentProviderKey, &http.Client{Timeout: 10 * time.Second})
	}

	limiter := httpx.NewMemoryRateLimiter()
	if cfg.RateLimitRedis {
		limiter.Close()
		limiter = httpx.NewRedisRateLimiter(rdb, log)
	}

	router, err := httpx.NewRouter(httpx.Dependencies{
		Logger:            log,
		Auth:              auth.New(repo, log),
		Sessions:          sessions,
		Payments:          payment.New(repo, uploads, tokenizer, dispatcher, log),
		Contacts:          contact.New(repo, log),
		Limiter:           limiter,
		Cookie:            httpx.CookieConfig{Name: cfg.SessionCookieName, Secure: cfg.SessionCookieSecure},
		UploadDir:         uploadDir,
		ProofLinks:        links,
		MaxUploadBytes:    uploads.MaxBytes(),
		DBHealth:          repo.Ping,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
	})
	if err != nil {
		log.Error("failed to build router", "error", err)
		os.Exit(1)
	}
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("portal server starting", "addr", cfg.Addr, "env", cfg.Environment)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		if err := dispatcher.Stop(shutdownCtx); err != nil {
			log.Warn("notification queue not drained", "error", err)
		}
		log.Info("portal server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			_ = dispatcher.Stop(context.Background())
			os.Exit(1)
		}
	}
}

// newUploadStorage returns the configured proof backend. The directory is only
// set for the local backend, which the portal serves under /uploads/; S3 proofs are
// reached through the same path by redirect.
func newUploadStorage(ctx context.Context, cfg config.PortalConfig) (upload.Storage, string, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.UploadBackend)) {
	case "s3":
		s3, err := upload.NewS3Storage(ctx, upload.S3Config{
			PublicBaseURL: cfg.PublicBaseURL,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Region:        cfg.S3Region,
			Bucket:        cfg.S3Bucket,
			BaseEndpoint:  cfg.S3BaseEndpoint,
			URLTTL:        cfg.S3URLTTL,
		})
		return s3, "", err
	case "", "local":
		local, err := upload.NewLocalStorage(cfg.UploadDir, cfg.PublicBaseURL)
		if err != nil {
			return nil, "", err
		}
		return local, local.Dir(), nil
	default:
		return nil, "", errors.New("unknown upload backend " + cfg.UploadBackend)
	}
}
