package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/shopassist/internal/auth"
	"github.com/dukerupert/shopassist/internal/config"
	"github.com/dukerupert/shopassist/internal/database"
	"github.com/dukerupert/shopassist/internal/email"
	"github.com/dukerupert/shopassist/internal/logging"
	"github.com/dukerupert/shopassist/internal/metrics"
	"github.com/dukerupert/shopassist/internal/notify"
	"github.com/dukerupert/shopassist/internal/push"
	"github.com/dukerupert/shopassist/internal/server"
	"github.com/dukerupert/shopassist/internal/service"
	ws "github.com/dukerupert/shopassist/internal/websocket"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		slog.Error("failed to open database", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
	}

	mailer, err := newMailer(cfg.Email, logger)
	if err != nil {
		slog.Error("failed to configure email", "provider", cfg.Email.Provider, "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	hub := ws.NewHub(logger.With("component", "websocket"))
	pushSvc := push.NewService(cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey, cfg.Push.Subscriber)
	if !pushSvc.Configured() {
		slog.Info("VAPID keys not set, web push disabled")
	}

	fanout := notify.New(db, logger.With("component", "notify"),
		notify.WithHub(hub),
		notify.WithPush(pushSvc),
		notify.WithMetrics(m),
	)
	svc := service.New(db,
		service.WithNotifier(fanout),
		service.WithMailer(mailer),
		service.WithMetrics(m),
		service.WithLogger(logger.With("component", "service")),
		service.WithBaseURL(cfg.BaseURL),
		service.WithInviteTemplate(cfg.Email.InviteTemplate()),
	)

	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	srv := server.New(db, svc, verifier, hub, pushSvc, m, cfg.WSOrigins, logger)

	// No WriteTimeout: /ws connections are long-lived.
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Background cleanup goroutine
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := srv.RateLimiter().Cleanup(); n > 0 {
					slog.Debug("dropped rate limit windows", "count", n)
				}
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		slog.Info("shop assist starting", "addr", httpServer.Addr, "db", cfg.DBDriver, "email", emailProvider(cfg.Email))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	cleanupCancel()
	// Shutdown does not track hijacked websocket connections.
	if n := hub.CloseAll(); n > 0 {
		slog.Info("closed websocket clients", "count", n)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

func newMailer(cfg config.EmailConfig, logger *slog.Logger) (email.Sender, error) {
	switch cfg.Provider {
	case "postmark":
		return email.NewPostmarkSender(cfg.PostmarkToken, cfg.PostmarkFrom,
			email.WithMessageStream(cfg.PostmarkStream)), nil
	case "ses":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		sender, err := email.NewSESSender(ctx, cfg.SESRegion, cfg.SESFrom)
		if err != nil {
			return nil, err
		}
		return sender, nil
	default:
		return email.NewLogSender(logger.With("component", "email")), nil
	}
}

func emailProvider(cfg config.EmailConfig) string {
	if cfg.Provider == "" {
		return "log"
	}
	return cfg.Provider
}
