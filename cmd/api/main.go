package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"trailcms/api/internal/app"
	"trailcms/api/internal/authpw"
	"trailcms/api/internal/config"
	"trailcms/api/internal/content"
	"trailcms/api/internal/email"
	"trailcms/api/internal/gitrepo"
	"trailcms/api/internal/pullrequest"
	"trailcms/api/internal/session"
	"trailcms/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}
	dataStore := store.NewPostgresStore(db)

	remote, err := app.OpenRemote(ctx, cfg)
	if err != nil {
		log.Fatalf("content repository unavailable: %v", err)
	}
	repo := gitrepo.New(remote, cfg.TrunkBranch)

	var notifier pullrequest.Notifier
	reviewMail := email.NewReviewNotifier(email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}), cfg.ReviewNotify)
	if reviewMail.Enabled() {
		log.Printf("Review notifications go to %s", strings.Join(cfg.ReviewNotify, ", "))
		notifier = reviewMail
	}

	pulls := pullrequest.New(remote, cfg.TrunkBranch, cfg.CommitPrefix, notifier)
	contentServices := content.New(repo, pulls, content.Options{
		ContentRoot:  cfg.ContentRoot,
		CommitPrefix: cfg.CommitPrefix,
		Routes:       cfg.Routes,
		RawBaseURL:   cfg.MediaBaseURL(),
	})
	passwords := authpw.NewService(dataStore)

	var service *app.Service
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for session storage")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		service = app.New(cfg, dataStore, redisStore, passwords, contentServices, pulls)
		service.AddHealthCheck("redis", redisStore.Ping)
	} else {
		log.Printf("Using PostgreSQL for session storage")
		service = app.New(cfg, dataStore, dataStore, passwords, contentServices, pulls)
	}
	service.AddHealthCheck("database", dataStore.Ping)
	service.AddHealthCheck("repository", func(ctx context.Context) error {
		_, err := remote.BranchSHA(ctx, cfg.TrunkBranch)
		return err
	})

	purgeCtx, stopPurge := context.WithCancel(ctx)
	defer stopPurge()
	go purgeExpiredSessions(purgeCtx, dataStore)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Trail CMS API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func purgeExpiredSessions(ctx context.Context, dataStore *store.PostgresStore) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := dataStore.PurgeExpired(ctx)
			if err != nil {
				log.Printf("session purge failed: %v", err)
				continue
			}
			if purged > 0 {
				log.Printf("purged %d expired session rows", purged)
			}
		}
	}
}
