package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newsfeed-app/backend/internal/ai"
	"github.com/newsfeed-app/backend/internal/config"
	"github.com/newsfeed-app/backend/internal/db"
	"github.com/newsfeed-app/backend/internal/elasticsearch"
	"github.com/newsfeed-app/backend/internal/events"
	"github.com/newsfeed-app/backend/internal/favorites"
	"github.com/newsfeed-app/backend/internal/gnews"
	"github.com/newsfeed-app/backend/internal/logger"
	"github.com/newsfeed-app/backend/internal/newsproxy"
)

func main() {
	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}
	if cfg.News.Key == "" {
		log.Warn("NEWS_API_KEY is empty, upstream calls will be rejected and demo data served")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	// The proxy must keep serving even when Postgres is down at boot.
	startCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	conn, err := db.Open(startCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		if conn == nil {
			log.Error("init postgres", slog.Any("err", err))
			os.Exit(1)
		}
		log.Warn("postgres unavailable at startup, favorites will fail until it recovers", slog.Any("err", err))
	}
	defer conn.Close()

	store := favorites.NewPostgresStore(conn)
	ensureCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := store.Ensure(ensureCtx); err != nil {
		log.Warn("ensure favorites schema", slog.Any("err", err))
	}
	cancel()

	var opts []newsproxy.Option
	if cfg.PublishEvents {
		publisher := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer publisher.Close()
		opts = append(opts, newsproxy.WithPublisher(publisher))
	}

	upstream := gnews.New(cfg.News.BaseURL, cfg.News.Key, cfg.News.Timeout, log)

	var gen ai.Generator
	if g := ai.NewGemini(cfg.AI.BaseURL, cfg.AI.Key, cfg.AI.Model, cfg.AI.Timeout); g != nil {
		gen = g
	} else {
		log.Warn("GEMINI_API_KEY is empty, AI analysis will use fallback text")
	}

	srv := &server{
		log:         log,
		news:        newsproxy.New(upstream, log, opts...),
		archive:     esClient,
		favorites:   favorites.NewService(store, log),
		ai:          ai.NewAnalyzer(gen, log),
		corsOrigin:  cfg.CORSOrigin,
		archivePage: cfg.ArchivePage,
		archiveMax:  cfg.ArchiveMax,
	}

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
	}

	go func() {
		log.Info("api server starting", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}
