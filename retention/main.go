package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newsfeed-app/backend/internal/config"
	"github.com/newsfeed-app/backend/internal/elasticsearch"
	"github.com/newsfeed-app/backend/internal/logger"
)

const (
	connectAttempts = 10
	pruneTimeout    = 2 * time.Minute
)

type archivePruner interface {
	DeleteOlderThan(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)
}

// pruner expires archived articles by fetch time.
type pruner struct {
	archive   archivePruner
	log       *slog.Logger
	maxAge    time.Duration
	batchSize int
	timeout   time.Duration
}

func newPruner(archive archivePruner, log *slog.Logger, cfg *config.Retention) *pruner {
	return &pruner{
		archive:   archive,
		log:       log,
		maxAge:    cfg.MaxAge,
		batchSize: cfg.BatchSize,
		timeout:   pruneTimeout,
	}
}

func main() {
	log := logger.New("retention")
	cfg, err := config.LoadRetention()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	archive, err := elasticsearch.Connect(ctx, cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log, connectAttempts, 2*time.Second)
	if err != nil {
		log.Error("connect archive", slog.Any("err", err))
		os.Exit(1)
	}

	p := newPruner(archive, log, cfg)
	if cfg.Once {
		p.runOnce(ctx)
		return
	}

	log.Info("archive retention running",
		slog.Duration("interval", cfg.Interval),
		slog.Duration("max_age", cfg.MaxAge),
		slog.Int("batch_size", cfg.BatchSize),
	)
	p.loop(ctx, cfg.Interval)
	log.Info("shutdown signal received")
}

// loop prunes immediately and then on every tick until ctx is done.
func (p *pruner) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		p.runOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runOnce removes archived articles fetched longer than maxAge ago. Failures
// are logged and retried on the next tick.
func (p *pruner) runOnce(ctx context.Context) int64 {
	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	started := time.Now()
	deleted, err := p.archive.DeleteOlderThan(runCtx, p.maxAge, p.batchSize)
	if err != nil {
		p.log.Warn("archive cleanup failed", slog.Any("err", err), slog.Int64("deleted", deleted))
		return deleted
	}

	if deleted > 0 {
		p.log.Info("archive cleanup completed",
			slog.Int64("deleted", deleted),
			slog.Duration("took", time.Since(started)),
		)
	} else {
		p.log.Debug("archive cleanup completed, no expired articles")
	}
	return deleted
}
