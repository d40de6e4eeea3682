package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/newsfeed-app/backend/internal/config"
	"github.com/newsfeed-app/backend/internal/dedupe"
	"github.com/newsfeed-app/backend/internal/elasticsearch"
	"github.com/newsfeed-app/backend/internal/events"
	"github.com/newsfeed-app/backend/internal/logger"
	"github.com/newsfeed-app/backend/internal/models"
	"github.com/newsfeed-app/backend/internal/processing"
)

const dlqAttempts = 5

var errMissingURL = errors.New("article event without url")

type articleIndexer interface {
	IndexArticle(ctx context.Context, doc models.ArchivedArticle) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

func main() {
	log := logger.New("worker")
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	esClient, err := elasticsearch.Connect(ctx, cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log, 10, 2*time.Second)
	if err != nil {
		log.Error("connect elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := esClient.EnsureIndex(ensureCtx); err != nil {
		log.Warn("ensure archive index failed, indexing will use dynamic mapping", slog.Any("err", err))
	}
	cancel()

	cache := dedupe.NewCache(cfg.DedupeCapacity, cfg.DedupeTTL)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaConsumer,
		QueueCapacity:  cfg.BatchSize,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit only
	})
	defer reader.Close()

	dlqTopic := cfg.KafkaTopic + "_dlq"
	dlqWriter := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       dlqTopic,
		MaxAttempts: 3,
	})
	defer dlqWriter.Close()

	log.Info("worker started",
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", cfg.KafkaConsumer),
		slog.String("dlq_topic", dlqTopic),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if err := processMessage(ctx, log, esClient, cache, cfg, msg); err != nil {
			log.Warn("process message failed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)

			if err := sendToDLQ(ctx, log, dlqWriter, msg, err, time.Second); err != nil {
				if errors.Is(err, context.Canceled) {
					log.Info("context canceled during DLQ retry")
					return
				}
				// Not committed, but a later commit on this partition moves past it.
				log.Error("DLQ write exhausted retries, message may be lost if later messages commit",
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
				)
				continue
			}
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

// processMessage turns one ArticleFetched event into an archive document.
// Articles already seen within the dedupe window are skipped.
func processMessage(ctx context.Context, log *slog.Logger, idx articleIndexer, cache *dedupe.Cache, cfg *config.Worker, msg kafka.Message) error {
	ev, err := events.Decode(msg)
	if err != nil {
		return err
	}

	doc, err := buildArchived(ev, cfg)
	if err != nil {
		return err
	}

	if cache.IsSeen(doc.ID) {
		log.Debug("duplicate article", slog.String("id", doc.ID), slog.String("url", doc.URL))
		return nil
	}

	if err := idx.IndexArticle(ctx, doc); err != nil {
		return err
	}

	cache.MarkSeen(doc.ID)
	log.Info("archived article", slog.String("id", doc.ID), slog.String("title", doc.Title))
	return nil
}

func buildArchived(ev events.ArticleFetched, cfg *config.Worker) (models.ArchivedArticle, error) {
	a := ev.Article
	id := processing.ArticleID(a.URL)
	if id == "" {
		return models.ArchivedArticle{}, errMissingURL
	}

	fetchedAt := ev.FetchedAt.UTC()
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}
	published := processing.ParsePublished(a.PublishedAt)
	if published.IsZero() {
		published = fetchedAt
	}

	title := strings.TrimSpace(a.Title)
	description := strings.TrimSpace(a.Description)
	content := strings.TrimSpace(a.Content)
	keywords := processing.ExtractKeywords(title+" "+description+" "+content, cfg.KeywordLimit, cfg.KeywordMinLength)

	source := strings.TrimSpace(a.Source.Name)
	if source == "" {
		source = "unknown"
	}

	return models.ArchivedArticle{
		ID:          id,
		Title:       title,
		Description: description,
		Content:     content,
		URL:         strings.TrimSpace(a.URL),
		Image:       a.Image,
		PublishedAt: published,
		SourceName:  source,
		SourceURL:   a.Source.URL,
		Category:    ev.Category,
		Lang:        ev.Lang,
		Country:     ev.Country,
		Keywords:    keywords,
		FetchedAt:   fetchedAt,
	}, nil
}

// sendToDLQ copies msg to the dead letter topic with its origin and failure
// attached, retrying with exponential backoff starting at base.
func sendToDLQ(ctx context.Context, log *slog.Logger, w messageWriter, msg kafka.Message, cause error, base time.Duration) error {
	dlqMsg := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(msg.Headers,
			kafka.Header{Key: "original_partition", Value: []byte(strconv.Itoa(msg.Partition))},
			kafka.Header{Key: "original_offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
			kafka.Header{Key: "error", Value: []byte(cause.Error())},
			kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		),
	}

	var lastErr error
	for attempt := 0; attempt < dlqAttempts; attempt++ {
		lastErr = w.WriteMessages(ctx, dlqMsg)
		if lastErr == nil {
			log.Info("message sent to DLQ",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Int("attempt", attempt+1),
			)
			return nil
		}

		backoff := base << uint(attempt)
		log.Warn("DLQ write failed, retrying",
			slog.Any("err", lastErr),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("dlq write after %d attempts: %w", dlqAttempts, lastErr)
}
