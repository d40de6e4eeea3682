package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/newsfeed-app/backend/internal/models"
)

// ArticleFetched is emitted for every article the proxy received from the
// real upstream provider.
type ArticleFetched struct {
	Article   models.Article `json:"article"`
	Category  string         `json:"category"`
	Lang      string         `json:"lang"`
	Country   string         `json:"country"`
	Query     string         `json:"query,omitempty"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// Encode turns a fetched article into a Kafka message keyed by its URL.
func Encode(q models.NewsQuery, a models.Article, fetchedAt time.Time) (kafka.Message, error) {
	payload, err := json.Marshal(ArticleFetched{
		Article:   a,
		Category:  q.Category,
		Lang:      q.Lang,
		Country:   q.Country,
		Query:     q.Q,
		FetchedAt: fetchedAt.UTC(),
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal article event: %w", err)
	}
	return kafka.Message{Key: []byte(a.URL), Value: payload, Time: fetchedAt}, nil
}

// Decode parses a message produced by Encode.
func Decode(msg kafka.Message) (ArticleFetched, error) {
	var ev ArticleFetched
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return ArticleFetched{}, fmt.Errorf("unmarshal article event: %w", err)
	}
	return ev, nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes ArticleFetched events to Kafka.
type Publisher struct {
	w   messageWriter
	now func() time.Time
}

// NewPublisher creates an asynchronous publisher for topic. Writes never block
// the request path; delivery failures surface through the writer's logger.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			Async:                  true,
			AllowAutoTopicCreation: true,
		},
		now: time.Now,
	}
}

// PublishFetched emits one event per article.
func (p *Publisher) PublishFetched(ctx context.Context, q models.NewsQuery, articles []models.Article) error {
	if len(articles) == 0 {
		return nil
	}

	fetchedAt := p.now()
	msgs := make([]kafka.Message, 0, len(articles))
	for _, a := range articles {
		if a.URL == "" {
			continue
		}
		msg, err := Encode(q, a, fetchedAt)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return nil
	}

	if err := p.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write article events: %w", err)
	}
	return nil
}

// Close flushes pending messages.
func (p *Publisher) Close() error {
	return p.w.Close()
}
