package newsproxy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/newsfeed-app/backend/internal/gnews"
	"github.com/newsfeed-app/backend/internal/models"
)

// ErrInvalidInput reports a missing or malformed request parameter.
var ErrInvalidInput = errors.New("invalid input")

const networkFailureMessage = "network error while contacting news provider"

// ReferenceMessage accompanies every article reference.
const ReferenceMessage = "Use the article URL to view the full article"

// ServiceError is a hard upstream failure that fallback mode does not absorb.
type ServiceError struct {
	Message string
	Err     error
}

func (e *ServiceError) Error() string { return "fetch news: " + e.Message }

func (e *ServiceError) Unwrap() error { return e.Err }

// Upstream fetches a page of headlines for a normalized query.
type Upstream interface {
	Fetch(ctx context.Context, q models.NewsQuery) (*models.NewsPage, error)
}

// Publisher receives articles that were fetched from the real upstream.
type Publisher interface {
	PublishFetched(ctx context.Context, q models.NewsQuery, articles []models.Article) error
}

// Reference acknowledges an article URL without dereferencing it.
type Reference struct {
	Message string `json:"message"`
	URL     string `json:"url"`
}

// Proxy forwards news queries upstream and substitutes demo data when the
// upstream is unavailable.
type Proxy struct {
	upstream  Upstream
	publisher Publisher
	log       *slog.Logger
	now       func() time.Time
}

// Option customizes a Proxy.
type Option func(*Proxy)

// WithPublisher forwards successfully fetched articles to p.
func WithPublisher(p Publisher) Option {
	return func(px *Proxy) { px.publisher = p }
}

// WithClock overrides the time source used to date synthetic articles.
func WithClock(now func() time.Time) Option {
	return func(px *Proxy) { px.now = now }
}

// New builds a Proxy around upstream.
func New(upstream Upstream, logger *slog.Logger, opts ...Option) *Proxy {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	p := &Proxy{upstream: upstream, log: logger, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FetchNews returns one page of news for q. Recognized upstream outages are
// answered from the synthetic corpus; anything else is a *ServiceError.
func (p *Proxy) FetchNews(ctx context.Context, q models.NewsQuery) (*models.NewsPage, error) {
	q = Normalize(q)

	p.log.Debug("fetching news",
		slog.String("category", q.Category),
		slog.String("lang", q.Lang),
		slog.Int("max", q.Max),
		slog.Int("page", q.Page),
		slog.String("country", q.Country),
		slog.Bool("search", q.Q != ""),
	)

	page, err := p.upstream.Fetch(ctx, q)
	if err != nil {
		var upErr *gnews.UpstreamError
		if errors.As(err, &upErr) && ShouldFallback(upErr) {
			p.log.Warn("news provider unavailable, serving demo data",
				slog.Int("status", upErr.Status),
				slog.Any("err", err),
			)
			return FallbackPage(q, p.now()), nil
		}

		p.log.Error("fetch news", slog.Any("err", err))
		return nil, &ServiceError{Message: failureMessage(err), Err: err}
	}

	articles := page.Articles
	if articles == nil {
		articles = []models.Article{}
	}
	if len(articles) > q.Max {
		articles = articles[:q.Max]
	}

	p.log.Info("news fetched", slog.Int("articles", len(articles)), slog.Int("total", page.TotalArticles))
	p.publish(ctx, q, articles)

	return &models.NewsPage{TotalArticles: page.TotalArticles, Articles: articles}, nil
}

// ArticleReference acknowledges rawURL so the client can open the article itself.
func (p *Proxy) ArticleReference(rawURL string) (*Reference, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, ErrInvalidInput
	}
	return &Reference{Message: ReferenceMessage, URL: rawURL}, nil
}

func (p *Proxy) publish(ctx context.Context, q models.NewsQuery, articles []models.Article) {
	if p.publisher == nil || len(articles) == 0 {
		return
	}
	if err := p.publisher.PublishFetched(ctx, q, articles); err != nil {
		p.log.Warn("publish fetched articles", slog.Any("err", err), slog.Int("articles", len(articles)))
	}
}

func failureMessage(err error) string {
	var upErr *gnews.UpstreamError
	if errors.As(err, &upErr) {
		if msg := upErr.Message(); msg != "" {
			return msg
		}
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return networkFailureMessage
}
