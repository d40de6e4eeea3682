package newsproxy_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/newsfeed-app/backend/internal/gnews"
	"github.com/newsfeed-app/backend/internal/models"
	"github.com/newsfeed-app/backend/internal/newsproxy"
	"github.com/stretchr/testify/require"
)

type stubUpstream struct {
	page    *models.NewsPage
	err     error
	queries []models.NewsQuery
}

func (s *stubUpstream) Fetch(_ context.Context, q models.NewsQuery) (*models.NewsPage, error) {
	s.queries = append(s.queries, q)
	return s.page, s.err
}

type stubPublisher struct {
	batches [][]models.Article
	err     error
}

func (s *stubPublisher) PublishFetched(_ context.Context, _ models.NewsQuery, articles []models.Article) error {
	s.batches = append(s.batches, articles)
	return s.err
}

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newProxy(up newsproxy.Upstream, opts ...newsproxy.Option) *newsproxy.Proxy {
	opts = append(opts, newsproxy.WithClock(func() time.Time { return fixedNow }))
	return newsproxy.New(up, nil, opts...)
}

func articles(n int) []models.Article {
	out := make([]models.Article, n)
	for i := range out {
		out[i] = models.Article{Title: fmt.Sprintf("Article %d", i), URL: fmt.Sprintf("https://example.com/%d", i)}
	}
	return out
}

func TestParseQueryDefaults(t *testing.T) {
	q := newsproxy.ParseQuery(url.Values{})
	require.Equal(t, models.NewsQuery{Category: "general", Lang: "en", Max: 100, Page: 1, Country: "id"}, q)
}

func TestParseQueryClampsAndOverrides(t *testing.T) {
	q := newsproxy.ParseQuery(url.Values{
		"category": {"technology"},
		"lang":     {"id"},
		"max":      {"500"},
		"page":     {"3"},
		"country":  {"us"},
		"q":        {" bitcoin "},
	})
	require.Equal(t, "technology", q.Category)
	require.Equal(t, "id", q.Lang)
	require.Equal(t, 100, q.Max)
	require.Equal(t, 3, q.Page)
	require.Equal(t, "us", q.Country)
	require.Equal(t, "bitcoin", q.Q)

	bad := newsproxy.ParseQuery(url.Values{"max": {"abc"}, "page": {"-2"}})
	require.Equal(t, 100, bad.Max)
	require.Equal(t, 1, bad.Page)
}

func TestShouldFallback(t *testing.T) {
	tests := []struct {
		name string
		err  *gnews.UpstreamError
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "rate limited", err: &gnews.UpstreamError{Status: 429}, want: true},
		{name: "server error", err: &gnews.UpstreamError{Status: 500, Messages: []string{"Internal server error"}}, want: true},
		{name: "unauthorized", err: &gnews.UpstreamError{Status: 401}, want: true},
		{name: "limit phrase", err: &gnews.UpstreamError{Status: 200, Messages: []string{"You have reached your Request Limit"}}, want: true},
		{name: "limit phrase no status", err: &gnews.UpstreamError{Messages: []string{"request limit reached"}}, want: true},
		{name: "ok status bad body", err: &gnews.UpstreamError{Status: 200, Err: errors.New("decode")}, want: false},
		{name: "network", err: &gnews.UpstreamError{Err: errors.New("connection refused")}, want: false},
		{name: "redirect", err: &gnews.UpstreamError{Status: 302}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, newsproxy.ShouldFallback(tt.err))
		})
	}
}

func TestFetchNewsSuccess(t *testing.T) {
	up := &stubUpstream{page: &models.NewsPage{TotalArticles: 10, Articles: articles(2)}}
	pub := &stubPublisher{}
	p := newProxy(up, newsproxy.WithPublisher(pub))

	page, err := p.FetchNews(context.Background(), models.NewsQuery{Lang: "en", Max: 10})
	require.NoError(t, err)
	require.Equal(t, 10, page.TotalArticles)
	require.Len(t, page.Articles, 2)
	require.Empty(t, page.Note)

	require.Len(t, up.queries, 1)
	require.Equal(t, "general", up.queries[0].Category)
	require.Equal(t, 10, up.queries[0].Max)

	require.Len(t, pub.batches, 1)
	require.Len(t, pub.batches[0], 2)
}

func TestFetchNewsTruncatesToMax(t *testing.T) {
	up := &stubUpstream{page: &models.NewsPage{TotalArticles: 50, Articles: articles(7)}}
	page, err := newProxy(up).FetchNews(context.Background(), models.NewsQuery{Max: 5})
	require.NoError(t, err)
	require.Len(t, page.Articles, 5)
	require.Equal(t, 50, page.TotalArticles)
}

func TestFetchNewsEmptyResult(t *testing.T) {
	up := &stubUpstream{page: &models.NewsPage{}}
	pub := &stubPublisher{}
	page, err := newProxy(up, newsproxy.WithPublisher(pub)).FetchNews(context.Background(), models.NewsQuery{Q: "veryraresearchterm123xyz"})
	require.NoError(t, err)
	require.Zero(t, page.TotalArticles)
	require.NotNil(t, page.Articles)
	require.Empty(t, page.Articles)
	require.Empty(t, pub.batches)
}

func TestFetchNewsPublishFailureIgnored(t *testing.T) {
	up := &stubUpstream{page: &models.NewsPage{TotalArticles: 1, Articles: articles(1)}}
	pub := &stubPublisher{err: errors.New("broker down")}
	page, err := newProxy(up, newsproxy.WithPublisher(pub)).FetchNews(context.Background(), models.NewsQuery{})
	require.NoError(t, err)
	require.Len(t, page.Articles, 1)
}

func TestFetchNewsFallbackOnRateLimit(t *testing.T) {
	up := &stubUpstream{err: &gnews.UpstreamError{Status: 429}}
	pub := &stubPublisher{}
	page, err := newProxy(up, newsproxy.WithPublisher(pub)).FetchNews(context.Background(), models.NewsQuery{Max: 10, Page: 1})
	require.NoError(t, err)
	require.Equal(t, newsproxy.FallbackNote, page.Note)
	require.Len(t, page.Articles, 10)
	require.Equal(t, 100, page.TotalArticles)
	require.Empty(t, pub.batches)
}

func TestFetchNewsFallbackIsStable(t *testing.T) {
	up := &stubUpstream{err: &gnews.UpstreamError{Status: 500}}
	p := newProxy(up)
	q := models.NewsQuery{Max: 10, Page: 2}

	first, err := p.FetchNews(context.Background(), q)
	require.NoError(t, err)
	second, err := p.FetchNews(context.Background(), q)
	require.NoError(t, err)

	require.Equal(t, first.Articles, second.Articles)
	require.Equal(t, "Breaking: Tech Innovation Reshapes Global Markets (Page 2)", first.Articles[0].Title)
	require.Equal(t, "https://example.com/tech-innovation-page2", first.Articles[0].URL)
	require.Equal(t, "https://picsum.photos/400/300?random=11", first.Articles[0].Image)
	require.Equal(t, fixedNow.Add(-24*time.Hour).Format(time.RFC3339), first.Articles[0].PublishedAt)
}

func TestFetchNewsFallbackBeyondCorpus(t *testing.T) {
	up := &stubUpstream{err: &gnews.UpstreamError{Status: 403, Messages: []string{"You have reached your request limit for today"}}}
	p := newProxy(up)

	page, err := p.FetchNews(context.Background(), models.NewsQuery{Max: 10, Page: 1000})
	require.NoError(t, err)
	require.NotNil(t, page.Articles)
	require.Empty(t, page.Articles)
	require.Equal(t, 100, page.TotalArticles)

	huge, err := p.FetchNews(context.Background(), models.NewsQuery{Max: 100, Page: int(^uint(0) >> 1)})
	require.NoError(t, err)
	require.Empty(t, huge.Articles)
}

func TestFetchNewsFallbackPartialLastPage(t *testing.T) {
	up := &stubUpstream{err: &gnews.UpstreamError{Status: 429}}
	page, err := newProxy(up).FetchNews(context.Background(), models.NewsQuery{Max: 30, Page: 4})
	require.NoError(t, err)
	require.Len(t, page.Articles, 10)
	require.Equal(t, "https://example.com/travel-recovery-page10", page.Articles[9].URL)
}

func TestFetchNewsHardFailure(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{name: "network", err: &gnews.UpstreamError{Err: errors.New("Network connection failed")}, message: "Network connection failed"},
		{name: "ok status with message", err: &gnews.UpstreamError{Status: 200, Messages: []string{"API key invalid"}}, message: "API key invalid"},
		{name: "foreign error", err: errors.New("boom"), message: "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newProxy(&stubUpstream{err: tt.err}).FetchNews(context.Background(), models.NewsQuery{})
			var svcErr *newsproxy.ServiceError
			require.True(t, errors.As(err, &svcErr))
			require.Equal(t, tt.message, svcErr.Message)
		})
	}
}

func TestArticleReference(t *testing.T) {
	p := newProxy(&stubUpstream{})

	_, err := p.ArticleReference("")
	require.ErrorIs(t, err, newsproxy.ErrInvalidInput)
	_, err = p.ArticleReference("   ")
	require.ErrorIs(t, err, newsproxy.ErrInvalidInput)

	ref, err := p.ArticleReference("https://example.com/x")
	require.NoError(t, err)
	require.Equal(t, "https://example.com/x", ref.URL)
	require.NotEmpty(t, ref.Message)
}

func TestBuildCorpusShape(t *testing.T) {
	corpus := newsproxy.BuildCorpus(fixedNow)
	require.Len(t, corpus, newsproxy.CorpusSize())

	seen := make(map[string]struct{}, len(corpus))
	for _, a := range corpus {
		_, dup := seen[a.URL]
		require.False(t, dup, "duplicate url %s", a.URL)
		seen[a.URL] = struct{}{}
	}
	require.Equal(t, fixedNow.Add(-9*24*time.Hour).Format(time.RFC3339), corpus[len(corpus)-1].PublishedAt)
}
