package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/newsfeed-app/backend/internal/ai"
	"github.com/newsfeed-app/backend/internal/elasticsearch"
	"github.com/newsfeed-app/backend/internal/favorites"
	"github.com/newsfeed-app/backend/internal/gnews"
	"github.com/newsfeed-app/backend/internal/logger"
	"github.com/newsfeed-app/backend/internal/models"
	"github.com/newsfeed-app/backend/internal/newsproxy"
)

type stubUpstream struct {
	page  *models.NewsPage
	err   error
	calls int
}

func (s *stubUpstream) Fetch(_ context.Context, _ models.NewsQuery) (*models.NewsPage, error) {
	s.calls++
	return s.page, s.err
}

type stubArchive struct {
	params    elasticsearch.SearchParams
	result    *elasticsearch.SearchResult
	err       error
	healthErr error
}

func (s *stubArchive) SearchArticles(_ context.Context, p elasticsearch.SearchParams) (*elasticsearch.SearchResult, error) {
	s.params = p
	return s.result, s.err
}

func (s *stubArchive) Health(context.Context) error { return s.healthErr }

type memStore struct {
	mu   sync.Mutex
	rows []models.Favorite
}

func (m *memStore) List(_ context.Context, userID string) ([]models.Favorite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Favorite
	for _, f := range m.rows {
		if f.UserID == userID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memStore) Create(_ context.Context, f models.Favorite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.UserID == f.UserID && existing.ArticleID == f.ArticleID {
			return favorites.ErrDuplicate
		}
	}
	m.rows = append(m.rows, f)
	return nil
}

func (m *memStore) Delete(_ context.Context, userID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, f := range m.rows {
		if f.ID == id && f.UserID == userID {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func newTestServer(up *stubUpstream, archive *stubArchive) http.Handler {
	log := logger.Discard()
	if archive == nil {
		archive = &stubArchive{result: &elasticsearch.SearchResult{}}
	}
	srv := &server{
		log:         log,
		news:        newsproxy.New(up, log),
		archive:     archive,
		favorites:   favorites.NewService(&memStore{}, log),
		ai:          ai.NewAnalyzer(nil, log),
		corsOrigin:  "*",
		archivePage: 20,
		archiveMax:  100,
	}
	return srv.routes()
}

func do(t *testing.T, h http.Handler, method, target, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestNewsSuccess(t *testing.T) {
	up := &stubUpstream{page: &models.NewsPage{
		TotalArticles: 10,
		Articles: []models.Article{
			{Title: "Test Article 1", URL: "https://example.com/article1"},
			{Title: "Test Article 2", URL: "https://example.com/article2"},
		},
	}}
	rec, body := do(t, newTestServer(up, nil), http.MethodGet, "/news?lang=en&max=10", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 10, body["totalArticles"])
	require.Len(t, body["articles"], 2)
	require.NotContains(t, body, "note")
	require.Equal(t, 1, up.calls)
}

func TestNewsFallbackOnRateLimit(t *testing.T) {
	up := &stubUpstream{err: &gnews.UpstreamError{Status: http.StatusTooManyRequests}}
	rec, body := do(t, newTestServer(up, nil), http.MethodGet, "/news?max=10&page=1", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Using demo data - API unavailable", body["note"])
	require.Len(t, body["articles"], 10)
	require.EqualValues(t, 100, body["totalArticles"])
}

func TestNewsFallbackPastEnd(t *testing.T) {
	up := &stubUpstream{err: &gnews.UpstreamError{Status: http.StatusInternalServerError}}
	rec, body := do(t, newTestServer(up, nil), http.MethodGet, "/news?max=10&page=1000", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []any{}, body["articles"])
}

func TestNewsMaxIsClamped(t *testing.T) {
	up := &stubUpstream{err: &gnews.UpstreamError{Status: http.StatusTooManyRequests}}
	_, body := do(t, newTestServer(up, nil), http.MethodGet, "/news?max=500", "", nil)
	require.Len(t, body["articles"], 100)
}

func TestNewsHardFailure(t *testing.T) {
	up := &stubUpstream{err: &gnews.UpstreamError{Err: errors.New("Network connection failed")}}
	rec, body := do(t, newTestServer(up, nil), http.MethodGet, "/news", "", nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "Failed to fetch news", body["message"])
	require.Equal(t, "Network connection failed", body["error"])
}

func TestNewsDetail(t *testing.T) {
	h := newTestServer(&stubUpstream{}, nil)

	rec, body := do(t, h, http.MethodGet, "/news/detail", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "URL parameter is required", body["message"])

	rec, body = do(t, h, http.MethodGet, "/news/detail?url=", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "URL parameter is required", body["message"])

	rec, body = do(t, h, http.MethodGet, "/news/detail?url=https%3A%2F%2Fexample.com%2Fx", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "https://example.com/x", body["url"])
	require.NotEmpty(t, body["message"])
}

func TestArchiveSearchParams(t *testing.T) {
	archive := &stubArchive{result: &elasticsearch.SearchResult{Total: 1, Items: []models.ArchivedArticle{{ID: "a"}}}}
	h := newTestServer(&stubUpstream{}, archive)

	rec, body := do(t, h, http.MethodGet, "/news/archive?q=climate&keywords=a,+b,,&size=1000&from=-1&start=2025-01-01T00:00:00Z&end=bogus&category=world", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, body["total"])

	require.Equal(t, "climate", archive.params.Query)
	require.Equal(t, []string{"a", "b"}, archive.params.Keywords)
	require.Equal(t, 100, archive.params.Size)
	require.Equal(t, 0, archive.params.From)
	require.Equal(t, "world", archive.params.Category)
	require.NotNil(t, archive.params.Start)
	require.Nil(t, archive.params.End)
}

func TestArchiveSearchError(t *testing.T) {
	archive := &stubArchive{err: errors.New("es down")}
	rec, body := do(t, newTestServer(&stubUpstream{}, archive), http.MethodGet, "/news/archive", "", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "es down", body["error"])
}

func TestHealth(t *testing.T) {
	rec, _ := do(t, newTestServer(&stubUpstream{}, nil), http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, newTestServer(&stubUpstream{}, &stubArchive{healthErr: errors.New("red")}), http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFavoritesFlow(t *testing.T) {
	h := newTestServer(&stubUpstream{}, nil)
	user := map[string]string{userHeader: "42"}

	rec, body := do(t, h, http.MethodGet, "/favorites", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Token is required", body["message"])

	rec, body = do(t, h, http.MethodPost, "/favorites", `{"title":"No id"}`, user)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Article ID and title are required", body["message"])

	rec, _ = do(t, h, http.MethodPost, "/favorites", `{`, user)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	payload := `{"article_id":"https://example.com/a","title":"A","url":"https://example.com/a","published_at":"2024-01-01T00:00:00Z"}`
	rec, body = do(t, h, http.MethodPost, "/favorites", payload, user)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "Article added to favorites", body["message"])
	fav := body["favorite"].(map[string]any)
	id := fav["id"].(string)
	require.NotEmpty(t, id)

	rec, body = do(t, h, http.MethodPost, "/favorites", payload, user)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Article already in favorites", body["message"])

	rec, _ = do(t, h, http.MethodGet, "/favorites", "", user)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Favorite
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	require.Equal(t, "A", list[0].Title)

	rec, body = do(t, h, http.MethodDelete, "/favorites/"+id, "", map[string]string{userHeader: "7"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Favorite not found", body["message"])

	rec, body = do(t, h, http.MethodDelete, "/favorites/"+id, "", user)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Article removed from favorites", body["message"])
}

func TestAnalyze(t *testing.T) {
	h := newTestServer(&stubUpstream{}, nil)
	user := map[string]string{userHeader: "42"}

	rec, body := do(t, h, http.MethodPost, "/ai/analyze", `{"action":"summarize"}`, user)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "At least one of title, content, or description is required", body["message"])

	rec, body = do(t, h, http.MethodPost, "/ai/analyze", `{"title":"Space","description":"Rockets"}`, user)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "summarize", body["action"])
	require.Equal(t, "Summary: Rockets", body["analysis"])
	require.Equal(t, ai.FallbackNote, body["note"])

	rec, _ = do(t, h, http.MethodPost, "/ai/analyze", `{"title":"x"}`, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	rec, _ := do(t, newTestServer(&stubUpstream{}, nil), http.MethodOptions, "/favorites", "", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestClampInt(t *testing.T) {
	require.Equal(t, 20, clampInt("", 20, 100))
	require.Equal(t, 20, clampInt("abc", 20, 100))
	require.Equal(t, 20, clampInt("0", 20, 100))
	require.Equal(t, 55, clampInt("55", 20, 100))
	require.Equal(t, 100, clampInt("101", 20, 100))
}

func TestNewsUnreachableUpstreamHidesKey(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead.Close()

	log := logger.Discard()
	srv := &server{
		log:         log,
		news:        newsproxy.New(gnews.New(dead.URL, "SUPERSECRETKEY", 0, log), log),
		archive:     &stubArchive{result: &elasticsearch.SearchResult{}},
		favorites:   favorites.NewService(&memStore{}, log),
		ai:          ai.NewAnalyzer(nil, log),
		corsOrigin:  "*",
		archivePage: 20,
		archiveMax:  100,
	}

	rec, body := do(t, srv.routes(), http.MethodGet, "/news", "", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "Failed to fetch news", body["message"])
	require.NotEmpty(t, body["error"])
	require.NotContains(t, rec.Body.String(), "SUPERSECRETKEY")
}
