package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/newsfeed-app/backend/internal/ai"
	"github.com/newsfeed-app/backend/internal/elasticsearch"
	"github.com/newsfeed-app/backend/internal/favorites"
	"github.com/newsfeed-app/backend/internal/models"
	"github.com/newsfeed-app/backend/internal/newsproxy"
)

const userHeader = "X-User-ID"

type newsService interface {
	FetchNews(ctx context.Context, q models.NewsQuery) (*models.NewsPage, error)
	ArticleReference(rawURL string) (*newsproxy.Reference, error)
}

type archiveSearcher interface {
	SearchArticles(ctx context.Context, params elasticsearch.SearchParams) (*elasticsearch.SearchResult, error)
	Health(ctx context.Context) error
}

type favoriteService interface {
	List(ctx context.Context, userID string) ([]models.Favorite, error)
	Add(ctx context.Context, userID string, in favorites.Input) (models.Favorite, error)
	Remove(ctx context.Context, userID, id string) error
}

type analyzer interface {
	Analyze(ctx context.Context, req ai.Request) (*ai.Result, error)
}

type server struct {
	log         *slog.Logger
	news        newsService
	archive     archiveSearcher
	favorites   favoriteService
	ai          analyzer
	corsOrigin  string
	archivePage int
	archiveMax  int
}

type messageResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type favoriteCreated struct {
	Message  string          `json:"message"`
	Favorite models.Favorite `json:"favorite"`
}

type userKey struct{}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Get("/health", s.handleHealth)
	r.Get("/news", s.handleNews)
	r.Get("/news/detail", s.handleNewsDetail)
	r.Get("/news/archive", s.handleArchive)

	r.Route("/favorites", func(r chi.Router) {
		r.Use(s.requireUser)
		r.Get("/", s.handleListFavorites)
		r.Post("/", s.handleAddFavorite)
		r.Delete("/{id}", s.handleDeleteFavorite)
	})

	r.Route("/ai", func(r chi.Router) {
		r.Use(s.requireUser)
		r.Post("/analyze", s.handleAnalyze)
	})

	return r
}

func (s *server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.corsOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+userHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireUser trusts the identity injected by the auth gateway.
func (s *server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(userHeader))
		if userID == "" {
			writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "Token is required"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, userID)))
	})
}

func userFrom(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.archive.Health(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, messageResponse{Message: "archive unavailable", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleNews(w http.ResponseWriter, r *http.Request) {
	q := newsproxy.ParseQuery(r.URL.Query())

	page, err := s.news.FetchNews(r.Context(), q)
	if err != nil {
		msg := err.Error()
		var svcErr *newsproxy.ServiceError
		if errors.As(err, &svcErr) {
			msg = svcErr.Message
		}
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Failed to fetch news", Error: msg})
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (s *server) handleNewsDetail(w http.ResponseWriter, r *http.Request) {
	ref, err := s.news.ArticleReference(r.URL.Query().Get("url"))
	if err != nil {
		if errors.Is(err, newsproxy.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, messageResponse{Message: "URL parameter is required"})
			return
		}
		s.log.Error("article reference", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Internal Server Error"})
		return
	}

	writeJSON(w, http.StatusOK, ref)
}

func (s *server) handleArchive(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	values := r.URL.Query()
	params := elasticsearch.SearchParams{
		Query:    strings.TrimSpace(values.Get("q")),
		Keywords: parseCSV(values.Get("keywords")),
		Source:   strings.TrimSpace(values.Get("source")),
		Category: strings.TrimSpace(values.Get("category")),
		From:     clampInt(values.Get("from"), 0, 10_000),
		Size:     clampInt(values.Get("size"), s.archivePage, s.archiveMax),
		Sort:     strings.TrimSpace(values.Get("sort")),
		Start:    parseTime(values.Get("start")),
		End:      parseTime(values.Get("end")),
	}

	result, err := s.archive.SearchArticles(ctx, params)
	if err != nil {
		s.log.Error("archive search", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Failed to search archive", Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	favs, err := s.favorites.List(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.log.Error("list favorites", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Internal Server Error"})
		return
	}
	writeJSON(w, http.StatusOK, favs)
}

func (s *server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	var in favorites.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Invalid request body"})
		return
	}

	fav, err := s.favorites.Add(r.Context(), userFrom(r.Context()), in)
	switch {
	case errors.Is(err, favorites.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Article ID and title are required"})
	case errors.Is(err, favorites.ErrDuplicate):
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Article already in favorites"})
	case err != nil:
		s.log.Error("add favorite", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Internal Server Error"})
	default:
		writeJSON(w, http.StatusCreated, favoriteCreated{Message: "Article added to favorites", Favorite: fav})
	}
}

func (s *server) handleDeleteFavorite(w http.ResponseWriter, r *http.Request) {
	err := s.favorites.Remove(r.Context(), userFrom(r.Context()), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, favorites.ErrNotFound):
		writeJSON(w, http.StatusNotFound, messageResponse{Message: "Favorite not found"})
	case err != nil:
		s.log.Error("delete favorite", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Internal Server Error"})
	default:
		writeJSON(w, http.StatusOK, messageResponse{Message: "Article removed from favorites"})
	}
}

func (s *server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req ai.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Invalid request body"})
		return
	}

	res, err := s.ai.Analyze(r.Context(), req)
	if err != nil {
		if errors.Is(err, ai.ErrEmptyArticle) {
			writeJSON(w, http.StatusBadRequest, messageResponse{Message: "At least one of title, content, or description is required"})
			return
		}
		s.log.Error("analyze article", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Internal Server Error"})
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func parseTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return &ts
	}
	return nil
}

func parseCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func clampInt(raw string, fallback, max int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
