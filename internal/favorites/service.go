package favorites

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/newsfeed-app/backend/internal/models"
	"github.com/newsfeed-app/backend/internal/processing"
)

var (
	ErrInvalid   = errors.New("article id and title are required")
	ErrDuplicate = errors.New("article already in favorites")
	ErrNotFound  = errors.New("favorite not found")
)

// Store persists favorites. Create must return ErrDuplicate when the user
// already saved the article; Delete reports whether a row was removed.
type Store interface {
	List(ctx context.Context, userID string) ([]models.Favorite, error)
	Create(ctx context.Context, f models.Favorite) error
	Delete(ctx context.Context, userID, id string) (bool, error)
}

// Input is the client payload for saving an article.
type Input struct {
	ArticleID     string `json:"article_id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Content       string `json:"content"`
	URL           string `json:"url"`
	ImageURL      string `json:"image_url"`
	PublishedAt   string `json:"published_at"`
	Lang          string `json:"lang"`
	SourceID      string `json:"source_id"`
	SourceName    string `json:"source_name"`
	SourceURL     string `json:"source_url"`
	SourceCountry string `json:"source_country"`
}

// Service applies favorite rules on top of a Store.
type Service struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{store: store, log: logger, now: time.Now}
}

// List returns the user's favorites, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]models.Favorite, error) {
	favs, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	if favs == nil {
		favs = []models.Favorite{}
	}
	return favs, nil
}

// Add saves an article for the user.
func (s *Service) Add(ctx context.Context, userID string, in Input) (models.Favorite, error) {
	articleID := strings.TrimSpace(in.ArticleID)
	title := strings.TrimSpace(in.Title)
	if articleID == "" || title == "" {
		return models.Favorite{}, ErrInvalid
	}

	now := s.now().UTC()
	fav := models.Favorite{
		ID:            uuid.NewString(),
		UserID:        userID,
		ArticleID:     articleID,
		Title:         title,
		Description:   in.Description,
		Content:       in.Content,
		URL:           in.URL,
		ImageURL:      in.ImageURL,
		Lang:          in.Lang,
		SourceID:      in.SourceID,
		SourceName:    in.SourceName,
		SourceURL:     in.SourceURL,
		SourceCountry: in.SourceCountry,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if ts := processing.ParsePublished(in.PublishedAt); !ts.IsZero() {
		fav.PublishedAt = &ts
	}

	if err := s.store.Create(ctx, fav); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return models.Favorite{}, ErrDuplicate
		}
		return models.Favorite{}, fmt.Errorf("create favorite: %w", err)
	}

	s.log.Info("favorite added", slog.String("user", userID), slog.String("article", articleID))
	return fav, nil
}

// Remove deletes one of the user's favorites. Unknown IDs and favorites owned
// by someone else both yield ErrNotFound.
func (s *Service) Remove(ctx context.Context, userID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}

	ok, err := s.store.Delete(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}
	if !ok {
		return ErrNotFound
	}

	s.log.Info("favorite removed", slog.String("user", userID), slog.String("id", id))
	return nil
}
