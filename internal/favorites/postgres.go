package favorites

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/newsfeed-app/backend/internal/models"
)

const uniqueViolation = "23505"

// PostgresStore keeps favorites in PostgreSQL.
type PostgresStore struct{ db *sql.DB }

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

// Ensure creates the favorites table when missing.
func (s *PostgresStore) Ensure(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS favorites (
    id UUID PRIMARY KEY,
    user_id TEXT NOT NULL,
    article_id TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    url TEXT NOT NULL DEFAULT '',
    image_url TEXT NOT NULL DEFAULT '',
    published_at TIMESTAMPTZ,
    lang TEXT NOT NULL DEFAULT '',
    source_id TEXT NOT NULL DEFAULT '',
    source_name TEXT NOT NULL DEFAULT '',
    source_url TEXT NOT NULL DEFAULT '',
    source_country TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (user_id, article_id)
);
CREATE INDEX IF NOT EXISTS favorites_user_created_idx ON favorites (user_id, created_at DESC);
`)
	return err
}

func (s *PostgresStore) List(ctx context.Context, userID string) ([]models.Favorite, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, user_id, article_id, title, description, content, url, image_url, published_at,
       lang, source_id, source_name, source_url, source_country, created_at, updated_at
FROM favorites WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Favorite
	for rows.Next() {
		var f models.Favorite
		var published sql.NullTime
		if err := rows.Scan(&f.ID, &f.UserID, &f.ArticleID, &f.Title, &f.Description, &f.Content,
			&f.URL, &f.ImageURL, &published, &f.Lang, &f.SourceID, &f.SourceName, &f.SourceURL,
			&f.SourceCountry, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		if published.Valid {
			ts := published.Time
			f.PublishedAt = &ts
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Create(ctx context.Context, f models.Favorite) error {
	var published sql.NullTime
	if f.PublishedAt != nil {
		published = sql.NullTime{Time: *f.PublishedAt, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO favorites (id, user_id, article_id, title, description, content, url, image_url,
    published_at, lang, source_id, source_name, source_url, source_country, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		f.ID, f.UserID, f.ArticleID, f.Title, f.Description, f.Content, f.URL, f.ImageURL,
		published, f.Lang, f.SourceID, f.SourceName, f.SourceURL, f.SourceCountry, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM favorites WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
