package models

import "time"

// Favorite is an article a user saved for later.
type Favorite struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	ArticleID     string     `json:"article_id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Content       string     `json:"content"`
	URL           string     `json:"url"`
	ImageURL      string     `json:"image_url"`
	PublishedAt   *time.Time `json:"published_at"`
	Lang          string     `json:"lang"`
	SourceID      string     `json:"source_id"`
	SourceName    string     `json:"source_name"`
	SourceURL     string     `json:"source_url"`
	SourceCountry string     `json:"source_country"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}
