package models

import "time"

// Source names the publisher of an article.
type Source struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Article is a single headline as returned to clients. URL is its unique key.
type Article struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	URL         string `json:"url"`
	Image       string `json:"image"`
	PublishedAt string `json:"publishedAt"`
	Source      Source `json:"source"`
}

// NewsPage is the client-facing response of the news endpoint.
type NewsPage struct {
	TotalArticles int       `json:"totalArticles"`
	Articles      []Article `json:"articles"`
	Note          string    `json:"note,omitempty"`
}

// NewsQuery holds the normalized parameters of a news request.
type NewsQuery struct {
	Category string
	Lang     string
	Max      int
	Page     int
	Country  string
	Q        string
}

// ArchivedArticle is the document stored in the Elasticsearch archive.
type ArchivedArticle struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	URL         string    `json:"url"`
	Image       string    `json:"image"`
	PublishedAt time.Time `json:"publishedAt"`
	SourceName  string    `json:"sourceName"`
	SourceURL   string    `json:"sourceUrl"`
	Category    string    `json:"category"`
	Lang        string    `json:"lang"`
	Country     string    `json:"country"`
	Keywords    []string  `json:"keywords"`
	FetchedAt   time.Time `json:"fetchedAt"`
}
