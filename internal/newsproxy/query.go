package newsproxy

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/newsfeed-app/backend/internal/models"
)

const (
	DefaultCategory = "general"
	DefaultLang     = "en"
	DefaultCountry  = "id"
	DefaultMax      = 100
	MaxArticles     = 100
	DefaultPage     = 1
)

// ParseQuery reads a news query from URL parameters and applies defaults.
func ParseQuery(values url.Values) models.NewsQuery {
	return Normalize(models.NewsQuery{
		Category: strings.TrimSpace(values.Get("category")),
		Lang:     strings.TrimSpace(values.Get("lang")),
		Max:      atoiOrZero(values.Get("max")),
		Page:     atoiOrZero(values.Get("page")),
		Country:  strings.TrimSpace(values.Get("country")),
		Q:        strings.TrimSpace(values.Get("q")),
	})
}

// Normalize fills defaults and clamps Max to MaxArticles.
func Normalize(q models.NewsQuery) models.NewsQuery {
	if q.Category == "" {
		q.Category = DefaultCategory
	}
	if q.Lang == "" {
		q.Lang = DefaultLang
	}
	if q.Country == "" {
		q.Country = DefaultCountry
	}
	if q.Max <= 0 {
		q.Max = DefaultMax
	}
	if q.Max > MaxArticles {
		q.Max = MaxArticles
	}
	if q.Page <= 0 {
		q.Page = DefaultPage
	}
	return q
}

func atoiOrZero(raw string) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return v
}
