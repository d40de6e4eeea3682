package gnews

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/newsfeed-app/backend/internal/models"
)

const maxErrorBody = 1 << 20

// UpstreamError is the normalized failure of an upstream call. Status is zero
// when no HTTP response was received.
type UpstreamError struct {
	Status   int
	Messages []string
	Err      error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Status != 0 && len(e.Messages) > 0:
		return fmt.Sprintf("upstream status %d: %s", e.Status, strings.Join(e.Messages, "; "))
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("upstream status %d: %v", e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("upstream status %d", e.Status)
	case e.Err != nil:
		return fmt.Sprintf("upstream request: %v", e.Err)
	default:
		return "upstream request failed"
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Message returns the most useful human-readable reason: the first message the
// upstream supplied, else the underlying error text.
func (e *UpstreamError) Message() string {
	for _, m := range e.Messages {
		if strings.TrimSpace(m) != "" {
			return m
		}
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// Client talks to a GNews-compatible headline/search API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *slog.Logger
}

// New creates a client. A zero timeout leaves requests bounded only by the
// caller's context.
func New(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		log:     logger,
	}
}

// Fetch performs a single upstream call for q. Failures are always returned as
// *UpstreamError.
func (c *Client) Fetch(ctx context.Context, q models.NewsQuery) (*models.NewsPage, error) {
	target := c.RequestURL(q)
	c.log.Debug("fetching upstream news", slog.String("url", c.redact(target)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &UpstreamError{Err: errors.New(c.redact(err.Error()))}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// *url.Error prints the request URL, which carries the key.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, &UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &UpstreamError{Status: resp.StatusCode, Messages: parseErrorMessages(body)}
	}

	var page struct {
		TotalArticles int              `json:"totalArticles"`
		Articles      []models.Article `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		c.log.Warn("unreadable upstream body, treating as empty", slog.Int("status", resp.StatusCode), slog.Any("err", err))
		return &models.NewsPage{Articles: []models.Article{}}, nil
	}
	if page.Articles == nil {
		page.Articles = []models.Article{}
	}

	return &models.NewsPage{TotalArticles: page.TotalArticles, Articles: page.Articles}, nil
}

// RequestURL builds the upstream URL for q. A search term switches from the
// headline endpoint to the search endpoint.
func (c *Client) RequestURL(q models.NewsQuery) string {
	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("category", q.Category)
	params.Set("lang", q.Lang)
	params.Set("max", strconv.Itoa(q.Max))
	params.Set("country", q.Country)
	params.Set("page", strconv.Itoa(q.Page))

	endpoint := "/top-headlines"
	if q.Q != "" {
		endpoint = "/search"
		params.Set("q", q.Q)
	}
	return c.baseURL + endpoint + "?" + params.Encode()
}

func (c *Client) redact(raw string) string {
	if c.apiKey == "" {
		return raw
	}
	raw = strings.ReplaceAll(raw, url.QueryEscape(c.apiKey), "XXX")
	return strings.ReplaceAll(raw, c.apiKey, "XXX")
}

// parseErrorMessages accepts both {"errors": ["..."]} and {"errors": {"k": "..."}}
// shapes, plus a top-level "message".
func parseErrorMessages(body []byte) []string {
	var payload struct {
		Errors  json.RawMessage `json:"errors"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		if text := strings.TrimSpace(string(body)); text != "" && len(text) < 512 {
			return []string{text}
		}
		return nil
	}

	var out []string
	if len(payload.Errors) > 0 {
		var list []string
		var keyed map[string]string
		if err := json.Unmarshal(payload.Errors, &list); err == nil {
			out = append(out, list...)
		} else if err := json.Unmarshal(payload.Errors, &keyed); err == nil {
			keys := make([]string, 0, len(keyed))
			for k := range keyed {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				out = append(out, keyed[k])
			}
		}
	}
	if payload.Message != "" {
		out = append(out, payload.Message)
	}
	return out
}
