package processing

import (
	"crypto/sha1"
	"encoding/hex"
	"html"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"
)

var (
	urlRegex    = regexp.MustCompile(`https?://[^\s]+`)
	tagRegex    = regexp.MustCompile(`<[^>]*>`)
	whitespace  = regexp.MustCompile(`\s+`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	// GNews truncates content with a trailing "... [1234 chars]" marker.
	truncMarker = regexp.MustCompile(`\[\d+ chars\]\s*$`)
)

// English and Indonesian function words; the default edition is Indonesian.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "that": {}, "this": {}, "from": {},
	"have": {}, "has": {}, "are": {}, "was": {}, "were": {}, "will": {}, "into": {},
	"about": {}, "after": {}, "over": {}, "their": {}, "they": {}, "been": {}, "more": {},
	"yang": {}, "dan": {}, "dari": {}, "untuk": {}, "dengan": {}, "pada": {}, "dalam": {},
	"akan": {}, "tidak": {}, "juga": {}, "oleh": {}, "atau": {}, "ini": {}, "itu": {},
}

var trackingParams = map[string]struct{}{
	"utm_source": {}, "utm_medium": {}, "utm_campaign": {}, "utm_term": {}, "utm_content": {},
	"fbclid": {}, "gclid": {},
}

// NormalizeURL lowercases scheme and host, drops fragments, tracking
// parameters and trailing slashes so the same article maps to one key.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for key := range q {
		if _, drop := trackingParams[strings.ToLower(key)]; drop {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()
	u.Path = strings.TrimRight(u.Path, "/")

	return u.String()
}

// ArticleID derives a stable document ID from the article URL.
func ArticleID(rawURL string) string {
	normalized := NormalizeURL(rawURL)
	if normalized == "" {
		return ""
	}
	s := sha1.Sum([]byte(normalized))
	return hex.EncodeToString(s[:])
}

// CleanText strips HTML, URLs, punctuation and truncation markers, and squeezes whitespace.
func CleanText(input string) string {
	if input == "" {
		return ""
	}
	decoded := html.UnescapeString(input)
	decoded = tagRegex.ReplaceAllString(decoded, " ")
	decoded = truncMarker.ReplaceAllString(decoded, " ")
	decoded = urlRegex.ReplaceAllString(decoded, " ")
	decoded = punctuation.ReplaceAllString(decoded, " ")
	decoded = whitespace.ReplaceAllString(decoded, " ")
	return strings.TrimSpace(decoded)
}

// ExtractKeywords returns the most frequent non-stopword tokens, ties broken alphabetically.
func ExtractKeywords(text string, limit, minLen int) []string {
	clean := strings.ToLower(CleanText(text))
	if clean == "" {
		return nil
	}

	freq := make(map[string]int)
	for _, token := range strings.Fields(clean) {
		token = strings.TrimFunc(token, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if len([]rune(token)) < minLen {
			continue
		}
		if _, skip := stopwords[token]; skip {
			continue
		}
		freq[token]++
	}

	if len(freq) == 0 {
		return nil
	}

	words := make([]string, 0, len(freq))
	for word := range freq {
		words = append(words, word)
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] == freq[words[j]] {
			return words[i] < words[j]
		}
		return freq[words[i]] > freq[words[j]]
	})

	if limit > 0 && limit < len(words) {
		words = words[:limit]
	}
	return words
}

// ParsePublished parses the upstream publishedAt value. It returns the zero
// time when the value is missing or unrecognized.
func ParsePublished(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}

	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		time.RFC1123Z,
		time.RFC1123,
	}
	for _, f := range formats {
		if ts, err := time.Parse(f, raw); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}
