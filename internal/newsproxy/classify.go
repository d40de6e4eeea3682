package newsproxy

import (
	"net/http"
	"strings"

	"github.com/newsfeed-app/backend/internal/gnews"
)

const requestLimitPhrase = "request limit"

// ShouldFallback reports whether an upstream failure means the provider is
// unavailable to us (throttled, rejected, or erroring) so demo data should be
// served. A failure without a response never qualifies.
func ShouldFallback(e *gnews.UpstreamError) bool {
	if e == nil {
		return false
	}
	if e.Status == http.StatusTooManyRequests || e.Status >= http.StatusBadRequest {
		return true
	}
	for _, m := range e.Messages {
		if strings.Contains(strings.ToLower(m), requestLimitPhrase) {
			return true
		}
	}
	return false
}
