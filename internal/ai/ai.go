package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrEmptyArticle is returned when no article text was supplied.
var ErrEmptyArticle = errors.New("at least one of title, content, or description is required")

// FallbackNote marks an analysis produced without the model.
const FallbackNote = "Using fallback analysis - AI service temporarily unavailable"

const (
	ActionSummarize = "summarize"
	ActionAnalyze   = "analyze"
	ActionSentiment = "sentiment"
	ActionFactcheck = "factcheck"
)

// Request is an article to analyze.
type Request struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	Description string `json:"description"`
	Action      string `json:"action"`
}

// ArticleRef echoes the analyzed article.
type ArticleRef struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Result is the analysis returned to clients.
type Result struct {
	Action   string     `json:"action"`
	Analysis string     `json:"analysis"`
	Article  ArticleRef `json:"article"`
	Note     string     `json:"note,omitempty"`
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Analyzer turns articles into summaries/analyses, falling back to canned
// text when the generator is missing or fails.
type Analyzer struct {
	gen Generator
	log *slog.Logger
}

// NewAnalyzer builds an Analyzer. gen may be nil, in which case every request
// gets the fallback analysis.
func NewAnalyzer(gen Generator, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Analyzer{gen: gen, log: logger}
}

// Analyze runs req through the model.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.Content) == "" && strings.TrimSpace(req.Description) == "" {
		return nil, ErrEmptyArticle
	}
	if req.Action == "" {
		req.Action = ActionSummarize
	}

	if a.gen == nil {
		a.log.Warn("ai generator not configured, using fallback")
		return fallback(req), nil
	}

	text, err := a.gen.Generate(ctx, BuildPrompt(req))
	if err != nil {
		a.log.Error("ai analysis", slog.String("action", req.Action), slog.Any("err", err))
		return fallback(req), nil
	}

	return &Result{
		Action:   req.Action,
		Analysis: text,
		Article:  ArticleRef{Title: req.Title, Description: req.Description},
	}, nil
}

// BuildPrompt renders the instruction for req.Action.
func BuildPrompt(req Request) string {
	article := fmt.Sprintf("Title: %s\n\nDescription: %s\n\nContent: %s",
		orNA(req.Title), orNA(req.Description), orNA(req.Content))

	switch req.Action {
	case ActionSummarize:
		return "Please provide a concise summary of the following news article in 3-4 sentences:\n\n" + article
	case ActionAnalyze:
		return "Please analyze the following news article. Include:\n1. Main points and key facts\n2. Potential implications or impact\n3. Any notable perspectives or bias\n4. Context and background\n\nArticle:\n" + article
	case ActionSentiment:
		return "Analyze the sentiment and tone of the following news article. Determine if it's positive, negative, neutral, or mixed, and explain why:\n\n" + article
	case ActionFactcheck:
		return "Review the following news article and identify:\n1. Key claims made\n2. Any statements that might need fact-checking\n3. Potential red flags or areas of concern\n\nArticle:\n" + article
	default:
		return "Please provide insights about the following news article:\n\n" + article
	}
}

func fallback(req Request) *Result {
	var analysis string
	switch req.Action {
	case ActionSummarize:
		analysis = "Summary: " + firstNonEmpty(req.Description, truncate(req.Content, 200), req.Title, "No content provided")
	case ActionSentiment:
		analysis = "Sentiment Analysis: The article appears to have a neutral to informative sentiment overall."
	case ActionFactcheck:
		analysis = "Fact Check Items:\n1. Verify the main claims in the headline\n2. Check source credibility\n3. Look for supporting evidence\n4. Consider alternative viewpoints"
	default:
		analysis = fmt.Sprintf("Key Analysis:\n1. Main topic: %s\n2. This article discusses important information\n3. Multiple perspectives may be involved\n4. Context is important for full understanding", orNA(req.Title))
	}

	return &Result{
		Action:   req.Action,
		Analysis: analysis,
		Article:  ArticleRef{Title: orNA(req.Title), Description: orNA(req.Description)},
		Note:     FallbackNote,
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// --- Gemini provider ---

// Gemini calls the Google generative language REST API.
type Gemini struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewGemini returns nil when apiKey is empty so callers fall back cleanly.
func NewGemini(baseURL, apiKey, model string, timeout time.Duration) *Gemini {
	if apiKey == "" {
		return nil
	}
	if model == "" {
		model = "gemini-pro"
	}
	return &Gemini{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, url.PathEscape(g.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read gemini response: %w", err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("parse gemini response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil && parsed.Error.Message != "" {
			return "", fmt.Errorf("gemini status %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return "", fmt.Errorf("gemini status %d", resp.StatusCode)
	}

	var sb strings.Builder
	if len(parsed.Candidates) > 0 {
		for _, part := range parsed.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", errors.New("gemini returned no text")
	}
	return text, nil
}
