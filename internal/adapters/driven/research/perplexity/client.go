// Package perplexity provides a grounded research provider backed by the
// Perplexity chat completions API, which returns cited web sources.
package perplexity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driven"
	"github.com/custodia-labs/strata-cli/internal/logger"
)

// Ensure Client implements the interface.
var _ driven.ResearchProvider = (*Client)(nil)

// Default configuration values.
const (
	DefaultBaseURL     = "https://api.perplexity.ai"
	DefaultModel       = "sonar"
	DefaultTimeout     = 60 * time.Second
	DefaultMaxRetries  = 3
	DefaultReliability = 0.8

	systemPrompt = "You are a helpful search assistant. Provide concise, factual information for the query."
	maxTokens    = 2000
)

// Config holds configuration for the Perplexity client.
type Config struct {
	// APIKey is the Perplexity API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.perplexity.ai).
	BaseURL string

	// Model is the search model (default: sonar).
	Model string

	// Temperature for the answer (default: 0.2).
	Temperature float64

	// RequestsPerMinute spaces requests; zero disables spacing.
	RequestsPerMinute int

	// MaxRetries bounds attempts after rate limiting (default: 3).
	MaxRetries int

	// Timeout is the per-request timeout (default: 60s).
	Timeout time.Duration
}

// Client queries Perplexity and converts answers into research items.
type Client struct {
	client      *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxRetries  int
	limiter     *RateLimiter
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	TopP        float64       `json:"top_p"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
}

// NewClient creates a Perplexity client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("perplexity: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = domain.DefaultTemperature
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		client:      &http.Client{Timeout: cfg.Timeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxRetries:  cfg.MaxRetries,
		limiter:     NewRateLimiter(cfg.RequestsPerMinute),
	}, nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "perplexity/" + c.model
}

// Research sends query and returns one item per answer paragraph, each
// attributed to the first source it cites.
func (c *Client) Research(ctx context.Context, query string) ([]domain.ResultItem, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		resp, retryAfter, err := c.search(ctx, query)
		if err == nil {
			return toItems(resp), nil
		}
		if !errors.Is(err, domain.ErrRateLimited) {
			return nil, err
		}
		lastErr = err
		c.limiter.RecordRateLimitError(retryAfter)
		logger.Warn("Perplexity rate limited (attempt %d/%d), retrying after backoff", attempt, c.maxRetries)
	}
	return nil, lastErr
}

func (c *Client) search(ctx context.Context, query string) (*chatResponse, time.Duration, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: driven.RoleSystem, Content: systemPrompt},
			{Role: driven.RoleUser, Content: query},
		},
		Temperature: c.temperature,
		MaxTokens:   maxTokens,
		TopP:        0.9,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("perplexity: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, retryAfter(resp.Header.Get("Retry-After")), fmt.Errorf("perplexity: %w", domain.ErrRateLimited)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("perplexity: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("perplexity API error: %d - %s", resp.StatusCode, string(data))
	}

	var out chatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, 0, fmt.Errorf("perplexity: invalid JSON response: %w", err)
	}
	return &out, 0, nil
}

func retryAfter(header string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

var citationMarker = regexp.MustCompile(`\[(\d+)\]`)

// toItems splits the answer into paragraphs. A paragraph's source is the
// first [n] citation marker it contains, else the first citation, else the
// provider itself. Markers are stripped from the content.
func toItems(resp *chatResponse) []domain.ResultItem {
	if resp == nil || len(resp.Choices) == 0 {
		return nil
	}
	answer := strings.ReplaceAll(resp.Choices[0].Message.Content, "\r\n", "\n")

	var items []domain.ResultItem
	for _, para := range strings.Split(answer, "\n\n") {
		source := ""
		if m := citationMarker.FindStringSubmatch(para); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 && n <= len(resp.Citations) {
				source = resp.Citations[n-1]
			}
		}
		if source == "" && len(resp.Citations) > 0 {
			source = resp.Citations[0]
		}
		if source == "" {
			source = "perplexity"
		}

		content := strings.TrimSpace(citationMarker.ReplaceAllString(para, ""))
		if content == "" {
			continue
		}
		reliability := DefaultReliability
		items = append(items, domain.ResultItem{
			Content:     content,
			Source:      source,
			Reliability: &reliability,
		})
	}
	return items
}

// Ping sends a minimal query to validate the key.
func (c *Client) Ping(ctx context.Context) error {
	if _, _, err := c.search(ctx, "ping"); err != nil {
		return fmt.Errorf("perplexity: ping failed: %w", err)
	}
	return nil
}

// Close releases resources.
func (c *Client) Close() error {
	return nil
}
