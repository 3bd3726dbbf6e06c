// Package source fetches random jokes from the icanhazdadjoke API.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"jokeboard/internal/config"
	"jokeboard/internal/models"
	"jokeboard/pkg/logger"
)

const (
	DefaultURL       = "https://icanhazdadjoke.com/"
	defaultUserAgent = "jokeboard/1.0"

	// Bodies are a few hundred bytes; anything bigger is not a joke.
	maxBodyBytes = 64 << 10
)

var ErrMalformedJoke = errors.New("malformed joke payload")

// StatusError is a non-200 answer from the API.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("joke API returned status %d", e.Code)
}

type Client struct {
	url       string
	userAgent string
	client    *http.Client
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

func WithURL(url string) Option {
	return func(c *Client) {
		c.url = url
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		url:       DefaultURL,
		userAgent: defaultUserAgent,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FromConfig builds a client from the source section of the config.
func FromConfig(cfg config.SourceConfig) *Client {
	opts := []Option{}
	if cfg.URL != "" {
		opts = append(opts, WithURL(cfg.URL))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, WithUserAgent(cfg.UserAgent))
	}
	if cfg.HTTPTimeout > 0 {
		opts = append(opts, WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}))
	}
	return New(opts...)
}

type jokeResponse struct {
	ID     string `json:"id"`
	Joke   string `json:"joke"`
	Status int    `json:"status"`
}

// RandomJoke performs one GET and returns the joke with zero votes,
// unlocked.
func (c *Client) RandomJoke(ctx context.Context) (models.Joke, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return models.Joke{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return models.Joke{}, fmt.Errorf("failed to fetch joke: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Warn("Non-OK status from joke API", logger.Int("status", resp.StatusCode))
		return models.Joke{}, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return models.Joke{}, fmt.Errorf("failed to read joke: %w", err)
	}

	return parseJoke(body)
}

func parseJoke(body []byte) (models.Joke, error) {
	var payload jokeResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return models.Joke{}, fmt.Errorf("%w: %v", ErrMalformedJoke, err)
	}

	id := strings.TrimSpace(payload.ID)
	text := normalizeText(payload.Joke)
	if id == "" {
		return models.Joke{}, fmt.Errorf("%w: missing id", ErrMalformedJoke)
	}
	if text == "" {
		return models.Joke{}, fmt.Errorf("%w: empty joke %s", ErrMalformedJoke, id)
	}

	return models.Joke{ID: id, Text: text}, nil
}

// normalizeText collapses runs of spaces and tabs and trims each line; the
// API pads some jokes and uses \r\n inconsistently.
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
