package opentdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"trivia-quiz-service/internal/domain"
)

const (
	// DefaultBaseURL is the public Open Trivia DB endpoint.
	DefaultBaseURL = "https://opentdb.com"
	// AnyCategoryCount is reported for the "any" category without asking upstream.
	AnyCategoryCount = 100

	defaultAttempts    = 3
	defaultBackoffStep = time.Second
	defaultFallbackTTL = 60 * time.Second
)

// Upstream envelope response codes.
const (
	codeSuccess      = 0
	codeNoResults    = 1
	codeInvalidParam = 2
	codeRateLimit    = 5
)

const (
	maxResponseBytes = 4 << 20
	categoriesKey    = "categories"
)

// Client fetches trivia questions from Open Trivia DB and absorbs its flakiness: transient
// failures are retried and rate limits are answered from the last good batch when it is
// recent enough. Caches live for the lifetime of the Client.
type Client struct {
	http        *http.Client
	baseURL     string
	logger      *zap.Logger
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
	shuffle     func(n int, swap func(i, j int))
	attempts    int
	backoffStep time.Duration
	fallbackTTL time.Duration
	sf          singleflight.Group

	mu         sync.Mutex
	last       *domain.Batch
	categories []domain.Category
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithClock is test-only for deterministic cache expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithSleep replaces the backoff sleeper, typically to skip real waits in tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

// WithShuffle replaces the answer shuffler.
func WithShuffle(shuffle func(n int, swap func(i, j int))) Option {
	return func(c *Client) { c.shuffle = shuffle }
}

func NewClient(baseURL string, logger *zap.Logger, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		http:        &http.Client{Timeout: 10 * time.Second},
		baseURL:     baseURL,
		logger:      logger,
		now:         time.Now,
		sleep:       sleepContext,
		shuffle:     rand.Shuffle,
		attempts:    defaultAttempts,
		backoffStep: defaultBackoffStep,
		fallbackTTL: defaultFallbackTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Acquire fetches a batch of questions for prefs.
func (c *Client) Acquire(ctx context.Context, prefs domain.Preferences) (domain.Batch, error) {
	prefs = prefs.Normalize()
	if err := validate(prefs); err != nil {
		return domain.Batch{}, err
	}
	endpoint := c.questionsURL(prefs)

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, c.backoffStep*time.Duration(attempt-1)); err != nil {
				return domain.Batch{}, err
			}
		}

		batch, err := c.fetchQuestions(ctx, endpoint)
		if err == nil {
			c.remember(batch)
			return batch, nil
		}
		if errors.Is(err, domain.ErrRateLimited) {
			if cached, ok := c.fallback(); ok {
				c.logger.Info("rate limited, serving cached batch",
					zap.Time("fetchedAt", cached.FetchedAt), zap.Int("questions", len(cached.Questions)))
				return cached, nil
			}
		}
		if !retryable(err) {
			return domain.Batch{}, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Batch{}, ctxErr
		}
		lastErr = err
		c.logger.Info("question fetch failed", zap.Int("attempt", attempt), zap.Error(err))
	}
	return domain.Batch{}, &domain.UnavailableError{Attempts: c.attempts, Err: lastErr}
}

// Count reports how many questions exist for category at difficulty.
func (c *Client) Count(ctx context.Context, category, difficulty string) (int, error) {
	if category == "" || category == domain.AnyCategory {
		return AnyCategoryCount, nil
	}
	if difficulty == "" {
		difficulty = domain.AnyDifficulty
	}
	if !domain.ValidDifficulty(difficulty) {
		return 0, fmt.Errorf("%w: difficulty %q", domain.ErrInvalidSelection, difficulty)
	}

	var env countEnvelope
	if err := c.getJSON(ctx, c.baseURL+"/api_count.php?category="+url.QueryEscape(category), &env); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	counts := env.Counts
	switch difficulty {
	case "easy":
		return counts.Easy, nil
	case "medium":
		return counts.Medium, nil
	case "hard":
		return counts.Hard, nil
	default:
		return counts.Total, nil
	}
}

// Categories returns the category catalog with "any" first. The catalog is fetched once.
func (c *Client) Categories(ctx context.Context) ([]domain.Category, error) {
	c.mu.Lock()
	if c.categories != nil {
		out := append([]domain.Category(nil), c.categories...)
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	result, err, _ := c.sf.Do(categoriesKey, func() (interface{}, error) {
		var env categoriesEnvelope
		if err := c.getJSON(ctx, c.baseURL+"/api_category.php", &env); err != nil {
			return nil, fmt.Errorf("fetch categories: %w", err)
		}
		cats := make([]domain.Category, 0, len(env.Categories)+1)
		cats = append(cats, domain.Category{ID: domain.AnyCategory, Name: "Any Category"})
		for _, cat := range env.Categories {
			cats = append(cats, domain.Category{ID: strconv.Itoa(cat.ID), Name: html.UnescapeString(cat.Name)})
		}
		c.mu.Lock()
		c.categories = cats
		c.mu.Unlock()
		return cats, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]domain.Category(nil), result.([]domain.Category)...), nil
}

func (c *Client) fetchQuestions(ctx context.Context, endpoint string) (domain.Batch, error) {
	var env questionsEnvelope
	if err := c.getJSON(ctx, endpoint, &env); err != nil {
		return domain.Batch{}, err
	}

	switch env.ResponseCode {
	case codeSuccess:
	case codeNoResults:
		return domain.Batch{}, domain.ErrInsufficientInventory
	case codeInvalidParam:
		return domain.Batch{}, domain.ErrInvalidSelection
	case codeRateLimit:
		return domain.Batch{}, domain.ErrRateLimited
	default:
		return domain.Batch{}, fmt.Errorf("unexpected response code %d", env.ResponseCode)
	}
	if len(env.Results) == 0 {
		return domain.Batch{}, domain.ErrInsufficientInventory
	}

	questions := make([]domain.Question, 0, len(env.Results))
	for _, raw := range env.Results {
		questions = append(questions, c.normalize(raw))
	}
	return domain.Batch{Questions: questions, FetchedAt: c.now()}, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, resp.Body)
		return domain.ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Path)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}

// normalize decodes HTML entities and shuffles the correct answer in with the distractors.
func (c *Client) normalize(raw rawQuestion) domain.Question {
	correct := html.UnescapeString(raw.CorrectAnswer)
	answers := make([]string, 0, len(raw.IncorrectAnswers)+1)
	for _, a := range raw.IncorrectAnswers {
		answers = append(answers, html.UnescapeString(a))
	}
	answers = append(answers, correct)
	c.shuffle(len(answers), func(i, j int) {
		answers[i], answers[j] = answers[j], answers[i]
	})

	return domain.Question{
		Prompt:        html.UnescapeString(raw.Question),
		Answers:       answers,
		CorrectAnswer: correct,
		Category:      html.UnescapeString(raw.Category),
		Difficulty:    raw.Difficulty,
	}
}

func (c *Client) remember(batch domain.Batch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := batch
	c.last = &b
}

// fallback returns the last good batch if it was fetched within the fallback window.
func (c *Client) fallback() (domain.Batch, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil || c.now().Sub(c.last.FetchedAt) >= c.fallbackTTL {
		return domain.Batch{}, false
	}
	b := *c.last
	b.Degraded = true
	return b, true
}

func (c *Client) questionsURL(prefs domain.Preferences) string {
	params := url.Values{}
	params.Set("amount", strconv.Itoa(prefs.Amount))
	params.Set("type", "multiple")
	if prefs.Category != domain.AnyCategory {
		params.Set("category", prefs.Category)
	}
	if prefs.Difficulty != domain.AnyDifficulty {
		params.Set("difficulty", prefs.Difficulty)
	}
	return c.baseURL + "/api.php?" + params.Encode()
}

func validate(prefs domain.Preferences) error {
	if !domain.ValidDifficulty(prefs.Difficulty) {
		return fmt.Errorf("%w: difficulty %q", domain.ErrInvalidSelection, prefs.Difficulty)
	}
	if prefs.Category != domain.AnyCategory {
		if id, err := strconv.Atoi(prefs.Category); err != nil || id <= 0 {
			return fmt.Errorf("%w: category %q", domain.ErrInvalidSelection, prefs.Category)
		}
	}
	if prefs.Amount > domain.MaxAmount {
		return fmt.Errorf("%w: amount %d exceeds %d", domain.ErrInvalidSelection, prefs.Amount, domain.MaxAmount)
	}
	return nil
}

// retryable excludes the outcomes a retry cannot change.
func retryable(err error) bool {
	return !errors.Is(err, domain.ErrInsufficientInventory) &&
		!errors.Is(err, domain.ErrInvalidSelection) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
