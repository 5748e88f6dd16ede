package submissions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/mitesh006/Code-duel-backend/internal/config"
	"github.com/mitesh006/Code-duel-backend/internal/logger"
	"github.com/mitesh006/Code-duel-backend/internal/types"
)

const name = "github.com/mitesh006/Code-duel-backend/internal/submissions"

var tracer = otel.Tracer(name)

const (
	submissionsQuery = `query recentSubmissions($username: String!, $from: Int!, $to: Int!) {
  submissions(username: $username, from: $from, to: $to) {
    problemSlug
    difficulty
    timestamp
    accepted
  }
}`

	questionQuery = `query question($titleSlug: String!) {
  question(titleSlug: $titleSlug) {
    titleSlug
    title
    difficulty
  }
}`

	maxErrorBody = 512
)

type Client struct {
	http      *retryablehttp.Client
	url       string
	userAgent string
	cache     *MetadataCache
}

// `cache` may be nil, in which case every metadata lookup goes upstream
func NewClient(conf *config.SubmissionsConfig, cache *MetadataCache) *Client {
	spacing := rate.Inf
	if conf.Spacing > 0 {
		spacing = rate.Every(conf.Spacing)
	}

	client := retryablehttp.NewClient()
	client.RetryMax = max(conf.MaxAttempts-1, 0)
	client.RetryWaitMin = conf.BackoffBase
	client.RetryWaitMax = conf.BackoffMax
	client.Backoff = backoff
	client.CheckRetry = checkRetry
	client.ErrorHandler = errorHandler
	client.Logger = logger.Logger
	client.HTTPClient.Timeout = conf.Timeout
	client.HTTPClient.Transport = &gatedTransport{
		next:    client.HTTPClient.Transport,
		sem:     semaphore.NewWeighted(conf.Concurrency),
		spacing: rate.NewLimiter(spacing, 1),
	}

	return &Client{
		http:      client,
		url:       conf.URL,
		userAgent: conf.UserAgent,
		cache:     cache,
	}
}

// Only 429 is retried here. Every other failure surfaces immediately so the job queue's
// own policy decides whether to try again.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return false, nil
	}

	return resp.StatusCode == http.StatusTooManyRequests, nil
}

// Honors Retry-After, otherwise doubles from the base. Never waits longer than the max.
func backoff(minWait, maxWait time.Duration, attemptNum int, resp *http.Response) time.Duration {
	return min(retryablehttp.DefaultBackoff(minWait, maxWait, attemptNum, resp), maxWait)
}

func errorHandler(resp *http.Response, err error, numTries int) (*http.Response, error) {
	if resp != nil {
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))

		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, &RateLimitedError{
				Attempts:   numTries,
				RetryAfter: retryAfter(resp),
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("upstream request failed after %d attempts: %w", numTries, err)
	}

	return nil, fmt.Errorf("upstream request failed after %d attempts", numTries)
}

func retryAfter(resp *http.Response) time.Duration {
	s, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || s < 0 {
		return 0
	}

	return time.Duration(s) * time.Second
}

type (
	gqlRequest struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}

	gqlError struct {
		Message string `json:"message"`
	}

	submissionsData struct {
		Submissions []struct {
			ProblemSlug string           `json:"problemSlug"`
			Difficulty  types.Difficulty `json:"difficulty"`
			Timestamp   int64            `json:"timestamp"`
			Accepted    bool             `json:"accepted"`
		} `json:"submissions"`
	}

	questionData struct {
		Question *struct {
			TitleSlug  string           `json:"titleSlug"`
			Title      string           `json:"title"`
			Difficulty types.Difficulty `json:"difficulty"`
		} `json:"question"`
	}
)

func (c *Client) query(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(gqlRequest{Query: query, Variables: variables})
	if err != nil {
		return err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []gqlError      `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode upstream response: %w", err)
	}

	if len(envelope.Errors) > 0 {
		messages := make([]string, 0, len(envelope.Errors))
		for _, e := range envelope.Errors {
			messages = append(messages, e.Message)
		}
		return &QueryError{Messages: messages}
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode upstream data: %w", err)
	}

	return nil
}

// Submissions by `username` with timestamps in [from, to)
func (c *Client) FetchSubmissions(
	ctx context.Context,
	username string,
	from, to time.Time,
) ([]types.Submission, error) {
	ctx, span := tracer.Start(ctx, "Client.FetchSubmissions", trace.WithAttributes(
		attribute.String("username", username),
		attribute.String("from", from.Format(time.RFC3339)),
		attribute.String("to", to.Format(time.RFC3339)),
	))
	defer span.End()

	var data submissionsData
	err := c.query(ctx, submissionsQuery, map[string]any{
		"username": username,
		"from":     from.Unix(),
		"to":       to.Unix(),
	}, &data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch submissions")
		return nil, err
	}

	subs := make([]types.Submission, 0, len(data.Submissions))
	for _, s := range data.Submissions {
		subs = append(subs, types.Submission{
			ProblemSlug: s.ProblemSlug,
			Difficulty:  s.Difficulty,
			Timestamp:   time.Unix(s.Timestamp, 0).UTC(),
			Accepted:    s.Accepted,
		})
	}

	span.SetAttributes(attribute.Int("submissions", len(subs)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "fetched submissions")
	return subs, nil
}

func (c *Client) FetchProblemMetadata(ctx context.Context, slug string) (*types.ProblemMetadata, error) {
	ctx, span := tracer.Start(ctx, "Client.FetchProblemMetadata", trace.WithAttributes(
		attribute.String("slug", slug),
	))
	defer span.End()

	if c.cache != nil {
		meta, err := c.cache.Get(ctx, slug)
		if err != nil {
			logger.Logger.WarnContext(ctx, "problem metadata cache read failed", "slug", slug, "error", err)
		} else if meta != nil {
			span.AddEvent("cache hit")
			span.RecordError(nil)
			span.SetStatus(codes.Ok, "fetched problem metadata")
			return meta, nil
		}
	}

	var data questionData
	if err := c.query(ctx, questionQuery, map[string]any{"titleSlug": slug}, &data); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch problem metadata")
		return nil, err
	}

	if data.Question == nil {
		span.RecordError(ErrProblemNotFound)
		span.SetStatus(codes.Error, "problem not found")
		return nil, fmt.Errorf("%w: %s", ErrProblemNotFound, slug)
	}

	meta := &types.ProblemMetadata{
		Slug:       data.Question.TitleSlug,
		Title:      data.Question.Title,
		Difficulty: data.Question.Difficulty,
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, slug, meta); err != nil {
			logger.Logger.WarnContext(ctx, "problem metadata cache write failed", "slug", slug, "error", err)
		}
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "fetched problem metadata")
	return meta, nil
}
