// Package bgg contains the BoardGameGeek XML API client: a retrying collection
// fetcher, the backoff policy it waits with, and the decoder that turns a
// collection document into typed ownership records.
package bgg

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/benjamind10/darkbot/telemetry"
)

const (
	// DefaultBaseURL is the public BGG XML API root.
	DefaultBaseURL = "https://api.geekdo.com/xmlapi"
	// DefaultPendingDelay is how long to wait after a 202 before re-polling.
	DefaultPendingDelay = 5 * time.Second

	// bodyExcerptLen bounds how much of an error response body is logged.
	bodyExcerptLen = 1000
)

// Outcome is the result of one logical collection fetch.
// Exactly one of three shapes:
//   - Body set, Status 200: success.
//   - Body nil, Status set: terminal failure (auth error or unexpected status).
//   - Body nil, Status 0: attempts exhausted on transient failures only.
type Outcome struct {
	Body   []byte
	Status int
}

// OK reports whether the fetch produced a collection body.
func (o Outcome) OK() bool { return o.Status == http.StatusOK && o.Body != nil }

// AuthError reports whether the fetch terminated on a 401/403.
func (o Outcome) AuthError() bool {
	return o.Status == http.StatusUnauthorized || o.Status == http.StatusForbidden
}

// Exhausted reports whether every attempt failed transiently.
func (o Outcome) Exhausted() bool { return o.Status == 0 }

// Client fetches BGG collections. The zero value is usable; fields override
// the defaults. SessionCookie, when non-empty, is sent as a bggsession cookie
// so otherwise-restricted collections can be read.
type Client struct {
	BaseURL       string
	HTTPClient    *http.Client
	SessionCookie string
	Backoff       BackoffPolicy
	PendingDelay  time.Duration
	Logger        *slog.Logger

	// sleep is overridable in tests to observe waits without real time.
	sleep func(ctx context.Context, d time.Duration) error
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) log() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return DefaultBaseURL
}

func (c *Client) pendingDelay() time.Duration {
	if c.PendingDelay > 0 {
		return c.PendingDelay
	}
	return DefaultPendingDelay
}

func (c *Client) wait(ctx context.Context, d time.Duration) error {
	if c.sleep != nil {
		return c.sleep(ctx, d)
	}
	return sleepCtx(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// FetchCollection performs one logical fetch of username's collection, looping
// up to maxAttempts times over the 200/202/429/401/403/5xx state machine.
// A non-nil error is returned only for invalid input or context cancellation;
// every API-level failure is encoded in the Outcome.
func (c *Client) FetchCollection(ctx context.Context, username string, maxAttempts int) (Outcome, error) {
	if username == "" {
		return Outcome{}, fmt.Errorf("username empty")
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	reqURL := fmt.Sprintf("%s/collection/%s?stats=1", c.baseURL(), url.PathEscape(username))
	logger := c.log().With(slog.String("bgguser", username))
	logger.Info("fetching BGG collection", slog.Int("max_attempts", maxAttempts))

	start := time.Now()
	defer func() { telemetry.ObserveFetchDuration(time.Since(start)) }()

	// errAttempts drives the exponential backoff: pending (202) rounds consume
	// the attempt budget but not the backoff sequence.
	errAttempts := 0
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		telemetry.IncFetchAttempts()
		body, status, retryAfter, err := c.doRequest(ctx, reqURL)
		if err != nil {
			if ctx.Err() != nil {
				return Outcome{}, ctx.Err()
			}
			// Transport failures are transient; back off and retry.
			errAttempts++
			logger.Warn("transport error fetching BGG collection",
				slog.Int("attempt", attempt), slog.Any("err", err))
			if werr := c.wait(ctx, c.Backoff.Wait(errAttempts, "")); werr != nil {
				return Outcome{}, werr
			}
			continue
		}

		switch Classify(status) {
		case ClassSuccess:
			logger.Info("fetched BGG collection", slog.Int("attempt", attempt), slog.Int("bytes", len(body)))
			return Outcome{Body: body, Status: status}, nil
		case ClassPending:
			logger.Info("BGG collection still being prepared, retrying",
				slog.Int("attempt", attempt), slog.Duration("delay", c.pendingDelay()))
			if werr := c.wait(ctx, c.pendingDelay()); werr != nil {
				return Outcome{}, werr
			}
		case ClassRateLimited:
			errAttempts++
			d := c.Backoff.Wait(errAttempts, retryAfter)
			logger.Warn("rate limited by BGG, backing off",
				slog.Int("attempt", attempt), slog.Duration("delay", d))
			if werr := c.wait(ctx, d); werr != nil {
				return Outcome{}, werr
			}
		case ClassAuthError:
			logger.Warn("Authorization error fetching BGG collection; the collection may be private. "+
				"Set BGG_SESSION_COOKIE to access restricted collections.",
				slog.Int("status", status), slog.String("body", excerpt(body)))
			return Outcome{Status: status}, nil
		case ClassServerError:
			errAttempts++
			logger.Warn("BGG server error, retrying",
				slog.Int("status", status), slog.Int("attempt", attempt))
			if werr := c.wait(ctx, c.Backoff.Wait(errAttempts, "")); werr != nil {
				return Outcome{}, werr
			}
		case ClassOther:
			logger.Warn("unexpected status fetching BGG collection",
				slog.Int("status", status), slog.String("reason", http.StatusText(status)),
				slog.String("body", excerpt(body)))
			return Outcome{Status: status}, nil
		}
	}

	logger.Error("exhausted attempts fetching BGG collection", slog.Int("max_attempts", maxAttempts))
	return Outcome{}, nil
}

// doRequest issues one GET and returns the body, status, and the raw
// Retry-After header value (empty when absent).
func (c *Client) doRequest(ctx context.Context, reqURL string) (body []byte, status int, retryAfter string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, "", err
	}
	if c.SessionCookie != "" {
		req.AddCookie(&http.Cookie{Name: "bggsession", Value: c.SessionCookie})
	}
	resp, err := c.http().Do(req)
	if err != nil {
		return nil, 0, "", err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log().Warn("failed to close response body", slog.Any("err", cerr))
		}
	}()
	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, "", err
	}
	return body, resp.StatusCode, resp.Header.Get("Retry-After"), nil
}

// excerpt truncates a response body for logging.
func excerpt(b []byte) string {
	if len(b) > bodyExcerptLen {
		return string(b[:bodyExcerptLen])
	}
	return string(b)
}
