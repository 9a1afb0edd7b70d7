// Package executor wraps single HTTP calls with bounded retry and
// rate-limit backoff. Every network step of a posting run goes through it.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseWait    = 2 * time.Second
	DefaultTimeout     = 10 * time.Second
)

// ErrExhausted is matched by every error Execute returns.
var ErrExhausted = errors.New("request attempts exhausted")

// ExhaustedError reports a call that never produced a definitive response.
type ExhaustedError struct {
	Method   string
	URL      string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("%s %s: %d attempts exhausted", e.Method, e.URL, e.Attempts)
	}
	return fmt.Sprintf("%s %s: %d attempts exhausted: %v", e.Method, e.URL, e.Attempts, e.Last)
}

func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Request is a replayable HTTP call.
type Request struct {
	Method      string
	URL         string
	Body        []byte
	ContentType string
	Header      http.Header
	Cookies     []*http.Cookie
}

// Response is a fully buffered HTTP response. Status interpretation is left
// to the caller.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Outcome classifies one attempt.
type Outcome string

const (
	OutcomeResponse    Outcome = "response"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeTransport   Outcome = "transport_error"
)

// Attempt is the ephemeral record used to drive retry decisions.
type Attempt struct {
	Method  string
	URL     string
	Number  int
	Outcome Outcome
	Status  int
	Err     error
	Wait    time.Duration
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Config tunes the retry policy.
type Config struct {
	MaxAttempts int
	BaseWait    time.Duration
	Timeout     time.Duration
	UserAgent   string
}

// Executor performs requests under the retry policy.
type Executor struct {
	client      *http.Client
	maxAttempts int
	baseWait    time.Duration
	userAgent   string
	sleep       Sleeper
	logger      *zap.Logger

	// OnAttempt, when set, sees every attempt after its outcome is known.
	OnAttempt func(Attempt)
}

// New builds an Executor. A nil client gets one with cfg.Timeout as its
// per-attempt timeout; zero config values fall back to the defaults.
func New(cfg Config, client *http.Client, logger *zap.Logger) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseWait < 0 {
		cfg.BaseWait = DefaultBaseWait
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		client:      client,
		maxAttempts: cfg.MaxAttempts,
		baseWait:    cfg.BaseWait,
		userAgent:   cfg.UserAgent,
		sleep:       sleepContext,
		logger:      logger,
	}
}

// WithSleeper replaces the wait function, mainly for tests.
func (e *Executor) WithSleeper(s Sleeper) *Executor {
	if s != nil {
		e.sleep = s
	}
	return e
}

// Execute runs req until it gets a non-429 response or the attempt budget
// is spent. On exhaustion it returns a nil response and an *ExhaustedError.
// A 429 waits BaseWait*attempt, including after the final attempt; a
// transport fault waits BaseWait only when another attempt remains.
func (e *Executor) Execute(ctx context.Context, req Request) (*Response, error) {
	var last error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		rec := Attempt{Method: req.Method, URL: req.URL, Number: attempt}

		httpReq, err := e.build(ctx, req)
		if err != nil {
			return nil, &ExhaustedError{Method: req.Method, URL: req.URL, Attempts: attempt, Last: err}
		}
		resp, err := e.do(httpReq)
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, &ExhaustedError{Method: req.Method, URL: req.URL, Attempts: attempt, Last: ctxErr}
			}
			last = err
			rec.Outcome, rec.Err, rec.Wait = OutcomeTransport, err, e.baseWait
			e.logger.Warn("request failed",
				zap.String("method", req.Method),
				zap.String("url", req.URL),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", e.maxAttempts),
				zap.Error(err))
		case resp.StatusCode == http.StatusTooManyRequests:
			last = fmt.Errorf("rate limited: status %d", resp.StatusCode)
			rec.Outcome, rec.Status, rec.Wait = OutcomeRateLimited, resp.StatusCode, e.baseWait*time.Duration(attempt)
			e.logger.Warn("rate limited",
				zap.String("method", req.Method),
				zap.String("url", req.URL),
				zap.Int("attempt", attempt),
				zap.Duration("wait", rec.Wait))
		default:
			rec.Outcome, rec.Status = OutcomeResponse, resp.StatusCode
			e.observe(rec)
			return resp, nil
		}

		if rec.Outcome == OutcomeTransport && attempt == e.maxAttempts {
			rec.Wait = 0
			e.observe(rec)
			break
		}
		e.observe(rec)
		if err := e.sleep(ctx, rec.Wait); err != nil {
			return nil, &ExhaustedError{Method: req.Method, URL: req.URL, Attempts: attempt, Last: err}
		}
	}
	return nil, &ExhaustedError{Method: req.Method, URL: req.URL, Attempts: e.maxAttempts, Last: last}
}

func (e *Executor) observe(a Attempt) {
	if e.OnAttempt != nil {
		e.OnAttempt(a)
	}
}

func (e *Executor) build(ctx context.Context, req Request) (*http.Request, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	if e.userAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", e.userAgent)
	}
	for _, c := range req.Cookies {
		httpReq.AddCookie(c)
	}
	return httpReq, nil
}

func (e *Executor) do(httpReq *http.Request) (*Response, error) {
	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
