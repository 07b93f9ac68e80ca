package moodleapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"moodle-sync/core/provider"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const restPath = "/webservice/rest/server.php"

// Exception is an error payload returned by the Moodle web service.
type Exception struct {
	Exception string `json:"exception"`
	ErrorCode string `json:"errorcode"`
	Message   string `json:"message"`
	DebugInfo string `json:"debuginfo"`
}

func (e *Exception) Error() string {
	msg := fmt.Sprintf("%s (%s): %s", e.Exception, e.ErrorCode, e.Message)
	if e.DebugInfo != "" {
		msg += " " + e.DebugInfo
	}
	return msg
}

// Client calls Moodle web service functions.
// Reads are sent as GET and retried; mutations are sent as POST and suppressed in dry-run mode.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
	limiter  *rate.Limiter
	retries  int
	dryRun   bool
	logger   *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// NewClient creates a client for the site in cfg.
func NewClient(cfg Config, dryRun bool, logger *zap.Logger, opts ...ClientOption) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("moodle url is required")
	}
	if cfg.Token == "" {
		return nil, errors.New("moodle token is required")
	}
	base := strings.TrimRight(cfg.URL, "/")
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid moodle url: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	c := &Client{
		endpoint: base + restPath,
		token:    cfg.Token,
		http:     &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(limit, 1),
		retries:  max(cfg.Retries, 0),
		dryRun:   dryRun,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// DryRun reports whether mutations are suppressed.
func (c *Client) DryRun() bool {
	return c.dryRun
}

// Read calls a read-only function and decodes the result into out.
// Transient failures are retried with exponential backoff.
func (c *Client) Read(ctx context.Context, function string, params url.Values, out any) error {
	op := func() (struct{}, error) {
		err := c.call(ctx, http.MethodGet, function, params, out)
		var exc *Exception
		if errors.As(err, &exc) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}
	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(c.retries+1)),
	)
	if err != nil {
		return provider.Transport(function, err)
	}
	return nil
}

// Write calls a mutating function and decodes the result into out, which may be nil.
// In dry-run mode nothing is sent and applied is false.
func (c *Client) Write(ctx context.Context, function string, params url.Values, out any) (applied bool, err error) {
	if c.dryRun {
		c.logger.Debug("Dry run, skipping web service call",
			zap.String("function", function),
			zap.Any("params", redact(params)),
		)
		return false, nil
	}
	if err := c.call(ctx, http.MethodPost, function, params, out); err != nil {
		return false, provider.Transport(function, err)
	}
	return true, nil
}

func (c *Client) call(ctx context.Context, method, function string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("wstoken", c.token)
	q.Set("wsfunction", function)
	q.Set("moodlewsrestformat", "json")

	var req *http.Request
	var err error
	if method == http.MethodGet {
		req, err = http.NewRequestWithContext(ctx, method, c.endpoint+"?"+q.Encode(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.endpoint, strings.NewReader(q.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return c.scrub(err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return c.scrub(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("Web service call",
		zap.String("function", function),
		zap.String("method", method),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	trimmed := bytes.TrimSpace(body)
	if bytes.HasPrefix(trimmed, []byte("{")) {
		var exc Exception
		if err := json.Unmarshal(trimmed, &exc); err == nil && exc.Exception != "" {
			return &exc
		}
	}
	if out == nil || len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("decode %s response: %w", function, err)
	}
	return nil
}

// scrub replaces the request URL in err, which carries the token for reads, with the bare endpoint.
func (c *Client) scrub(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		uerr.URL = c.endpoint
	}
	return err
}

// redact masks password parameters.
func redact(params url.Values) url.Values {
	out := make(url.Values, len(params))
	for k, v := range params {
		if strings.HasSuffix(k, "[password]") {
			v = []string{"***"}
		}
		out[k] = v
	}
	return out
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
