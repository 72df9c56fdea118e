// Package delivery signs composed activities with HTTP Signatures and pushes
// them to a remote inbox. Each call makes exactly one network attempt.
package delivery

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/beevik/guid"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/cvhariharan/alice/activity"
	"github.com/cvhariharan/alice/keys"
)

const defaultMaxResponseBytes = 1 << 20

// Result is what the remote inbox answered.
type Result struct {
	Status int
	Body   string
}

// Client delivers documents on behalf of one actor key. It holds no
// per-delivery state and is safe for concurrent use.
type Client struct {
	http             *resty.Client
	keys             keys.Provider
	keyID            string
	now              func() time.Time
	timeout          time.Duration
	maxResponseBytes int64
	logger           *zap.Logger
	metrics          *Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sends requests through the given resty client.
func WithHTTPClient(c *resty.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithClock overrides the source of the Date header.
func WithClock(now func() time.Time) Option {
	return func(cl *Client) { cl.now = now }
}

// WithTimeout bounds each delivery. Zero leaves only the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.timeout = d }
}

// WithMaxResponseBytes caps how much of the response body is kept.
func WithMaxResponseBytes(n int64) Option {
	return func(cl *Client) { cl.maxResponseBytes = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// WithMetrics records outcomes in m.
func WithMetrics(m *Metrics) Option {
	return func(cl *Client) { cl.metrics = m }
}

// NewClient returns a Client signing with the key from provider under keyID.
func NewClient(provider keys.Provider, keyID string, opts ...Option) *Client {
	c := &Client{
		keys:             provider,
		keyID:            keyID,
		now:              time.Now,
		maxResponseBytes: defaultMaxResponseBytes,
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = resty.New()
	}
	// One exchange per delivery: no retries, no redirects, no cookie jar.
	c.http.SetRetryCount(0)
	c.http.SetCookieJar(nil)
	c.http.GetClient().CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return c
}

// Deliver signs doc and POSTs it to target. On success it returns the remote
// status and body. Failures are *KeyError, *SigningError or *DeliveryError.
func (c *Client) Deliver(ctx context.Context, doc activity.Document, target Target) (*Result, error) {
	attempt := guid.NewString()
	log := c.logger.With(
		zap.String("attempt", attempt),
		zap.String("target", target.URL()),
	)

	req, err := c.prepare(doc, target)
	if err != nil {
		log.Error("failed to sign delivery", zap.Error(err))
		return nil, err
	}

	log.Debug("sending signed activity",
		zap.String("date", req.Header.Get("Date")),
		zap.String("digest", req.Header.Get("Digest")),
		zap.Int("bytes", len(req.Body)))

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	r := c.http.R().
		SetContext(ctx).
		SetBody(req.Body).
		SetDoNotParseResponse(true)
	for name := range req.Header {
		r.SetHeader(name, req.Header.Get(name))
	}

	resp, err := r.Execute(req.Method, req.URL)
	if c.metrics != nil {
		c.metrics.Duration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		derr := classify(ctx, target, err)
		c.metrics.observe(derr.Kind.String())
		log.Warn("delivery failed", zap.Stringer("kind", derr.Kind), zap.Error(err))
		return nil, derr
	}

	body := c.readBody(resp, log)
	status := resp.StatusCode()

	if status < 200 || status > 299 {
		c.metrics.observe(OutcomeRemoteRejected)
		log.Warn("remote inbox rejected activity", zap.Int("status", status), zap.String("body", body))
		return nil, &DeliveryError{Kind: RemoteRejected, Target: target.URL(), Status: status, Body: body}
	}

	c.metrics.observe(OutcomeDelivered)
	log.Info("activity delivered", zap.Int("status", status), zap.Duration("elapsed", time.Since(start)))
	return &Result{Status: status, Body: body}, nil
}

// prepare loads the key and produces the signed request.
func (c *Client) prepare(doc activity.Document, target Target) (*Request, error) {
	pemData, err := c.keys.PrivateKeyPEM()
	if err != nil {
		c.metrics.observe(OutcomeKeyError)
		return nil, &KeyError{Err: err}
	}

	req, err := NewRequest(doc, target, c.keyID, pemData, c.now())
	if err != nil {
		var kerr *KeyError
		if errors.As(err, &kerr) {
			c.metrics.observe(OutcomeKeyError)
		} else {
			c.metrics.observe(OutcomeSigningError)
		}
		return nil, err
	}
	return req, nil
}

// readBody reads the response best-effort. A failed read is logged and
// degrades to an empty body.
func (c *Client) readBody(resp *resty.Response, log *zap.Logger) string {
	raw := resp.RawBody()
	if raw == nil {
		return ""
	}
	defer raw.Close()

	b, err := io.ReadAll(io.LimitReader(raw, c.maxResponseBytes))
	if err != nil {
		log.Warn("failed to read response body", zap.Error(err))
		return ""
	}
	return string(b)
}

func classify(ctx context.Context, target Target, err error) *DeliveryError {
	kind := Transport
	var nerr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		kind = Timeout
	case errors.As(err, &nerr) && nerr.Timeout():
		kind = Timeout
	}
	return &DeliveryError{Kind: kind, Target: target.URL(), Err: err}
}
