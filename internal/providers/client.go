package providers

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"screenplay-analyzer/internal/jsonrepair"
	"screenplay-analyzer/internal/shared/metrics"
	"screenplay-analyzer/internal/shared/telemetry"
)

// Config describes one backend.
type Config struct {
	Name  string
	Model string
	// Sender is nil when credentials are missing; the client is then disabled.
	Sender  Sender
	Policy  Policy
	Rates   Rates
	Timeout time.Duration
	// MaxChars truncates the screenplay before prompting; zero keeps it whole.
	MaxChars int
	Build    func(req Request) Prompt
	Schema   Schema
	// Finalize adjusts a successful result, e.g. to derive extra fields.
	Finalize func(r *Result, req Request)
	Now      func() time.Time
}

// Client is the generic Provider implementation.
type Client struct {
	cfg Config
}

// NewClient builds a client. A nil Sender yields a disabled client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Policy.MaxAttempts == 0 {
		cfg.Policy = NoRetry()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Client{cfg: cfg}
}

// Name returns the provider identifier.
func (c *Client) Name() string { return c.cfg.Name }

// Enabled reports whether the backend has credentials.
func (c *Client) Enabled() bool { return c.cfg.Sender != nil }

// Schema exposes the output contract.
func (c *Client) Schema() Schema { return c.cfg.Schema }

// Analyze runs one call through truncation, prompting, the retry policy, the
// per-call timeout, tolerant parsing and cost estimation.
func (c *Client) Analyze(ctx context.Context, req Request) (Result, error) {
	if !c.Enabled() {
		return Skipped(c.cfg.Name), ErrDisabled
	}
	start := c.cfg.Now()
	req.Text = Truncate(req.Text, c.cfg.MaxChars)
	prompt := c.cfg.Build(req)
	log := telemetry.L().With(
		zap.String("provider", c.cfg.Name),
		zap.String("analysis_id", req.SubmissionID),
	)

	var raw string
	attempts, err := c.cfg.Policy.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
		out, err := c.cfg.Sender.Send(callCtx, prompt)
		if err != nil {
			if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				return fmt.Errorf("%s request timeout after %s: %w", c.cfg.Name, c.cfg.Timeout, err)
			}
			return err
		}
		raw = out
		return nil
	}, func(attempt int, wait time.Duration, err error) {
		metrics.IncProviderRetry(c.cfg.Name)
		log.Warn("provider.retry",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})

	res := Result{
		Provider: c.cfg.Name,
		Model:    c.cfg.Model,
		Attempts: attempts,
		Duration: c.cfg.Now().Sub(start),
	}
	if err != nil {
		res.Error = sanitizeError(err.Error())
		log.Warn("provider.failed", zap.Int("attempts", attempts), zap.Error(err))
		return res, err
	}

	payload, perr := jsonrepair.Parse(raw)
	if perr != nil {
		payload = nil
		res.Repaired = true
		log.Warn("provider.parse_fallback", zap.Int("raw_len", len(raw)))
	}
	c.cfg.Schema.apply(&res, payload, raw)
	res.Success = true
	if c.cfg.Finalize != nil {
		c.cfg.Finalize(&res, req)
	}

	res.InputTokens = EstimateTokens(prompt.Text())
	res.OutputTokens = EstimateTokens(raw)
	res.Cost = c.cfg.Rates.Cost(res.InputTokens, res.OutputTokens)
	log.Info("provider.complete",
		zap.Int("attempts", attempts),
		zap.Float64("cost", res.Cost),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// Truncate cuts s to at most max bytes without splitting a rune. max <= 0 keeps s.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
