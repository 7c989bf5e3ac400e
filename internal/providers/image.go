package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"screenplay-analyzer/internal/shared/telemetry"
)

// ImageSender renders one image and returns its URL.
type ImageSender interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// ImageSenderFunc adapts a function to ImageSender.
type ImageSenderFunc func(ctx context.Context, prompt string) (string, error)

// GenerateImage calls f.
func (f ImageSenderFunc) GenerateImage(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// DefaultCostPerImage is the flat price of one generated poster.
const DefaultCostPerImage = 0.04

type posterVariation struct {
	name  string
	style string
}

var posterVariations = []posterVariation{
	{name: "theatrical", style: "a cinematic theatrical release poster with dramatic lighting and a bold title treatment"},
	{name: "character", style: "a character-focused teaser poster built around the protagonist's silhouette"},
}

// ImageClient generates poster concepts. It satisfies Provider but reports no score.
type ImageClient struct {
	Sender       ImageSender
	Model        string
	CostPerImage float64
	Timeout      time.Duration
	Now          func() time.Time
}

// NewImage builds the poster backend. A nil sender yields a disabled client.
func NewImage(sender ImageSender, model string) *ImageClient {
	return &ImageClient{
		Sender:       sender,
		Model:        model,
		CostPerImage: DefaultCostPerImage,
		Timeout:      120 * time.Second,
		Now:          time.Now,
	}
}

// Name returns the provider identifier.
func (c *ImageClient) Name() string { return ImageGeneration }

// Enabled reports whether the backend has credentials.
func (c *ImageClient) Enabled() bool { return c.Sender != nil }

// Analyze renders each poster variation in turn. It succeeds when at least one
// image came back and is charged per image rendered.
func (c *ImageClient) Analyze(ctx context.Context, req Request) (Result, error) {
	if !c.Enabled() {
		return Skipped(ImageGeneration), ErrDisabled
	}
	now := c.Now
	if now == nil {
		now = time.Now
	}
	start := now()
	log := telemetry.L().With(
		zap.String("provider", ImageGeneration),
		zap.String("analysis_id", req.SubmissionID),
	)

	var (
		urls    []any
		prompts []any
		errs    []error
	)
	for _, v := range posterVariations {
		prompt := posterPrompt(req, v)
		callCtx, cancel := context.WithTimeout(ctx, c.Timeout)
		url, err := c.Sender.GenerateImage(callCtx, prompt)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s poster: %w", v.name, err))
			log.Warn("provider.poster_failed", zap.String("variation", v.name), zap.Error(err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if url == "" {
			continue
		}
		urls = append(urls, url)
		prompts = append(prompts, prompt)
	}

	res := Result{
		Provider: ImageGeneration,
		Model:    c.Model,
		Attempts: 1,
		Duration: now().Sub(start),
	}
	if len(urls) == 0 {
		err := errors.Join(errs...)
		if err == nil {
			err = errors.New("no poster was generated")
		}
		res.Error = sanitizeError(err.Error())
		return res, err
	}

	res.Success = true
	res.Fields = map[string]any{
		"poster_urls":     urls,
		"poster_prompts":  prompts,
		"best_poster_url": urls[0],
		"success_count":   float64(len(urls)),
	}
	res.Cost = float64(len(urls)) * c.CostPerImage
	log.Info("provider.complete", zap.Int("posters", len(urls)), zap.Float64("cost", res.Cost))
	return res, nil
}

func posterPrompt(req Request, v posterVariation) string {
	genre := req.Genre
	if genre == "" {
		genre = "Drama"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Design %s for a %s film titled %q.", v.style, strings.ToLower(genre), req.Title)
	if logline, ok := req.Extra["logline"].(string); ok && logline != "" {
		fmt.Fprintf(&b, " Story: %s", logline)
	}
	b.WriteString(" No text other than the title. Portrait orientation.")
	return b.String()
}
