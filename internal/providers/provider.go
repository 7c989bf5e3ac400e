// Package providers wraps the external analysis backends. Every backend is a
// Client configured with its own Sender, retry Policy, timeout, cost Rates and
// field Schema, and every call settles into a Result.
package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Stable provider identifiers.
const (
	Craft           = "craft"
	RealityCheck    = "reality-check"
	Commercial      = "commercial"
	Excellence      = "excellence"
	Financial       = "financial"
	MarketResearch  = "market-research"
	ImageGeneration = "image-generation"
	SourceMaterial  = "source-material"
)

var (
	// ErrDisabled marks a backend without credentials. Callers treat it as a skip.
	ErrDisabled = errors.New("provider disabled")
	// ErrOverloaded marks a transient server-overload condition.
	ErrOverloaded = errors.New("provider overloaded")
)

// StatusError is a non-2xx response from a backend.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s http status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Is lets errors.Is(err, ErrOverloaded) match HTTP 529 and overload bodies.
func (e *StatusError) Is(target error) bool {
	if target != ErrOverloaded {
		return false
	}
	return e.StatusCode == 529 || strings.Contains(strings.ToLower(e.Body), "overloaded")
}

// Request is the input shared by every backend for one submission.
type Request struct {
	SubmissionID  string
	Title         string
	Text          string
	Genre         string
	BudgetContext string
	// Extra carries primary-analysis context (logline, characters) for backends that use it.
	Extra map[string]any
}

// Prompt is what a Sender transmits.
type Prompt struct {
	System    string
	User      string
	MaxTokens int
	JSON      bool
}

// Text returns the prompt as one string, used for token estimation.
func (p Prompt) Text() string {
	if p.System == "" {
		return p.User
	}
	return p.System + "\n\n" + p.User
}

// Sender performs one call to a backend and returns the raw completion text.
type Sender interface {
	Send(ctx context.Context, prompt Prompt) (string, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, prompt Prompt) (string, error)

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, prompt Prompt) (string, error) {
	return f(ctx, prompt)
}

// Provider is one analysis backend.
type Provider interface {
	Name() string
	Enabled() bool
	// Analyze always returns a Result naming the provider. A non-nil error means
	// the call failed (ErrDisabled for an unconfigured backend); the Result then
	// carries the error detail and zero cost.
	Analyze(ctx context.Context, req Request) (Result, error)
}
