package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Throttled wraps a Client so that every provider request first takes a
// token from a shared limiter.
type Throttled struct {
	Client
	limiter *rate.Limiter
}

// NewThrottled limits next to rps requests per second with the given burst.
// rps <= 0 disables limiting.
func NewThrottled(next Client, rps float64, burst int) *Throttled {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttled{Client: next, limiter: rate.NewLimiter(limit, burst)}
}

func (t *Throttled) wait(ctx context.Context) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("llm rate limiter: %w", err)
	}
	return nil
}

func (t *Throttled) GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	if err := t.wait(ctx); err != nil {
		return "", err
	}
	return t.Client.GenerateContent(ctx, prompt, tier)
}

func (t *Throttled) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	if err := t.wait(ctx); err != nil {
		return "", err
	}
	return t.Client.GenerateJSON(ctx, prompt, tier)
}

func (t *Throttled) GenerateWithDocument(ctx context.Context, prompt string, doc Document, tier ModelTier) (string, error) {
	if err := t.wait(ctx); err != nil {
		return "", err
	}
	return t.Client.GenerateWithDocument(ctx, prompt, doc, tier)
}

func (t *Throttled) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.Client.Embed(ctx, text)
}
