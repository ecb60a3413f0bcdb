package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// GuardedProvider stops calling a provider that keeps failing. While the
// breaker is open, Complete returns an error wrapping gobreaker.ErrOpenState
// without contacting the provider.
type GuardedProvider struct {
	provider Provider
	breaker  *gobreaker.CircuitBreaker
}

// NewGuardedProvider wraps provider with a circuit breaker named after the
// registry entry it serves.
func NewGuardedProvider(provider Provider, name string, logger *zap.Logger) *GuardedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("model", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
		// Bad requests and caller cancellations say nothing about provider health.
		IsSuccessful: func(err error) bool {
			return err == nil || IsClientError(err) || errors.Is(err, context.Canceled)
		},
	})
	return &GuardedProvider{provider: provider, breaker: cb}
}

func (g *GuardedProvider) Name() string {
	return g.provider.Name()
}

// State returns the breaker state.
func (g *GuardedProvider) State() gobreaker.State {
	return g.breaker.State()
}

func (g *GuardedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.provider.Complete(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s unavailable: %w", g.breaker.Name(), err)
		}
		return nil, err
	}
	return result.(*CompletionResponse), nil
}
