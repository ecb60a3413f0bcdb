package llm

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// LoggingProvider logs every completion with its token usage and an
// estimated cost.
type LoggingProvider struct {
	provider Provider
	logger   *zap.Logger
}

// NewLoggingProvider wraps provider. A nil logger disables logging.
func NewLoggingProvider(provider Provider, logger *zap.Logger) *LoggingProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingProvider{provider: provider, logger: logger.Named("llm")}
}

func (l *LoggingProvider) Name() string {
	return l.provider.Name()
}

func (l *LoggingProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()
	resp, err := l.provider.Complete(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		l.logger.Warn("completion failed",
			zap.String("provider", l.provider.Name()),
			zap.String("model", req.Model),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return nil, err
	}

	inputTokens := resp.InputTokens
	if inputTokens == 0 {
		for _, m := range req.Messages {
			inputTokens += EstimateTokens(m.Content)
		}
	}
	l.logger.Debug("completion",
		zap.String("provider", l.provider.Name()),
		zap.String("model", resp.Model),
		zap.Int("input_tokens", inputTokens),
		zap.Int("output_tokens", resp.OutputTokens),
		zap.Float64("cost_usd", EstimateCost(resp.Model, inputTokens, resp.OutputTokens)),
		zap.String("finish_reason", resp.FinishReason),
		zap.Duration("duration", elapsed),
	)
	return resp, nil
}
