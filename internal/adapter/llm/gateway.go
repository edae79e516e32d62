package llm

import (
	"context"
	"quiz-solver/internal/config"
	"quiz-solver/internal/domain"
	"quiz-solver/internal/logger"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

// Gateway implements domain.AnswerProvider on top of a langchaingo
// model. Rate limits are retried with a bounded wait and, on Groq,
// model rotation; every other provider failure propagates immediately.
type Gateway struct {
	model      llms.Model
	provider   string
	models     []string
	maxRetries int
	retryDelay time.Duration
}

// New creates the Gateway for the provider selected by configuration.
func New(ctx context.Context, cfg *config.Config) (*Gateway, error) {
	model, err := newModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return newGateway(model, cfg), nil
}

func newGateway(model llms.Model, cfg *config.Config) *Gateway {
	g := &Gateway{
		model:      model,
		provider:   cfg.Provider(),
		maxRetries: cfg.LLM.MaxRetries,
		retryDelay: cfg.LLM.RetryDelay,
	}
	if g.maxRetries <= 0 {
		g.maxRetries = 3
	}
	if g.provider == config.ProviderGroq {
		g.models = rotationFrom(cfg.LLM.GroqModel)
	} else {
		g.models = []string{cfg.LLM.GeminiModel}
	}
	return g
}

// rotationFrom orders the Groq model list so the configured model is
// tried first.
func rotationFrom(preferred string) []string {
	for i, m := range groqModels {
		if m == preferred {
			return append(append([]string{}, groqModels[i:]...), groqModels[:i]...)
		}
	}
	return append([]string{preferred}, groqModels...)
}

var _ domain.AnswerProvider = (*Gateway)(nil)

// Ask sends the prompt to the provider and parses the cleaned answer
// value out of the response text.
func (g *Gateway) Ask(ctx context.Context, query domain.LLMQuery) (*domain.LLMAnswer, error) {
	l := logger.Get()
	prompt := BuildPrompt(query)

	l.Debug("Calling LLM provider",
		zap.String("provider", g.provider),
		zap.Int("prompt_len", len(prompt)),
	)

	var lastErr error
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(g.retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		model := g.models[(attempt-1)%len(g.models)]
		raw, err := llms.GenerateFromSinglePrompt(ctx, g.model, prompt,
			llms.WithModel(model),
			llms.WithTemperature(0.1),
			llms.WithMaxTokens(500),
		)
		if err == nil {
			answer := ExtractAnswer(raw, query)
			l.Info("LLM answer parsed",
				zap.String("provider", g.provider),
				zap.String("model", model),
				zap.Int("attempts", attempt),
				zap.Any("answer", answer),
			)
			return &domain.LLMAnswer{
				Answer:   answer,
				Raw:      raw,
				Attempts: attempt,
			}, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if !isRateLimit(err) {
			// Non-rate-limit failures are not retried.
			return nil, domain.NewLLMResponseError(err)
		}

		lastErr = err
		l.Warn("LLM provider rate limited, rotating model",
			zap.String("model", model),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	return nil, domain.NewRateLimitExceededError(lastErr)
}

// isRateLimit reports whether the provider signalled throttling.
func isRateLimit(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "quota")
}
