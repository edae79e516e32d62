package llm

import (
	"context"
	"errors"
	"quiz-solver/internal/config"
	"quiz-solver/internal/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeModel scripts one response or error per call.
type fakeModel struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	content := ""
	if i < len(f.responses) {
		content = f.responses[i]
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: content}},
	}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := f.GenerateContent(ctx, nil, options...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

func testConfig() *config.Config {
	return &config.Config{
		LLM: config.LLM{
			GroqAPIKey: "test-key",
			GroqModel:  "llama-3.1-8b-instant",
			MaxRetries: 3,
			RetryDelay: time.Millisecond,
		},
	}
}

func domainCode(t *testing.T, err error) domain.ErrorCode {
	t.Helper()
	var domainErr *domain.DomainError
	require.True(t, errors.As(err, &domainErr), "expected DomainError, got %v", err)
	return domainErr.Code
}

func TestGateway_Ask_Success(t *testing.T) {
	model := &fakeModel{responses: []string{"The answer is 42."}}
	g := newGateway(model, testConfig())

	answer, err := g.Ask(context.Background(), domain.LLMQuery{
		Question: "What is the sum of the value column?",
		TaskHint: domain.TaskNumeric,
	})
	require.NoError(t, err)
	assert.Equal(t, 42, answer.Answer)
	assert.Equal(t, 1, answer.Attempts)
	assert.Equal(t, 1, model.calls)
}

func TestGateway_Ask_RateLimitThenSuccess(t *testing.T) {
	model := &fakeModel{
		errs:      []error{errors.New("429 Too Many Requests"), nil},
		responses: []string{"", "7"},
	}
	g := newGateway(model, testConfig())

	answer, err := g.Ask(context.Background(), domain.LLMQuery{
		Question: "Count the rows.",
		TaskHint: domain.TaskNumeric,
	})
	require.NoError(t, err)
	assert.Equal(t, 7, answer.Answer)
	assert.Greater(t, answer.Attempts, 1)
	assert.Equal(t, 2, model.calls)
}

func TestGateway_Ask_RateLimitExhausted(t *testing.T) {
	rateLimited := errors.New("rate limit reached for model")
	model := &fakeModel{errs: []error{rateLimited, rateLimited, rateLimited}}
	g := newGateway(model, testConfig())

	_, err := g.Ask(context.Background(), domain.LLMQuery{Question: "anything"})
	assert.Equal(t, domain.CodeRateLimitExceeded, domainCode(t, err))
	assert.Equal(t, 3, model.calls)
}

func TestGateway_Ask_HardFailureNotRetried(t *testing.T) {
	model := &fakeModel{errs: []error{errors.New("connection refused")}}
	g := newGateway(model, testConfig())

	_, err := g.Ask(context.Background(), domain.LLMQuery{Question: "anything"})
	assert.Equal(t, domain.CodeLLMResponseError, domainCode(t, err))
	assert.Equal(t, 1, model.calls, "non-rate-limit failures must not be retried")
}

func TestGateway_Ask_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	model := &fakeModel{errs: []error{context.Canceled}}
	g := newGateway(model, testConfig())

	_, err := g.Ask(ctx, domain.LLMQuery{Question: "anything"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRotationFrom(t *testing.T) {
	rotation := rotationFrom("mixtral-8x7b-32768")
	assert.Equal(t, "mixtral-8x7b-32768", rotation[0])
	assert.Len(t, rotation, len(groqModels))

	// Unknown model is tried first, then the defaults.
	rotation = rotationFrom("custom-model")
	assert.Equal(t, "custom-model", rotation[0])
	assert.Len(t, rotation, len(groqModels)+1)
}
