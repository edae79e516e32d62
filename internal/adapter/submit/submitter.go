package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"quiz-solver/internal/config"
	"quiz-solver/internal/domain"
	"quiz-solver/internal/logger"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// maxPayloadBytes caps the serialized submission body. Oversized
// answers (typically runaway base64 blobs) are rejected before any
// network call.
const maxPayloadBytes = 1 << 20

// payload is the wire format the quiz platform expects.
type payload struct {
	Email  string      `json:"email"`
	Secret string      `json:"secret"`
	URL    string      `json:"url"`
	Answer interface{} `json:"answer"`
}

// verdict is the platform's response. Unknown fields are ignored so
// schema additions on the platform side stay non-breaking.
type verdict struct {
	Correct bool   `json:"correct"`
	URL     string `json:"url"`
	Reason  string `json:"reason"`
}

// Submitter implements domain.AnswerSubmitter. Transient failures
// (network errors, 5xx) are retried with a constant delay up to the
// configured attempt bound; 4xx responses fail immediately.
type Submitter struct {
	client      *http.Client
	maxAttempts int
	retryDelay  time.Duration
}

func New(cfg *config.Config) *Submitter {
	maxAttempts := cfg.Quiz.SubmitMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Submitter{
		client:      &http.Client{Timeout: cfg.Quiz.FetchTimeout},
		maxAttempts: maxAttempts,
		retryDelay:  cfg.Quiz.SubmitRetryDelay,
	}
}

var _ domain.AnswerSubmitter = (*Submitter)(nil)

// Submit posts the answer and reports the platform's verdict. The
// returned result always carries the number of HTTP attempts made.
func (s *Submitter) Submit(ctx context.Context, sub domain.Submission) (*domain.SubmissionResult, error) {
	l := logger.Get()

	body, err := json.Marshal(payload{
		Email:  sub.Email,
		Secret: sub.Secret,
		URL:    sub.QuizURL,
		Answer: sub.Answer,
	})
	if err != nil {
		return nil, domain.NewInternalError("failed to serialize submission", err)
	}
	if len(body) > maxPayloadBytes {
		return nil, domain.NewValidationError(
			fmt.Sprintf("submission payload too large: %d bytes", len(body)))
	}

	attempts := 0
	var result *domain.SubmissionResult

	operation := func() error {
		attempts++
		v, status, err := s.post(ctx, sub.SubmitURL, body)
		if err != nil {
			l.Warn("Submission attempt failed",
				zap.String("submit_url", sub.SubmitURL),
				zap.Int("attempt", attempts),
				zap.Error(err),
			)
			return err
		}
		if status >= 400 && status < 500 {
			// Client errors will not succeed on retry.
			return backoff.Permanent(domain.NewSubmissionRejectedError(status))
		}
		if status >= 500 {
			l.Warn("Submission endpoint returned server error",
				zap.String("submit_url", sub.SubmitURL),
				zap.Int("status", status),
				zap.Int("attempt", attempts),
			)
			return fmt.Errorf("submit endpoint returned status %d", status)
		}
		result = &domain.SubmissionResult{
			Success:  true,
			Correct:  v.Correct,
			Attempts: attempts,
			NextURL:  v.URL,
			Reason:   v.Reason,
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.retryDelay), uint64(s.maxAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var domainErr *domain.DomainError
		if errors.As(err, &domainErr) && domainErr.Code == domain.CodeSubmissionRejected {
			return nil, domainErr.WithContext("attempts", attempts)
		}
		return nil, domain.NewSubmissionError(attempts, err)
	}

	l.Info("Answer submitted",
		zap.String("submit_url", sub.SubmitURL),
		zap.Bool("correct", result.Correct),
		zap.Int("attempts", result.Attempts),
	)
	return result, nil
}

func (s *Submitter) post(ctx context.Context, url string, body []byte) (*verdict, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, resp.StatusCode, nil
	}

	var v verdict
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		// Some endpoints answer 200 with an empty or non-JSON body;
		// treat that as an accepted submission with no verdict.
		return &verdict{}, resp.StatusCode, nil
	}
	return &v, resp.StatusCode, nil
}
