package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"quiz-solver/internal/adapter/renderer"
	"quiz-solver/internal/config"
	"quiz-solver/internal/domain"
	"quiz-solver/internal/logger"
	"quiz-solver/internal/util"
	"runtime/debug"
	"strings"

	"go.uber.org/zap"
)

// minQuestionLen guards against pages where rendering succeeded but no
// question text could be extracted.
const minQuestionLen = 10

// Solver runs the whole pipeline for one quiz request: fetch or render
// the content, answer the question directly or through an LLM, and
// submit the answer. Question chains returned by the platform are
// followed until completion or the overall deadline.
type Solver struct {
	cfg        *config.Config
	fetcher    resourceFetcher
	extractor  domain.ContentExtractor
	renderer   domain.PageRenderer
	provider   domain.AnswerProvider
	submitter  domain.AnswerSubmitter
	heuristics *Heuristics
}

func NewSolver(
	cfg *config.Config,
	fetcher resourceFetcher,
	contentExtractor domain.ContentExtractor,
	pageRenderer domain.PageRenderer,
	provider domain.AnswerProvider,
	submitter domain.AnswerSubmitter,
) *Solver {
	return &Solver{
		cfg:        cfg,
		fetcher:    fetcher,
		extractor:  contentExtractor,
		renderer:   pageRenderer,
		provider:   provider,
		submitter:  submitter,
		heuristics: NewHeuristics(fetcher, contentExtractor, cfg.Email),
	}
}

// Solve answers the quiz at req.URL under the configured hard deadline.
// Deadline expiry yields a QUIZ_TIMEOUT error; results arriving after
// expiry are discarded.
func (s *Solver) Solve(ctx context.Context, req domain.QuizRequest) (*domain.SubmissionResult, error) {
	solveCtx, cancel := context.WithTimeout(ctx, s.cfg.Quiz.Timeout)
	defer cancel()

	type outcome struct {
		result *domain.SubmissionResult
		err    error
	}
	// Buffered so a late-finishing pipeline never blocks.
	done := make(chan outcome, 1)

	go func() {
		// The fiber recover middleware only covers the handler's
		// goroutine; a panic here would kill the process.
		defer func() {
			if r := recover(); r != nil {
				logger.Get().Error("Solve pipeline panicked",
					zap.Any("panic", r),
					zap.String("quiz_url", req.URL),
					zap.ByteString("stack", debug.Stack()),
				)
				done <- outcome{nil, domain.NewInternalError(
					"quiz pipeline failed unexpectedly",
					fmt.Errorf("panic: %v", r),
				)}
			}
		}()
		result, err := s.run(solveCtx, req)
		done <- outcome{result, err}
	}()

	select {
	case o := <-done:
		if o.err != nil && errors.Is(o.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, domain.NewQuizTimeoutError()
		}
		return o.result, o.err
	case <-solveCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.NewQuizTimeoutError()
	}
}

// run follows the question chain starting at req.URL.
func (s *Solver) run(ctx context.Context, req domain.QuizRequest) (*domain.SubmissionResult, error) {
	requestID := util.NewULID()
	l := logger.Get().With(
		zap.String("request_id", requestID),
		zap.String("quiz_url", req.URL),
	)

	currentURL := req.URL
	totalAttempts := 0
	seen := map[string]bool{}

	for {
		if seen[currentURL] {
			return nil, domain.NewNavigationError(currentURL,
				fmt.Errorf("question chain loops back to an already solved URL"))
		}
		seen[currentURL] = true

		l.Info("Solving question", zap.String("url", currentURL))

		result, err := s.solveQuestion(ctx, req, currentURL, l)
		if err != nil {
			return nil, err
		}
		totalAttempts += result.Attempts
		result.Attempts = totalAttempts

		// Correct answers chain to the next question; the platform may
		// also redirect a failed question to a fresh URL.
		if result.NextURL != "" && result.NextURL != currentURL {
			l.Info("Following question chain",
				zap.Bool("correct", result.Correct),
				zap.String("next_url", result.NextURL),
			)
			currentURL = result.NextURL
			continue
		}
		return result, nil
	}
}

// solveQuestion answers a single question and submits the answer,
// re-asking the LLM with the platform's feedback on wrong answers up
// to the configured attempt cap.
func (s *Solver) solveQuestion(ctx context.Context, req domain.QuizRequest, quizURL string, l *zap.Logger) (*domain.SubmissionResult, error) {
	question, submitURL, content, err := s.gather(ctx, quizURL)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(question)) < minQuestionLen {
		return nil, domain.NewParseError("page", fmt.Errorf("no question text found at %s", quizURL))
	}
	if submitURL == "" {
		submitURL = renderer.FallbackSubmitURL(quizURL)
	}

	info := inferTask(question)
	l.Debug("Task inferred",
		zap.String("hint", info.Hint),
		zap.String("op", string(info.Op)),
	)

	answer, err := s.answer(ctx, question, quizURL, info, content, "")
	if err != nil {
		return nil, err
	}

	maxAttempts := s.cfg.Quiz.MaxSolveAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var last *domain.SubmissionResult
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := s.submitter.Submit(ctx, domain.Submission{
			SubmitURL: submitURL,
			Email:     req.Email,
			Secret:    req.Secret,
			QuizURL:   quizURL,
			Answer:    answer,
		})
		if err != nil {
			return nil, err
		}
		result.Answer = answer
		if last != nil {
			result.Attempts += last.Attempts
		}
		last = result

		if result.Correct {
			return result, nil
		}
		// A redirect on a wrong answer means the platform moved on;
		// the chain loop picks the new URL up.
		if result.NextURL != "" && result.NextURL != quizURL {
			return result, nil
		}
		if attempt == maxAttempts {
			break
		}

		l.Info("Wrong answer, re-asking with feedback",
			zap.Int("attempt", attempt),
			zap.String("reason", result.Reason),
		)
		answer, err = s.answer(ctx, question, quizURL, info, content, feedbackNote(answer, result.Reason))
		if err != nil {
			return nil, err
		}
	}

	return last, nil
}

// answer resolves the answer for one question: direct heuristics
// first, then locally computed aggregates, then the LLM. feedback is
// non-empty on re-asks after a rejected answer.
func (s *Solver) answer(ctx context.Context, question, quizURL string, info taskInfo, content *domain.ExtractedContent, feedback string) (interface{}, error) {
	// Direct handlers are deterministic; re-asking them with feedback
	// would reproduce the rejected answer.
	if feedback == "" {
		if answer, ok := s.heuristics.TryDirect(ctx, question, quizURL, info); ok {
			return answer, nil
		}
	}

	if content == nil && info.DataPath != "" {
		fetched, err := s.fetchContent(ctx, quizURL, info.DataPath)
		if err == nil {
			content = fetched
		} else {
			logger.Get().Warn("Failed to fetch referenced data, asking LLM without it",
				zap.String("path", info.DataPath),
				zap.Error(err),
			)
		}
	}

	if feedback == "" && content != nil {
		if computed, ok := ComputeTabular(info.Op, content); ok {
			return computed, nil
		}
	}

	query := domain.LLMQuery{
		Question: question,
		TaskHint: info.Hint,
	}
	if content != nil {
		query.DataContext = content.Text
	}
	if feedback != "" {
		query.Question = question + "\n\n" + feedback
	}

	llmAnswer, err := s.provider.Ask(ctx, query)
	if err != nil {
		return nil, err
	}
	if llmAnswer.Answer == nil {
		return nil, domain.NewLLMResponseError(fmt.Errorf("provider returned no usable answer"))
	}
	return llmAnswer.Answer, nil
}

// gather loads the quiz material: direct file URLs are fetched and
// parsed, everything else goes through the headless browser.
func (s *Solver) gather(ctx context.Context, quizURL string) (question, submitURL string, content *domain.ExtractedContent, err error) {
	if isFileURL(quizURL) {
		res, err := s.fetcher.Fetch(ctx, quizURL)
		if err != nil {
			return "", "", nil, err
		}
		extracted, err := s.extractor.Extract(ctx, res)
		if err != nil {
			return "", "", nil, err
		}
		return extracted.Text, "", extracted, nil
	}

	page, err := s.renderer.Render(ctx, quizURL)
	if err != nil {
		return "", "", nil, err
	}
	return page.Question, page.SubmitURL, nil, nil
}

func (s *Solver) fetchContent(ctx context.Context, quizURL, ref string) (*domain.ExtractedContent, error) {
	resolved, err := resolveRef(quizURL, ref)
	if err != nil {
		return nil, err
	}
	res, err := s.fetcher.Fetch(ctx, resolved)
	if err != nil {
		return nil, err
	}
	return s.extractor.Extract(ctx, res)
}

func feedbackNote(rejected interface{}, reason string) string {
	note := fmt.Sprintf("Your previous answer %v was rejected.", rejected)
	if reason != "" {
		note += " Feedback: " + reason
	}
	note += " Provide a corrected answer."
	return note
}

var fileExtensions = map[string]bool{
	".csv":  true,
	".xlsx": true,
	".xls":  true,
	".pdf":  true,
	".json": true,
	".txt":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// isFileURL reports whether the URL points at a raw data file rather
// than a quiz page that needs rendering.
func isFileURL(rawURL string) bool {
	trimmed := rawURL
	if idx := strings.IndexAny(trimmed, "?#"); idx != -1 {
		trimmed = trimmed[:idx]
	}
	return fileExtensions[strings.ToLower(path.Ext(trimmed))]
}
