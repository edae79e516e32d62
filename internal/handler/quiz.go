package handler

import (
	"context"
	"errors"
	"quiz-solver/internal/config"
	"quiz-solver/internal/domain"
	"quiz-solver/internal/dto"
	"quiz-solver/internal/logger"
	"quiz-solver/internal/validation"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// QuizSolver is the service the handler delegates to.
type QuizSolver interface {
	Solve(ctx context.Context, req domain.QuizRequest) (*domain.SubmissionResult, error)
}

// QuizHandler handles the quiz-solving HTTP surface.
type QuizHandler struct {
	solver    QuizSolver
	validator *validation.Validator
	cfg       *config.Config
}

func NewQuizHandler(solver QuizSolver, cfg *config.Config) *QuizHandler {
	return &QuizHandler{
		solver:    solver,
		validator: validation.NewValidator(),
		cfg:       cfg,
	}
}

// solveGrace pads the handler's own deadline past the solver's budget
// so the solver's richer timeout mapping normally wins. The handler
// ceiling only fires when the solver fails to honor its budget.
const solveGrace = time.Second

// SolveQuiz handles POST /quiz. Validation and credential failures are
// rejected before any browser or LLM work starts; everything after
// that runs under the solver's hard deadline, with the handler holding
// its own slightly longer deadline as a backstop.
func (h *QuizHandler) SolveQuiz(c *fiber.Ctx) error {
	var req dto.SolveQuizRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewValidationError("request body is not valid JSON")
	}

	if errs := h.validator.ValidateSolveQuizRequest(&req); len(errs) > 0 {
		return errs
	}

	if req.Secret != h.cfg.Secret || req.Email != h.cfg.Email {
		return domain.NewUnauthorizedError("email or secret does not match the configured credentials")
	}

	logger.Get().Info("Quiz request accepted", zap.String("url", req.URL))

	ctx, cancel := h.solveContext(c.Context())
	defer cancel()

	result, err := h.solver.Solve(ctx, domain.QuizRequest{
		Email:  req.Email,
		Secret: req.Secret,
		URL:    req.URL,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.NewQuizTimeoutError()
		}
		return err
	}

	return c.JSON(dto.SolveQuizResponse{
		Answer:    result.Answer,
		Submitted: result.Success,
		Correct:   result.Correct,
		Attempts:  result.Attempts,
	})
}

// solveContext bounds a solve with the handler's own hard deadline,
// independent of the solver's internal accounting.
func (h *QuizHandler) solveContext(parent context.Context) (context.Context, context.CancelFunc) {
	if h.cfg.Quiz.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, h.cfg.Quiz.Timeout+solveGrace)
}

// Health handles GET /health.
func (h *QuizHandler) Health(c *fiber.Ctx) error {
	return c.JSON(dto.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
