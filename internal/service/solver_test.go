package service

import (
	"context"
	"errors"
	"fmt"
	"quiz-solver/internal/adapter/extractor"
	"quiz-solver/internal/config"
	"quiz-solver/internal/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRenderer struct {
	pages map[string]*domain.RenderedPage
	block bool
	calls int
}

func (r *stubRenderer) Render(ctx context.Context, url string) (*domain.RenderedPage, error) {
	r.calls++
	if r.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	page, ok := r.pages[url]
	if !ok {
		return nil, domain.NewNavigationError(url, errors.New("unknown page"))
	}
	return page, nil
}

type panickingRenderer struct{}

func (panickingRenderer) Render(ctx context.Context, url string) (*domain.RenderedPage, error) {
	panic("page content blew up the parser")
}

type stubFetcher struct {
	resources map[string]*domain.Resource
	calls     []string
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) (*domain.Resource, error) {
	f.calls = append(f.calls, url)
	res, ok := f.resources[url]
	if !ok {
		return nil, domain.NewNavigationError(url, errors.New("unknown resource"))
	}
	return res, nil
}

type stubProvider struct {
	answers []interface{}
	queries []domain.LLMQuery
}

func (p *stubProvider) Ask(ctx context.Context, query domain.LLMQuery) (*domain.LLMAnswer, error) {
	p.queries = append(p.queries, query)
	i := len(p.queries) - 1
	if i >= len(p.answers) {
		i = len(p.answers) - 1
	}
	if i < 0 {
		return nil, domain.NewLLMResponseError(errors.New("no scripted answer"))
	}
	return &domain.LLMAnswer{Answer: p.answers[i], Raw: fmt.Sprint(p.answers[i]), Attempts: 1}, nil
}

type stubSubmitter struct {
	results     []*domain.SubmissionResult
	submissions []domain.Submission
}

func (s *stubSubmitter) Submit(ctx context.Context, sub domain.Submission) (*domain.SubmissionResult, error) {
	s.submissions = append(s.submissions, sub)
	i := len(s.submissions) - 1
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	scripted := s.results[i]
	copied := *scripted
	return &copied, nil
}

func solverConfig() *config.Config {
	return &config.Config{
		Quiz: config.Quiz{
			Timeout:           5 * time.Second,
			MaxSolveAttempts:  3,
			SubmitMaxAttempts: 3,
			FetchTimeout:      time.Second,
		},
		Email:  "solver@example.com",
		Secret: "s3cret",
	}
}

func quizRequest(url string) domain.QuizRequest {
	return domain.QuizRequest{
		Email:  "solver@example.com",
		Secret: "s3cret",
		URL:    url,
	}
}

func TestSolver_Solve_DeadlineYieldsQuizTimeout(t *testing.T) {
	cfg := solverConfig()
	cfg.Quiz.Timeout = 50 * time.Millisecond

	solver := NewSolver(cfg,
		&stubFetcher{},
		extractor.New(),
		&stubRenderer{block: true},
		&stubProvider{},
		&stubSubmitter{},
	)

	_, err := solver.Solve(context.Background(), quizRequest("https://quiz.example.com/q1"))
	require.Error(t, err)

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.CodeQuizTimeout, domainErr.Code)
}

func TestSolver_Solve_PanicBecomesInternalError(t *testing.T) {
	solver := NewSolver(solverConfig(),
		&stubFetcher{},
		extractor.New(),
		panickingRenderer{},
		&stubProvider{},
		&stubSubmitter{results: []*domain.SubmissionResult{{}}},
	)

	_, err := solver.Solve(context.Background(), quizRequest("https://quiz.example.com/q1"))
	require.Error(t, err)

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.CodeInternal, domainErr.Code)
	assert.ErrorContains(t, err, "panic")
}

func TestSolver_Solve_CSVSumEndToEnd(t *testing.T) {
	quizURL := "https://quiz.example.com/q1"

	rendererStub := &stubRenderer{pages: map[string]*domain.RenderedPage{
		quizURL: {
			URL:      quizURL,
			Question: "Download the CSV at /data.csv and compute the sum of the value column.",
		},
	}}
	fetcherStub := &stubFetcher{resources: map[string]*domain.Resource{
		"https://quiz.example.com/data.csv": {
			URL:         "https://quiz.example.com/data.csv",
			ContentType: "text/csv",
			Body:        []byte("id,value\n1,10\n2,20\n"),
		},
	}}
	providerStub := &stubProvider{}
	submitterStub := &stubSubmitter{results: []*domain.SubmissionResult{
		{Success: true, Correct: true, Attempts: 1},
	}}

	solver := NewSolver(solverConfig(), fetcherStub, extractor.New(), rendererStub, providerStub, submitterStub)

	result, err := solver.Solve(context.Background(), quizRequest(quizURL))
	require.NoError(t, err)

	assert.True(t, result.Correct)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 30, result.Answer, "sum must be computed locally from the CSV")
	assert.Empty(t, providerStub.queries, "locally computable questions must not reach the LLM")

	require.Len(t, submitterStub.submissions, 1)
	sub := submitterStub.submissions[0]
	assert.Equal(t, "https://quiz.example.com/submit", sub.SubmitURL, "missing submit URL falls back to origin /submit")
	assert.Equal(t, quizURL, sub.QuizURL)
	assert.Equal(t, "solver@example.com", sub.Email)
	assert.Equal(t, 30, sub.Answer)
}

func TestSolver_Solve_ReAsksWithFeedback(t *testing.T) {
	quizURL := "https://quiz.example.com/q1"

	rendererStub := &stubRenderer{pages: map[string]*domain.RenderedPage{
		quizURL: {
			URL:       quizURL,
			Question:  "What is the capital of France? Answer with the city name.",
			SubmitURL: "https://quiz.example.com/submit",
		},
	}}
	providerStub := &stubProvider{answers: []interface{}{"Lyon", "Paris"}}
	submitterStub := &stubSubmitter{results: []*domain.SubmissionResult{
		{Success: true, Correct: false, Attempts: 1, Reason: "not the capital"},
		{Success: true, Correct: true, Attempts: 1},
	}}

	solver := NewSolver(solverConfig(), &stubFetcher{}, extractor.New(), rendererStub, providerStub, submitterStub)

	result, err := solver.Solve(context.Background(), quizRequest(quizURL))
	require.NoError(t, err)

	assert.True(t, result.Correct)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, "Paris", result.Answer)

	require.Len(t, providerStub.queries, 2)
	assert.Contains(t, providerStub.queries[1].Question, "Lyon")
	assert.Contains(t, providerStub.queries[1].Question, "not the capital")
}

func TestSolver_Solve_AttemptCapStopsReAsking(t *testing.T) {
	cfg := solverConfig()
	cfg.Quiz.MaxSolveAttempts = 2
	quizURL := "https://quiz.example.com/q1"

	rendererStub := &stubRenderer{pages: map[string]*domain.RenderedPage{
		quizURL: {
			URL:       quizURL,
			Question:  "What is the capital of France? Answer with the city name.",
			SubmitURL: "https://quiz.example.com/submit",
		},
	}}
	providerStub := &stubProvider{answers: []interface{}{"Lyon"}}
	submitterStub := &stubSubmitter{results: []*domain.SubmissionResult{
		{Success: true, Correct: false, Attempts: 1, Reason: "wrong"},
	}}

	solver := NewSolver(cfg, &stubFetcher{}, extractor.New(), rendererStub, providerStub, submitterStub)

	result, err := solver.Solve(context.Background(), quizRequest(quizURL))
	require.NoError(t, err)

	assert.False(t, result.Correct)
	assert.Equal(t, 2, result.Attempts)
	assert.Len(t, submitterStub.submissions, 2)
}

func TestSolver_Solve_FollowsQuestionChain(t *testing.T) {
	first := "https://quiz.example.com/q1"
	second := "https://quiz.example.com/q2"

	rendererStub := &stubRenderer{pages: map[string]*domain.RenderedPage{
		first: {
			URL:       first,
			Question:  "What is the capital of France? Answer with the city name.",
			SubmitURL: "https://quiz.example.com/submit",
		},
		second: {
			URL:       second,
			Question:  "What is the capital of Italy? Answer with the city name.",
			SubmitURL: "https://quiz.example.com/submit",
		},
	}}
	providerStub := &stubProvider{answers: []interface{}{"Paris", "Rome"}}
	submitterStub := &stubSubmitter{results: []*domain.SubmissionResult{
		{Success: true, Correct: true, Attempts: 1, NextURL: second},
		{Success: true, Correct: true, Attempts: 1},
	}}

	solver := NewSolver(solverConfig(), &stubFetcher{}, extractor.New(), rendererStub, providerStub, submitterStub)

	result, err := solver.Solve(context.Background(), quizRequest(first))
	require.NoError(t, err)

	assert.True(t, result.Correct)
	assert.Equal(t, 2, result.Attempts, "attempts accumulate across the chain")
	assert.Equal(t, "Rome", result.Answer)

	require.Len(t, submitterStub.submissions, 2)
	assert.Equal(t, first, submitterStub.submissions[0].QuizURL)
	assert.Equal(t, second, submitterStub.submissions[1].QuizURL)
}

func TestSolver_Solve_FileURLSkipsRenderer(t *testing.T) {
	fileURL := "https://quiz.example.com/data.csv"

	rendererStub := &stubRenderer{}
	fetcherStub := &stubFetcher{resources: map[string]*domain.Resource{
		fileURL: {
			URL:         fileURL,
			ContentType: "text/csv",
			Body:        []byte("city,population\nOslo,717710\nBergen,291940\n"),
		},
	}}
	providerStub := &stubProvider{answers: []interface{}{"Oslo"}}
	submitterStub := &stubSubmitter{results: []*domain.SubmissionResult{
		{Success: true, Correct: true, Attempts: 1},
	}}

	solver := NewSolver(solverConfig(), fetcherStub, extractor.New(), rendererStub, providerStub, submitterStub)

	result, err := solver.Solve(context.Background(), quizRequest(fileURL))
	require.NoError(t, err)

	assert.True(t, result.Correct)
	assert.Zero(t, rendererStub.calls, "file URLs must not start a browser")
	require.Len(t, providerStub.queries, 1)
	assert.Contains(t, providerStub.queries[0].Question, "Oslo")
}

func TestSolver_Solve_EmptyQuestionFails(t *testing.T) {
	quizURL := "https://quiz.example.com/q1"
	rendererStub := &stubRenderer{pages: map[string]*domain.RenderedPage{
		quizURL: {URL: quizURL, Question: "  "},
	}}

	solver := NewSolver(solverConfig(), &stubFetcher{}, extractor.New(), rendererStub, &stubProvider{}, &stubSubmitter{results: []*domain.SubmissionResult{{}}})

	_, err := solver.Solve(context.Background(), quizRequest(quizURL))
	require.Error(t, err)

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.CodeParseError, domainErr.Code)
}

func TestIsFileURL(t *testing.T) {
	assert.True(t, isFileURL("https://x.example.com/a/data.csv"))
	assert.True(t, isFileURL("https://x.example.com/report.PDF"))
	assert.True(t, isFileURL("https://x.example.com/img.png?size=2"))
	assert.False(t, isFileURL("https://x.example.com/quiz/q1"))
	assert.False(t, isFileURL("https://x.example.com/"))
}
