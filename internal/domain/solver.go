package domain

import (
	"context"
)

// QuizRequest identifies one quiz-solving invocation. It lives only for
// the duration of the request and is never persisted.
type QuizRequest struct {
	Email  string
	Secret string
	URL    string
}

// ContentKind distinguishes the normalized shapes an extractor can
// produce.
type ContentKind string

const (
	ContentTabular  ContentKind = "tabular"
	ContentDocument ContentKind = "document"
	ContentImage    ContentKind = "image"
	ContentPage     ContentKind = "page"
)

// ExtractedContent is the normalized quiz material handed to the
// solver: header/row tables for structured sources, plain text for
// documents and pages, raw bytes for images.
type ExtractedContent struct {
	Kind    ContentKind
	Text    string
	Headers []string
	Rows    [][]string
	Fields  map[string]string
	Image   []byte
}

// Empty reports whether extraction produced nothing usable.
func (c *ExtractedContent) Empty() bool {
	if c == nil {
		return true
	}
	return c.Text == "" && len(c.Rows) == 0 && len(c.Fields) == 0 && len(c.Image) == 0
}

// Resource is a fetched remote payload plus what we know about its
// type.
type Resource struct {
	URL         string
	ContentType string
	Body        []byte
}

// RenderedPage is the outcome of loading a URL in a headless browser.
type RenderedPage struct {
	URL       string
	HTML      string
	Question  string
	SubmitURL string
}

// Task hints describe the expected answer shape, inferred from the
// question and the extracted content.
const (
	TaskNumeric       = "numeric"
	TaskCommandUV     = "command_uv"
	TaskCommandGit    = "command_git"
	TaskMarkdownLink  = "markdown_link"
	TaskHexColor      = "hex_color"
	TaskJSONArray     = "json_array"
	TaskTranscription = "transcription"
	TaskDirect        = "direct"
)

// LLMQuery is one prompt sent to a provider.
type LLMQuery struct {
	Question    string
	DataContext string
	TaskHint    string
}

// LLMAnswer is the provider's raw response plus the cleaned answer
// value parsed out of it.
type LLMAnswer struct {
	Answer   interface{}
	Raw      string
	Attempts int
}

// Submission is the payload posted back to the quiz platform.
type Submission struct {
	SubmitURL string
	Email     string
	Secret    string
	QuizURL   string
	Answer    interface{}
}

// SubmissionResult is the terminal artifact of a request. Correct and
// NextURL mirror the quiz platform's response schema; Attempts counts
// HTTP attempts made by the submitter.
type SubmissionResult struct {
	Success   bool
	Correct   bool
	Attempts  int
	NextURL   string
	Reason    string
	Answer    interface{}
	LastError error
}

// ContentExtractor turns a fetched resource into normalized content.
type ContentExtractor interface {
	Extract(ctx context.Context, res *Resource) (*ExtractedContent, error)
}

// PageRenderer loads a URL in a headless browser and returns the
// rendered page. Implementations must release the browser session on
// every exit path.
type PageRenderer interface {
	Render(ctx context.Context, url string) (*RenderedPage, error)
}

// AnswerProvider asks an LLM to answer a quiz question.
type AnswerProvider interface {
	Ask(ctx context.Context, query LLMQuery) (*LLMAnswer, error)
}

// AnswerSubmitter posts an answer to the quiz platform and retries
// transient failures up to its configured bound.
type AnswerSubmitter interface {
	Submit(ctx context.Context, sub Submission) (*SubmissionResult, error)
}
