package llm

import (
	"quiz-solver/internal/domain"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractAnswer(t *testing.T) {
	tests := []struct {
		name     string
		response string
		query    domain.LLMQuery
		want     interface{}
	}{
		{
			name:     "numeric with wrapper text",
			response: "The sum of the column is 1234.",
			query:    domain.LLMQuery{Question: "What is the sum?", TaskHint: domain.TaskNumeric},
			want:     1234,
		},
		{
			name:     "float preferred over int",
			response: "Total: 12.5 across 3 rows",
			query:    domain.LLMQuery{Question: "Calculate the total", TaskHint: domain.TaskNumeric},
			want:     12.5,
		},
		{
			name:     "numeric keyword in question without hint",
			response: "There are 7 entries.",
			query:    domain.LLMQuery{Question: "Count the entries"},
			want:     7,
		},
		{
			name:     "think block stripped",
			response: "<think>step by step reasoning with 999</think>42",
			query:    domain.LLMQuery{Question: "What is the sum?", TaskHint: domain.TaskNumeric},
			want:     42,
		},
		{
			name:     "json answer object",
			response: `Here you go: {"answer": "blue"}`,
			query:    domain.LLMQuery{Question: "Which color?"},
			want:     "blue",
		},
		{
			name:     "hex color lowered",
			response: "The dominant color is #AA33FF.",
			query:    domain.LLMQuery{Question: "dominant color?", TaskHint: domain.TaskHexColor},
			want:     "#aa33ff",
		},
		{
			name:     "uv command",
			response: `Run this: uv http get "https://example.com/x.json" -H "Accept: application/json"`,
			query:    domain.LLMQuery{Question: "command?", TaskHint: domain.TaskCommandUV},
			want:     `uv http get "https://example.com/x.json" -H "Accept: application/json"`,
		},
		{
			name:     "git command pair",
			response: "git add app.py\ngit commit -m \"Fix bug\"",
			query:    domain.LLMQuery{Question: "commands?", TaskHint: domain.TaskCommandGit},
			want:     "git add app.py\ngit commit -m \"Fix bug\"",
		},
		{
			name:     "markdown path",
			response: "The link points at /project2/docs/setup.md as requested.",
			query:    domain.LLMQuery{Question: "which file?", TaskHint: domain.TaskMarkdownLink},
			want:     "/project2/docs/setup.md",
		},
		{
			name:     "boolean yes",
			response: "Yes, the statement holds.",
			query:    domain.LLMQuery{Question: "Is it prime?"},
			want:     true,
		},
		{
			name:     "no inside a word is not a boolean",
			response: "normalize the headers first",
			query:    domain.LLMQuery{Question: "Explain"},
			want:     "normalize the headers first",
		},
		{
			name:     "boolean no as whole word",
			response: "No, it is divisible by three.",
			query:    domain.LLMQuery{Question: "Is it prime?"},
			want:     false,
		},
		{
			name:     "quoted string",
			response: `The passphrase is "open sesame".`,
			query:    domain.LLMQuery{Question: "What is the passphrase?"},
			want:     "open sesame",
		},
		{
			name:     "bare url",
			response: "Visit https://example.com/next for the next step",
			query:    domain.LLMQuery{Question: "Where to go?"},
			want:     "https://example.com/next",
		},
		{
			name:     "first line fallback",
			response: "Paris\nBecause it is the capital of France.",
			query:    domain.LLMQuery{Question: "Capital of France?"},
			want:     "Paris",
		},
		{
			name:     "empty response",
			response: "   ",
			query:    domain.LLMQuery{Question: "anything"},
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractAnswer(tt.response, tt.query))
		})
	}
}

func TestExtractAnswer_JSONArray(t *testing.T) {
	response := `Normalized data: [{"id": 1, "name": "a"}, {"id": 2, "name": "b"}]`
	answer := ExtractAnswer(response, domain.LLMQuery{Question: "normalize", TaskHint: domain.TaskJSONArray})

	arr, ok := answer.([]interface{})
	assert.True(t, ok)
	assert.Len(t, arr, 2)
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(domain.LLMQuery{
		Question:    "What is the sum of the value column?",
		DataContext: "id,value\n1,10\n2,20",
		TaskHint:    domain.TaskNumeric,
	})

	assert.Contains(t, prompt, "Data:\nid,value")
	assert.Contains(t, prompt, "Question: What is the sum of the value column?")
	assert.Contains(t, prompt, "Provide only the numeric answer")
	assert.True(t, strings.HasSuffix(prompt, "Answer:"))
}

func TestBuildPrompt_TruncatesDataContext(t *testing.T) {
	prompt := BuildPrompt(domain.LLMQuery{
		Question:    "Summarize",
		DataContext: strings.Repeat("x", maxDataContextLen+500),
	})

	assert.Contains(t, prompt, "... (truncated)")
	assert.Less(t, len(prompt), maxDataContextLen+500)
}

func TestBuildPrompt_NoDataContext(t *testing.T) {
	prompt := BuildPrompt(domain.LLMQuery{Question: "Capital of France?"})
	assert.NotContains(t, prompt, "Data:")
}
