package llm

import (
	"quiz-solver/internal/domain"
	"strings"
)

const maxDataContextLen = 3000

// BuildPrompt assembles the provider prompt: preamble, truncated data
// context, question, and an answer-shape instruction keyed to the task
// hint.
func BuildPrompt(query domain.LLMQuery) string {
	var parts []string

	parts = append(parts, "You are a quiz-solving assistant. Answer concisely and accurately. Provide only the answer without explanation unless specifically asked.")

	if query.DataContext != "" {
		data := query.DataContext
		if len(data) > maxDataContextLen {
			data = data[:maxDataContextLen] + "... (truncated)"
		}
		parts = append(parts, "Data:\n"+data)
	}

	parts = append(parts, "Question: "+query.Question)
	parts = append(parts, answerInstruction(query.TaskHint))
	parts = append(parts, "Answer:")

	return strings.Join(parts, "\n\n")
}

func answerInstruction(taskHint string) string {
	switch taskHint {
	case domain.TaskNumeric:
		return "Provide only the numeric answer (no explanation)."
	case domain.TaskCommandUV:
		return "Provide the COMPLETE command string exactly as it should be run, including the full URL with email and all headers."
	case domain.TaskCommandGit:
		return "Provide BOTH git commands separated by a newline character."
	case domain.TaskMarkdownLink:
		return "Provide only the exact file path."
	case domain.TaskHexColor:
		return "Provide the color in hex format: #rrggbb"
	case domain.TaskJSONArray:
		return "Provide a JSON array of objects with normalized data."
	case domain.TaskTranscription:
		return "Provide the exact transcription of the spoken phrase including any digits."
	default:
		return "Provide a clear, concise answer. If the answer is a number, provide just the number. If it's text, provide the text. If it's a boolean, provide true or false."
	}
}
