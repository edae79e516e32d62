package llm

import (
	"encoding/json"
	"quiz-solver/internal/domain"
	"regexp"
	"strconv"
	"strings"
)

var (
	thinkPattern    = regexp.MustCompile(`(?s)<think>.*?</think>`)
	uvCmdPattern    = regexp.MustCompile(`uv http get[^\n]+`)
	gitCmdPattern   = regexp.MustCompile(`git (?:add|commit)[^\n]+`)
	mdPathPattern   = regexp.MustCompile(`/[\w\-/]+\.md`)
	hexColorPattern = regexp.MustCompile(`#[0-9a-fA-F]{6}`)
	jsonArrPattern  = regexp.MustCompile(`(?s)\[.*\]`)
	answerObjFinder = regexp.MustCompile(`(?s)\{.*?"answer".*?\}`)
	floatPattern    = regexp.MustCompile(`-?\d+\.\d+`)
	intPattern      = regexp.MustCompile(`-?\d+`)
	dataURIPattern  = regexp.MustCompile(`data:[^;]+;base64,[A-Za-z0-9+/=]+`)
	quotedPattern   = regexp.MustCompile(`["']([^"']+)["']`)
	urlPattern      = regexp.MustCompile(`https?://[^\s<>"']+`)
)

var numericKeywords = []string{"sum", "count", "number", "total", "calculate", "value", "amount", "quantity"}

// ExtractAnswer parses the final answer value out of free-text
// provider output, stripping explanatory wrapper text.
func ExtractAnswer(responseText string, query domain.LLMQuery) interface{} {
	text := strings.TrimSpace(thinkPattern.ReplaceAllString(responseText, ""))
	if text == "" {
		return nil
	}
	questionLower := strings.ToLower(query.Question)

	switch query.TaskHint {
	case domain.TaskCommandUV:
		if match := uvCmdPattern.FindString(text); match != "" {
			return strings.TrimSpace(match)
		}
	case domain.TaskCommandGit:
		if commands := gitCmdPattern.FindAllString(text, 2); len(commands) == 2 {
			return strings.Join(commands, "\n")
		}
	case domain.TaskMarkdownLink:
		if match := mdPathPattern.FindString(text); match != "" {
			return match
		}
	case domain.TaskHexColor:
		if match := hexColorPattern.FindString(text); match != "" {
			return strings.ToLower(match)
		}
	case domain.TaskJSONArray:
		if match := jsonArrPattern.FindString(text); match != "" {
			var arr []interface{}
			if err := json.Unmarshal([]byte(match), &arr); err == nil {
				return arr
			}
		}
	}

	// JSON object with an "answer" field.
	if match := answerObjFinder.FindString(text); match != "" {
		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(match), &parsed); err == nil {
			if answer, ok := parsed["answer"]; ok && answer != nil {
				return answer
			}
		}
	}

	// Numbers when the question asks for one.
	if query.TaskHint == domain.TaskNumeric || containsAny(questionLower, numericKeywords) {
		if match := floatPattern.FindString(text); match != "" {
			if f, err := strconv.ParseFloat(match, 64); err == nil {
				return f
			}
		}
		if match := intPattern.FindString(text); match != "" {
			if n, err := strconv.Atoi(match); err == nil {
				return n
			}
		}
	}

	// Booleans.
	if b, ok := extractBool(text); ok {
		return b
	}

	// Base64 data URI.
	if match := dataURIPattern.FindString(text); match != "" {
		return match
	}

	// Quoted string.
	if match := quotedPattern.FindStringSubmatch(text); len(match) > 1 {
		return match[1]
	}

	// Bare URL.
	if match := urlPattern.FindString(text); match != "" {
		return match
	}

	// First line fallback.
	if idx := strings.IndexByte(text, '\n'); idx > 0 {
		if first := strings.TrimSpace(text[:idx]); first != "" {
			return first
		}
	}

	return text
}

// extractBool picks the first boolean-ish token in the response.
func extractBool(text string) (bool, bool) {
	lower := strings.ToLower(text)
	positions := map[string]int{
		"true":  strings.Index(lower, "true"),
		"false": strings.Index(lower, "false"),
		"yes":   indexWord(lower, "yes"),
		"no":    indexWord(lower, "no"),
	}

	best := ""
	bestPos := -1
	for token, pos := range positions {
		if pos == -1 {
			continue
		}
		if bestPos == -1 || pos < bestPos {
			best = token
			bestPos = pos
		}
	}
	switch best {
	case "true", "yes":
		return true, true
	case "false", "no":
		return false, true
	}
	return false, false
}

// indexWord finds a whole-word occurrence; plain Index would match the
// "no" in "normalize".
func indexWord(s, word string) int {
	re := regexp.MustCompile(`\b` + word + `\b`)
	loc := re.FindStringIndex(s)
	if loc == nil {
		return -1
	}
	return loc[0]
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
