package renderer

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	absoluteSubmitPattern = regexp.MustCompile(`https?://[^\s<>"'` + "`" + `]+/submit[^\s<>"'` + "`" + `]*`)
	relativeSubmitPattern = regexp.MustCompile(`/submit[^\s<>"'` + "`" + `]*`)
	tagPattern            = regexp.MustCompile(`<[^>]+>`)
	brPattern             = regexp.MustCompile(`(?i)<br\s*/?>`)
	scriptPattern         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
)

// ExtractQuestion picks the question text out of a rendered page:
// decoded base64 payloads win, then the #result element, then the
// visible body text.
func ExtractQuestion(html, bodyText, decoded string) string {
	if q := CleanQuestionText(decoded); len(q) >= 10 {
		return q
	}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		if q := CleanQuestionText(doc.Find("#result").Text()); len(q) >= 10 {
			return q
		}
		for _, selector := range []string{".question", ".quiz-question"} {
			if q := CleanQuestionText(doc.Find(selector).Text()); len(q) >= 10 {
				return q
			}
		}
	}

	return CleanQuestionText(bodyText)
}

// CleanQuestionText strips markup leftovers and collapses whitespace.
func CleanQuestionText(text string) string {
	text = scriptPattern.ReplaceAllString(text, "")
	text = brPattern.ReplaceAllString(text, "\n")
	text = tagPattern.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}

// ExtractSubmitURL looks for the submission endpoint in the question
// text first, then anywhere in the page HTML. Relative /submit paths
// are resolved against the quiz URL.
func ExtractSubmitURL(question, html, baseURL string) string {
	for _, source := range []string{question, html} {
		if source == "" {
			continue
		}
		if match := absoluteSubmitPattern.FindString(source); match != "" {
			return match
		}
	}

	if question != "" {
		if match := relativeSubmitPattern.FindString(question); match != "" {
			return ResolveURL(baseURL, match)
		}
	}

	return ""
}

// ResolveURL joins a possibly relative reference against a base URL.
func ResolveURL(baseURL, ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(refURL).String()
}

// FallbackSubmitURL returns origin + /submit for quiz pages that never
// state their submission endpoint explicitly.
func FallbackSubmitURL(quizURL string) string {
	u, err := url.Parse(quizURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/submit"
}
