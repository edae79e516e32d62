package extractor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"quiz-solver/internal/domain"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
)

// parsePDF extracts the plain text of all pages.
func parsePDF(body []byte) (*domain.ExtractedContent, error) {
	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, domain.NewParseError("PDF", err)
	}

	textReader, err := reader.GetPlainText()
	if err != nil {
		return nil, domain.NewParseError("PDF", err)
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, textReader); err != nil {
		return nil, domain.NewParseError("PDF", err)
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil, domain.NewParseError("PDF", errors.New("no extractable text"))
	}

	return &domain.ExtractedContent{
		Kind: domain.ContentDocument,
		Text: text,
	}, nil
}

// parseJSON decodes the payload and flattens a top-level object into
// the field mapping; the indented document is kept as prompt text.
func parseJSON(body []byte) (*domain.ExtractedContent, error) {
	var value interface{}
	if err := json.Unmarshal(body, &value); err != nil {
		return nil, domain.NewParseError("JSON", err)
	}

	pretty, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, domain.NewParseError("JSON", err)
	}

	content := &domain.ExtractedContent{
		Kind: domain.ContentDocument,
		Text: string(pretty),
	}

	if obj, ok := value.(map[string]interface{}); ok {
		fields := make(map[string]string, len(obj))
		for k, v := range obj {
			switch tv := v.(type) {
			case string:
				fields[k] = tv
			case float64, bool, nil:
				fields[k] = fmt.Sprint(tv)
			default:
				// Nested values stay in Text only.
			}
		}
		if len(fields) > 0 {
			content.Fields = fields
		}
	}

	return content, nil
}

// parseHTML returns the visible text of the document with scripts and
// styles removed.
func parseHTML(body []byte) (*domain.ExtractedContent, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewParseError("HTML", err)
	}

	doc.Find("script, style, noscript").Remove()

	text := doc.Find("body").Text()
	if strings.TrimSpace(text) == "" {
		text = doc.Text()
	}
	text = collapseWhitespace(text)
	if text == "" {
		return nil, domain.NewParseError("HTML", errors.New("no visible text"))
	}

	content := &domain.ExtractedContent{
		Kind: domain.ContentDocument,
		Text: text,
	}

	// Quiz pages commonly put the question into #result.
	if result := collapseWhitespace(doc.Find("#result").Text()); result != "" {
		content.Fields = map[string]string{"result": result}
	}

	return content, nil
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
