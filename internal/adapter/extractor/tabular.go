package extractor

import (
	"bytes"
	"encoding/csv"
	"errors"
	"quiz-solver/internal/domain"
	"strings"

	"github.com/xuri/excelize/v2"
)

// parseCSV reads the whole file into header + rows. A first row made
// entirely of numbers is treated as data, not a header (mirrors files
// the quiz platform serves without headers).
func parseCSV(body []byte) (*domain.ExtractedContent, error) {
	reader := csv.NewReader(bytes.NewReader(body))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, domain.NewParseError("CSV", err)
	}
	if len(records) == 0 {
		return nil, domain.NewParseError("CSV", errors.New("empty file"))
	}

	return tabularContent(records), nil
}

// parseExcel reads the first sheet of an xlsx workbook.
func parseExcel(body []byte) (*domain.ExtractedContent, error) {
	f, err := excelize.OpenReader(bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewParseError("Excel", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, domain.NewParseError("Excel", errors.New("workbook has no sheets"))
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, domain.NewParseError("Excel", err)
	}
	if len(rows) == 0 {
		return nil, domain.NewParseError("Excel", errors.New("first sheet is empty"))
	}

	return tabularContent(rows), nil
}

// tabularContent builds the normalized shape shared by CSV and Excel.
func tabularContent(records [][]string) *domain.ExtractedContent {
	content := &domain.ExtractedContent{Kind: domain.ContentTabular}

	if looksLikeHeader(records[0]) {
		content.Headers = records[0]
		content.Rows = records[1:]
	} else {
		content.Rows = records
	}

	// Text rendering for the LLM prompt.
	var sb strings.Builder
	if len(content.Headers) > 0 {
		sb.WriteString(strings.Join(content.Headers, ", "))
		sb.WriteString("\n")
	}
	for _, row := range content.Rows {
		sb.WriteString(strings.Join(row, ", "))
		sb.WriteString("\n")
	}
	content.Text = strings.TrimSpace(sb.String())

	// Single data row with headers reads as a field mapping.
	if len(content.Headers) > 0 && len(content.Rows) == 1 {
		fields := make(map[string]string, len(content.Headers))
		for i, h := range content.Headers {
			if i < len(content.Rows[0]) {
				fields[strings.TrimSpace(h)] = content.Rows[0][i]
			}
		}
		content.Fields = fields
	}

	return content
}

// looksLikeHeader reports whether a row is a plausible header: at
// least one cell that is not numeric.
func looksLikeHeader(row []string) bool {
	for _, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		if !isNumeric(cell) {
			return true
		}
	}
	return false
}

func isNumeric(s string) bool {
	seenDigit := false
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			seenDigit = true
		case r == '.' || r == ',':
		case (r == '-' || r == '+') && i == 0:
		default:
			return false
		}
	}
	return seenDigit
}
