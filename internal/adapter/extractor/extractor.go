// Package extractor normalizes fetched quiz resources (CSV, Excel,
// PDF, JSON, HTML, images) into the content shape the solver consumes.
package extractor

import (
	"bytes"
	"context"
	"mime"
	"net/url"
	"path"
	"quiz-solver/internal/domain"
	"quiz-solver/internal/logger"
	"strings"

	"go.uber.org/zap"
)

// format is the internal dispatch target resolved from content type,
// extension, or byte sniffing.
type format string

const (
	formatCSV     format = "csv"
	formatExcel   format = "excel"
	formatPDF     format = "pdf"
	formatJSON    format = "json"
	formatHTML    format = "html"
	formatImage   format = "image"
	formatText    format = "text"
	formatUnknown format = ""
)

// Extractor dispatches a resource to a format-specific parser. It is
// stateless; no state is shared between calls.
type Extractor struct{}

// New creates a new Extractor.
func New() *Extractor {
	return &Extractor{}
}

var _ domain.ContentExtractor = (*Extractor)(nil)

// Extract inspects the resource and returns normalized content, or
// fails with UNSUPPORTED_FORMAT / PARSE_ERROR.
func (e *Extractor) Extract(ctx context.Context, res *domain.Resource) (*domain.ExtractedContent, error) {
	f := detectFormat(res)
	if f == formatUnknown {
		return nil, domain.NewUnsupportedFormatError(res.ContentType)
	}

	logger.Get().Debug("Extracting resource",
		zap.String("url", res.URL),
		zap.String("content_type", res.ContentType),
		zap.String("format", string(f)),
	)

	switch f {
	case formatCSV:
		return parseCSV(res.Body)
	case formatExcel:
		return parseExcel(res.Body)
	case formatPDF:
		return parsePDF(res.Body)
	case formatJSON:
		return parseJSON(res.Body)
	case formatHTML:
		return parseHTML(res.Body)
	case formatImage:
		return parseImage(res.Body)
	case formatText:
		return &domain.ExtractedContent{
			Kind: domain.ContentDocument,
			Text: strings.TrimSpace(string(res.Body)),
		}, nil
	default:
		return nil, domain.NewUnsupportedFormatError(res.ContentType)
	}
}

// detectFormat resolves the parser to use: declared content type
// first, then URL extension, then leading-byte sniffing.
func detectFormat(res *domain.Resource) format {
	if f := formatFromContentType(res.ContentType); f != formatUnknown {
		return f
	}
	if f := formatFromExtension(res.URL); f != formatUnknown {
		return f
	}
	return formatFromSniff(res.Body)
}

func formatFromContentType(contentType string) format {
	if contentType == "" {
		return formatUnknown
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}

	switch {
	case mediaType == "text/csv", mediaType == "application/csv":
		return formatCSV
	case mediaType == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		mediaType == "application/vnd.ms-excel":
		return formatExcel
	case mediaType == "application/pdf":
		return formatPDF
	case mediaType == "application/json", strings.HasSuffix(mediaType, "+json"):
		return formatJSON
	case mediaType == "text/html", mediaType == "application/xhtml+xml":
		return formatHTML
	case strings.HasPrefix(mediaType, "image/png"),
		strings.HasPrefix(mediaType, "image/jpeg"),
		strings.HasPrefix(mediaType, "image/jpg"):
		return formatImage
	case strings.HasPrefix(mediaType, "text/plain"):
		return formatText
	}
	return formatUnknown
}

func formatFromExtension(rawURL string) format {
	u, err := url.Parse(rawURL)
	if err != nil {
		return formatUnknown
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".csv":
		return formatCSV
	case ".xlsx", ".xls":
		return formatExcel
	case ".pdf":
		return formatPDF
	case ".json":
		return formatJSON
	case ".html", ".htm":
		return formatHTML
	case ".png", ".jpg", ".jpeg":
		return formatImage
	case ".txt", ".md":
		return formatText
	}
	return formatUnknown
}

func formatFromSniff(body []byte) format {
	if len(body) == 0 {
		return formatUnknown
	}
	switch {
	case bytes.HasPrefix(body, []byte("%PDF")):
		return formatPDF
	case bytes.HasPrefix(body, []byte("\x89PNG")):
		return formatImage
	case bytes.HasPrefix(body, []byte("\xff\xd8\xff")):
		return formatImage
	case bytes.HasPrefix(body, []byte("PK\x03\x04")):
		// xlsx is a zip container
		return formatExcel
	}
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return formatJSON
	}
	if bytes.Contains(bytes.ToLower(trimmed[:min(len(trimmed), 256)]), []byte("<html")) {
		return formatHTML
	}
	return formatUnknown
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
