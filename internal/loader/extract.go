package loader

import (
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFPlaceholder replaces the content of a PDF whose text cannot be extracted.
const PDFPlaceholder = "[Failed to extract content from PDF]"

// Extractor turns a file on disk into plain text.
type Extractor interface {
	Extract(path string) (string, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(path string) (string, error)

func (f ExtractorFunc) Extract(path string) (string, error) { return f(path) }

// TextExtractor reads a file verbatim.
type TextExtractor struct{}

func (TextExtractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read text file: %w", err)
	}
	return string(content), nil
}

// PDFExtractor concatenates the plain text of every page, one newline per page. It is best
// effort: an unreadable document yields PDFPlaceholder and a nil error.
type PDFExtractor struct{}

func (PDFExtractor) Extract(path string) (content string, err error) {
	defer func() {
		// the pdf reader panics on some malformed inputs
		if r := recover(); r != nil {
			content, err = PDFPlaceholder, nil
		}
	}()

	f, reader, err := pdf.Open(path)
	if f != nil {
		defer f.Close()
	}
	if err != nil {
		return PDFPlaceholder, nil
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func defaultExtractors() map[string]Extractor {
	return map[string]Extractor{
		".txt": TextExtractor{},
		".pdf": PDFExtractor{},
	}
}
