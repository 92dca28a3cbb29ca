package pdfvalidation

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Limits bounds what a course material upload may contain.
type Limits struct {
	MaxFileSizeMB int
	MaxPages      int
}

// MaterialLimits apply to every course material upload.
var MaterialLimits = Limits{
	MaxFileSizeMB: 50,
	MaxPages:      2000,
}

// Result describes an inspected upload. Error is set when the upload is
// rejected; PageCount is only filled for PDFs.
type Result struct {
	Valid     bool
	IsPDF     bool
	PageCount int
	FileSize  int64
	Error     string
}

// IsPDF reports whether the file looks like a PDF by name or content.
func IsPDF(filename string, content []byte) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".pdf") || bytes.HasPrefix(content, []byte("%PDF-"))
}

// Inspect validates an upload against limits. Non-PDF files are only
// size-checked.
func Inspect(filename string, content []byte, limits Limits) *Result {
	result := &Result{FileSize: int64(len(content))}

	maxSize := int64(limits.MaxFileSizeMB) * 1024 * 1024
	if result.FileSize == 0 {
		result.Error = "File is empty"
		return result
	}
	if result.FileSize > maxSize {
		result.Error = fmt.Sprintf("File size exceeds maximum allowed size of %dMB", limits.MaxFileSizeMB)
		return result
	}

	if !IsPDF(filename, content) {
		result.Valid = true
		return result
	}
	result.IsPDF = true

	if !bytes.HasPrefix(content, []byte("%PDF-")) {
		result.Error = "Invalid PDF file: missing PDF header"
		return result
	}

	pageCount, err := PageCount(content)
	if err != nil {
		result.Error = fmt.Sprintf("Failed to read PDF: %v", err)
		return result
	}
	result.PageCount = pageCount

	if pageCount == 0 {
		result.Error = "PDF has no pages"
		return result
	}
	if pageCount > limits.MaxPages {
		result.Error = fmt.Sprintf("PDF has %d pages, which exceeds the maximum of %d", pageCount, limits.MaxPages)
		return result
	}

	result.Valid = true
	return result
}

// sanitizePDF drops trailing bytes after the last %%EOF marker
func sanitizePDF(content []byte) []byte {
	eofMarker := []byte("%%EOF")
	lastEOF := bytes.LastIndex(content, eofMarker)
	if lastEOF == -1 {
		return content
	}

	pdfEnd := lastEOF + len(eofMarker)
	for pdfEnd < len(content) && (content[pdfEnd] == '\n' || content[pdfEnd] == '\r') {
		pdfEnd++
	}
	return content[:pdfEnd]
}

// PageCount returns the number of pages in a PDF
func PageCount(content []byte) (n int, err error) {
	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	content = sanitizePDF(content)
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return 0, fmt.Errorf("failed to parse PDF: %w", err)
	}
	return reader.NumPage(), nil
}
