// Package pdfio bundles the PDF collaborators: native text-layer extraction,
// page counting and splitting, and page rasterization.
package pdfio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Reader reads text and structure from PDF files.
type Reader struct{}

// NewReader creates a Reader.
func NewReader() *Reader {
	return &Reader{}
}

// PageCount returns the number of pages. Failure here means the document
// itself is unreadable and is treated as fatal by the caller.
func (r *Reader) PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to count pages of %s: %w", path, err)
	}
	return n, nil
}

// ExtractText extracts the native text layer of the whole document. Pages
// without a readable text layer contribute nothing.
func (r *Reader) ExtractText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		text, err := pageText(reader, i)
		if err != nil {
			continue
		}
		if text != "" {
			if b.Len() > 0 {
				b.WriteString(" ")
			}
			b.WriteString(text)
		}
	}
	return b.String(), nil
}

// ExtractPageText extracts the native text layer of a single 1-based page.
// An empty string means the page has no text layer and needs OCR.
func (r *Reader) ExtractPageText(path string, page int) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	defer f.Close()

	if page < 1 || page > reader.NumPage() {
		return "", fmt.Errorf("page %d out of range (1-%d)", page, reader.NumPage())
	}

	text, err := pageText(reader, page)
	if err != nil {
		// An unreadable text layer is indistinguishable from a missing
		// one at routing granularity.
		return "", nil
	}
	return text, nil
}

// SplitPage writes a single 1-based page into outPath as a standalone PDF.
func (r *Reader) SplitPage(path string, page int, outPath string) error {
	pages := []string{strconv.Itoa(page)}
	if err := api.TrimFile(path, outPath, pages, nil); err != nil {
		return fmt.Errorf("failed to split page %d of %s: %w", page, path, err)
	}
	return nil
}

// ImportImage converts an image file into a one-page PDF at outPath.
func (r *Reader) ImportImage(imagePath, outPath string) error {
	if err := api.ImportImagesFile([]string{imagePath}, outPath, nil, nil); err != nil {
		return fmt.Errorf("failed to convert image %s to pdf: %w", imagePath, err)
	}
	return nil
}

func pageText(reader *pdf.Reader, page int) (string, error) {
	p := reader.Page(page)
	if p.V.IsNull() {
		return "", nil
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
