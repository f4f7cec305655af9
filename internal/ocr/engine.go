// Package ocr provides the OCR engine abstraction and the policy that picks
// between the single-language searchable-PDF path and the multi-language raw
// path.
package ocr

import (
	"context"
	"strings"
)

// Method names recorded in page provenance.
const (
	MethodTextExtraction = "text_extraction"
	MethodTesseract      = "tesseract"
	MethodOCRmyPDF       = "ocrmypdf"
)

// Engine runs OCR on an image or PDF file and returns plain text. langHint is
// a tesseract-style language string such as "eng" or "pan+eng"; engines that
// support only one language at a time receive a single code.
type Engine interface {
	Name() string
	Run(ctx context.Context, inputPath string, langHint string) (string, error)
}

// JoinLanguages builds a combined language hint from detected languages,
// forcing English into the set if absent.
func JoinLanguages(languages []string) string {
	seen := make(map[string]struct{}, len(languages))
	joined := make([]string, 0, len(languages)+1)
	for _, lang := range languages {
		if lang == "" {
			continue
		}
		if _, ok := seen[lang]; ok {
			continue
		}
		seen[lang] = struct{}{}
		joined = append(joined, lang)
	}
	if _, ok := seen["eng"]; !ok {
		joined = append(joined, "eng")
	}
	return strings.Join(joined, "+")
}
