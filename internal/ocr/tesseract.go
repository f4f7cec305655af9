package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine is the raw image-to-text engine. It supports multiple
// simultaneous language hints ("pan+eng").
type TesseractEngine struct{}

// NewTesseractEngine creates a TesseractEngine.
func NewTesseractEngine() *TesseractEngine {
	return &TesseractEngine{}
}

// Name implements Engine.
func (e *TesseractEngine) Name() string {
	return MethodTesseract
}

// Run performs OCR on an image file. A fresh client per call keeps the engine
// safe for concurrent pages.
func (e *TesseractEngine) Run(ctx context.Context, inputPath string, langHint string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if langHint != "" {
		if err := client.SetLanguage(strings.Split(langHint, "+")...); err != nil {
			return "", fmt.Errorf("failed to set tesseract languages %q: %w", langHint, err)
		}
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return "", fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetImage(inputPath); err != nil {
		return "", fmt.Errorf("failed to load image %s: %w", inputPath, err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract OCR failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}
