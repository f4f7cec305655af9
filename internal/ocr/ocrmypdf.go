package ocr

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lipiscan/extract-worker/internal/execx"
	"github.com/lipiscan/extract-worker/internal/pdfio"
	"github.com/lipiscan/extract-worker/internal/tempfiles"
)

// OCRmyPDFEngine is the searchable-PDF engine. It rewrites the input with an
// invisible text layer and reads that layer back. Restricted to a single
// language per invocation in this deployment.
type OCRmyPDFEngine struct {
	bin    string
	runner execx.CommandRunner
	reader *pdfio.Reader
	tmp    *tempfiles.Manager
}

// NewOCRmyPDFEngine creates an OCRmyPDFEngine.
func NewOCRmyPDFEngine(bin string, runner execx.CommandRunner, reader *pdfio.Reader, tmp *tempfiles.Manager) *OCRmyPDFEngine {
	return &OCRmyPDFEngine{bin: bin, runner: runner, reader: reader, tmp: tmp}
}

// Name implements Engine.
func (e *OCRmyPDFEngine) Name() string {
	return MethodOCRmyPDF
}

// Run performs OCR on a PDF or image file. Images are first converted to a
// one-page PDF. All intermediates are transient artifacts removed before
// returning, whatever the outcome.
func (e *OCRmyPDFEngine) Run(ctx context.Context, inputPath string, langHint string) (string, error) {
	pdfPath := inputPath
	var intermediates []string
	defer func() {
		e.tmp.RemoveAll(intermediates...)
	}()

	if !strings.EqualFold(filepath.Ext(inputPath), ".pdf") {
		converted := e.tmp.Path(".pdf")
		intermediates = append(intermediates, converted)
		if err := e.reader.ImportImage(inputPath, converted); err != nil {
			return "", fmt.Errorf("image conversion for searchable OCR failed: %w", err)
		}
		pdfPath = converted
	}

	outPath := e.tmp.Path(".pdf")
	intermediates = append(intermediates, outPath)

	args := []string{
		"--force-ocr",
		"--output-type", "pdf",
		"--optimize", "0",
		"--quiet",
		"-l", langHint,
		pdfPath,
		outPath,
	}
	if _, err := e.runner.Run(ctx, e.bin, args...); err != nil {
		return "", fmt.Errorf("ocrmypdf execution failed: %w", err)
	}

	text, err := e.reader.ExtractText(outPath)
	if err != nil {
		return "", fmt.Errorf("failed to read searchable output: %w", err)
	}
	return strings.TrimSpace(text), nil
}
