/**
 * Document Processor for the extraction worker.
 *
 * Dispatches each input file by type, drives the Page Processor over pages
 * that need OCR, and aggregates text plus provenance metadata into one
 * response. Unsupported file types and unopenable documents are fatal for
 * the request; everything else degrades per page.
 */

package processor

import (
	"context"
	"math"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/lipiscan/extract-worker/internal/apperrors"
	"github.com/lipiscan/extract-worker/internal/config"
	"github.com/lipiscan/extract-worker/internal/docx"
	"github.com/lipiscan/extract-worker/internal/logging"
	"github.com/lipiscan/extract-worker/internal/ocr"
	"github.com/lipiscan/extract-worker/internal/tempfiles"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tiff": true,
	".bmp":  true,
}

// DocumentProcessor orchestrates one extraction job end to end.
type DocumentProcessor struct {
	cfg      *config.Config
	log      *logging.Logger
	inferrer LanguageInferrer
	pages    PageRunner
	reader   PDFReader
	tmp      *tempfiles.Manager
}

// NewDocumentProcessor creates a DocumentProcessor.
func NewDocumentProcessor(
	cfg *config.Config,
	log *logging.Logger,
	inferrer LanguageInferrer,
	pages PageRunner,
	reader PDFReader,
	tmp *tempfiles.Manager,
) *DocumentProcessor {
	return &DocumentProcessor{
		cfg:      cfg,
		log:      log,
		inferrer: inferrer,
		pages:    pages,
		reader:   reader,
		tmp:      tmp,
	}
}

// Process runs every file of the job and aggregates the results. The
// returned error is either an unsupported-file-type violation or a
// document-level open failure; per-page problems never surface here.
func (p *DocumentProcessor) Process(ctx context.Context, job *Job) (*DocumentResult, error) {
	p.log.Info("job started", "job", job.JobID, "files", len(job.Files))

	var results []PageResult
	for _, file := range job.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ext := strings.ToLower(filepath.Ext(file.Filename))
		switch {
		case ext == ".pdf":
			pageResults, err := p.processPDF(ctx, job.JobID, file, len(results))
			if err != nil {
				return nil, err
			}
			results = append(results, pageResults...)

		case ext == ".docx":
			result, err := p.processDocx(job.JobID, file, len(results)+1)
			if err != nil {
				return nil, err
			}
			results = append(results, result)

		case imageExtensions[ext]:
			result, err := p.processImage(ctx, job.JobID, file, len(results)+1)
			if err != nil {
				return nil, err
			}
			results = append(results, result)

		default:
			return nil, apperrors.NewUnsupportedFileTypeError(job.JobID, ext)
		}
	}

	result := p.aggregate(job, results)
	p.log.Info("job finished", "job", job.JobID, "pages", result.TotalPages,
		"languages", result.LanguageUsedForOCR, "confidence", result.ConfidenceScore)
	return result, nil
}

// processPDF checks each page's native text layer before paying for OCR.
// Born-digital PDFs resolve entirely without touching an engine.
func (p *DocumentProcessor) processPDF(ctx context.Context, jobID string, file InputFile, ordinalBase int) ([]PageResult, error) {
	path, err := p.tmp.Write(".pdf", file.Data)
	if err != nil {
		return nil, apperrors.NewDocumentExtractError(jobID, file.Filename, err)
	}
	defer p.tmp.Remove(path)

	pageCount, err := p.reader.PageCount(path)
	if err != nil {
		return nil, apperrors.NewDocumentExtractError(jobID, file.Filename, err)
	}

	results := make([]PageResult, 0, pageCount)
	for page := 1; page <= pageCount; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ordinal := ordinalBase + page
		native, err := p.reader.ExtractPageText(path, page)
		if err != nil {
			return nil, apperrors.NewDocumentExtractError(jobID, file.Filename, err)
		}

		if text := strings.TrimSpace(native); text != "" {
			results = append(results, p.nativePageResult(ordinal, text))
			continue
		}

		p.log.Debug("page has no text layer, routing to OCR", "job", jobID, "file", file.Filename, "page", page)
		results = append(results, p.pages.ProcessPDFPage(ctx, jobID, path, page, ordinal))
	}
	return results, nil
}

// processDocx extracts paragraph text directly; word-processor files never
// need OCR.
func (p *DocumentProcessor) processDocx(jobID string, file InputFile, ordinal int) (PageResult, error) {
	text, err := docx.ExtractText(file.Data)
	if err != nil {
		return PageResult{}, apperrors.NewDocumentExtractError(jobID, file.Filename, err)
	}
	return p.nativePageResult(ordinal, strings.TrimSpace(text)), nil
}

// processImage treats a standalone image as a single synthetic page.
func (p *DocumentProcessor) processImage(ctx context.Context, jobID string, file InputFile, ordinal int) (PageResult, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	path, err := p.tmp.Write(ext, file.Data)
	if err != nil {
		return PageResult{}, apperrors.NewDocumentExtractError(jobID, file.Filename, err)
	}
	defer p.tmp.Remove(path)

	return p.pages.ProcessImage(ctx, jobID, path, ordinal), nil
}

func (p *DocumentProcessor) nativePageResult(ordinal int, text string) PageResult {
	languages, scores := p.inferrer.Infer(text)
	return PageResult{
		PageNumber:        ordinal,
		DetectedLanguages: languages,
		LanguageScores:    scores,
		OCRMethod:         ocr.MethodTextExtraction,
		TextLength:        utf8.RuneCountInString(text),
		Text:              text,
	}
}

// aggregate joins all page texts, collapses whitespace and re-runs inference
// on the whole for the document-level summary.
func (p *DocumentProcessor) aggregate(job *Job, results []PageResult) *DocumentResult {
	fragments := make([]string, 0, len(results))
	for _, r := range results {
		if r.Text != "" {
			fragments = append(fragments, r.Text)
		}
	}
	collapsed := strings.Join(strings.Fields(strings.Join(fragments, " ")), " ")

	languages, scores := p.inferrer.Infer(collapsed)

	confidence := 70.0
	if collapsed != "" {
		confidence = maxScore(scores)
	}

	languageUsed := job.LanguageOverride
	if languageUsed == "" {
		languageUsed = ocr.JoinLanguages(languages)
	}

	if results == nil {
		results = []PageResult{}
	}

	return &DocumentResult{
		ExtractedText:      collapsed,
		DetectedLanguages:  languages,
		LanguageUsedForOCR: languageUsed,
		ConfidenceScore:    math.Round(confidence*10) / 10,
		PageProcessingInfo: results,
		TotalPages:         len(results),
	}
}

func maxScore(scores map[string]float64) float64 {
	max := 0.0
	for _, s := range scores {
		if s > max {
			max = s
		}
	}
	return max
}
