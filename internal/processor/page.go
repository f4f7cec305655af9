/**
 * Page Processor for the extraction worker.
 *
 * Drives one page through the routing state machine:
 * rasterize -> detect -> select -> OCR attempt -> optional recheck -> done.
 * A page is never allowed to fail the document: every error path degrades
 * into a default English result and processing continues.
 */

package processor

import (
	"context"
	"image"
	"image/png"
	"os"
	"strings"
	"unicode/utf8"

	_ "image/jpeg" // sample crops may come from jpeg sources

	"github.com/lipiscan/extract-worker/internal/config"
	"github.com/lipiscan/extract-worker/internal/logging"
	"github.com/lipiscan/extract-worker/internal/ocr"
	"github.com/lipiscan/extract-worker/internal/tempfiles"
)

// detectionSampleLanguages is the hint for the quick pre-OCR sample pass.
const detectionSampleLanguages = "eng+hin+pan"

// PageProcessor runs the per-page decision pipeline.
type PageProcessor struct {
	cfg      *config.Config
	log      *logging.Logger
	inferrer LanguageInferrer
	selector *ocr.Selector
	single   ocr.Engine // searchable-PDF path, one language per invocation
	multi    ocr.Engine // raw path, combined language hints
	raster   Rasterizer
	reader   PDFReader
	tmp      *tempfiles.Manager
}

// NewPageProcessor creates a PageProcessor.
func NewPageProcessor(
	cfg *config.Config,
	log *logging.Logger,
	inferrer LanguageInferrer,
	selector *ocr.Selector,
	single, multi ocr.Engine,
	raster Rasterizer,
	reader PDFReader,
	tmp *tempfiles.Manager,
) *PageProcessor {
	return &PageProcessor{
		cfg:      cfg,
		log:      log,
		inferrer: inferrer,
		selector: selector,
		single:   single,
		multi:    multi,
		raster:   raster,
		reader:   reader,
		tmp:      tmp,
	}
}

// ProcessPDFPage OCRs one page of a PDF. sourcePage is the 1-based page in
// the source file, ordinal the 1-based position in the aggregated response.
func (p *PageProcessor) ProcessPDFPage(ctx context.Context, jobID, pdfPath string, sourcePage, ordinal int) PageResult {
	result, err := p.runPDFPage(ctx, jobID, pdfPath, sourcePage, ordinal)
	if err != nil {
		p.log.Warn("page degraded to empty result", "job", jobID, "page", ordinal, "error", err)
		return degradedPage(ordinal)
	}
	return result
}

// ProcessImage OCRs a standalone image as a single synthetic page.
func (p *PageProcessor) ProcessImage(ctx context.Context, jobID, imagePath string, ordinal int) PageResult {
	// The searchable-PDF engine converts images itself, so the image
	// serves as input to both paths.
	singleInput := func() (string, error) { return imagePath, nil }

	result, err := p.runPage(ctx, jobID, ordinal, imagePath, singleInput)
	if err != nil {
		p.log.Warn("image degraded to empty result", "job", jobID, "page", ordinal, "error", err)
		return degradedPage(ordinal)
	}
	return result
}

func (p *PageProcessor) runPDFPage(ctx context.Context, jobID, pdfPath string, sourcePage, ordinal int) (PageResult, error) {
	imgPath, err := p.raster.RasterizePage(ctx, pdfPath, sourcePage)
	if err != nil {
		return PageResult{}, err
	}
	defer p.tmp.Remove(imgPath)

	// The single-language engine wants a PDF; split the page out lazily
	// since most pages never take that path.
	var pagePDF string
	defer func() { p.tmp.Remove(pagePDF) }()
	singleInput := func() (string, error) {
		if pagePDF != "" {
			return pagePDF, nil
		}
		out := p.tmp.Path(".pdf")
		if err := p.reader.SplitPage(pdfPath, sourcePage, out); err != nil {
			return "", err
		}
		pagePDF = out
		return out, nil
	}

	return p.runPage(ctx, jobID, ordinal, imgPath, singleInput)
}

// runPage executes DETECT through DONE for one rasterized page or image.
// singleInput supplies the file handed to the single-language engine.
func (p *PageProcessor) runPage(ctx context.Context, jobID string, ordinal int, imgPath string, singleInput func() (string, error)) (PageResult, error) {
	languages, scores := p.detect(ctx, imgPath)
	strategy := p.selector.Select(languages, scores)
	p.log.Debug("page routed", "job", jobID, "page", ordinal, "strategy", strategy, "languages", strings.Join(languages, "+"))

	var text string
	var method string

	switch strategy {
	case ocr.StrategySingle:
		var err error
		text, method, err = p.runSinglePath(ctx, jobID, ordinal, imgPath, singleInput)
		if err != nil {
			return PageResult{}, err
		}
	default:
		hint := ocr.JoinLanguages(languages)
		out, err := p.multi.Run(ctx, imgPath, hint)
		if err != nil {
			return PageResult{}, err
		}
		text = out
		method = ocr.MethodTesseract

		text, method = p.recheck(ctx, jobID, ordinal, text, method, singleInput)
	}

	// The reported metadata always reflects the output text, not the
	// pre-OCR guess, unless the output is empty.
	if strings.TrimSpace(text) != "" {
		languages, scores = p.inferrer.Infer(text)
	}

	return PageResult{
		PageNumber:        ordinal,
		DetectedLanguages: languages,
		LanguageScores:    scores,
		OCRMethod:         method,
		TextLength:        utf8.RuneCountInString(text),
		Text:              text,
	}, nil
}

// detect crops the page image to its central region, OCRs a quick
// multi-language sample and infers languages from it. Unusable samples fall
// back to a fixed uncertain distribution instead of failing.
func (p *PageProcessor) detect(ctx context.Context, imgPath string) ([]string, map[string]float64) {
	samplePath := imgPath
	if cropped, ok := p.cropCenter(imgPath); ok {
		samplePath = cropped
		defer p.tmp.Remove(cropped)
	}

	sample, err := p.multi.Run(ctx, samplePath, detectionSampleLanguages)
	if err != nil || utf8.RuneCountInString(strings.TrimSpace(sample)) < p.cfg.MinSampleLength {
		return uncertainLanguages()
	}
	return p.inferrer.Infer(sample)
}

// runSinglePath attempts the searchable-PDF engine and degrades to raw
// English-only OCR on failure. It errors only when even the fallback failed,
// at which point the page as a whole degrades.
func (p *PageProcessor) runSinglePath(ctx context.Context, jobID string, ordinal int, imgPath string, singleInput func() (string, error)) (string, string, error) {
	in, err := singleInput()
	if err == nil {
		text, runErr := p.single.Run(ctx, in, "eng")
		if runErr == nil {
			return text, ocr.MethodOCRmyPDF, nil
		}
		err = runErr
	}

	p.log.Warn("single-language engine failed, falling back to raw OCR", "job", jobID, "page", ordinal, "error", err)
	text, err := p.multi.Run(ctx, imgPath, "eng")
	if err != nil {
		return "", "", err
	}
	return text, ocr.MethodTesseract, nil
}

// recheck re-runs inference on the multi-path output: a page that now reads
// as English-dominant gets one shot at the cleaner single-language path. The
// re-run is adopted only when it produces at least the configured fraction of
// the original text, and any failure keeps the original.
func (p *PageProcessor) recheck(ctx context.Context, jobID string, ordinal int, text, method string, singleInput func() (string, error)) (string, string) {
	if utf8.RuneCountInString(text) <= p.cfg.RecheckMinTextLength {
		return text, method
	}

	languages, scores := p.inferrer.Infer(text)
	if p.selector.Select(languages, scores) != ocr.StrategySingle {
		return text, method
	}

	in, err := singleInput()
	if err != nil {
		return text, method
	}
	retry, err := p.single.Run(ctx, in, "eng")
	if err != nil {
		p.log.Debug("recheck attempt failed, keeping original text", "job", jobID, "page", ordinal, "error", err)
		return text, method
	}

	minLen := p.cfg.RecheckMinLengthRatio * float64(utf8.RuneCountInString(text))
	if float64(utf8.RuneCountInString(retry)) < minLen {
		return text, method
	}
	return retry, ocr.MethodOCRmyPDF
}

// cropCenter writes the central region of the image to a new transient
// artifact, skipping the margins where stamps and hole punches live. Returns
// ok=false when the image cannot be decoded, in which case the full image is
// sampled instead.
func (p *PageProcessor) cropCenter(imgPath string) (string, bool) {
	f, err := os.Open(imgPath)
	if err != nil {
		return "", false
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return "", false
	}

	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	si, ok := img.(subImager)
	if !ok {
		return "", false
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	crop := image.Rect(b.Min.X+w/4, b.Min.Y+h/4, b.Max.X-w/4, b.Max.Y-h/4)
	if crop.Empty() {
		return "", false
	}

	out := p.tmp.Path(".png")
	dst, err := os.Create(out)
	if err != nil {
		return "", false
	}
	defer dst.Close()

	if err := png.Encode(dst, si.SubImage(crop)); err != nil {
		p.tmp.Remove(out)
		return "", false
	}
	return out, true
}

// degradedPage is the recovery value for a failed page: zero text, default
// English metadata, raw method.
func degradedPage(ordinal int) PageResult {
	return PageResult{
		PageNumber:        ordinal,
		DetectedLanguages: []string{"eng"},
		LanguageScores:    map[string]float64{"eng": 60, "hin": 0, "pan": 0},
		OCRMethod:         ocr.MethodTesseract,
		TextLength:        0,
	}
}

// uncertainLanguages is the fallback distribution when the detection sample
// is empty or too short: roughly even across all supported languages.
func uncertainLanguages() ([]string, map[string]float64) {
	return []string{"eng", "hin", "pan"}, map[string]float64{"eng": 40, "hin": 30, "pan": 30}
}
