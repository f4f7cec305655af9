package processor

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lipiscan/extract-worker/internal/config"
	"github.com/lipiscan/extract-worker/internal/language"
	"github.com/lipiscan/extract-worker/internal/logging"
	"github.com/lipiscan/extract-worker/internal/ocr"
	"github.com/lipiscan/extract-worker/internal/tempfiles"
)

type engineCall struct {
	path string
	hint string
}

// stubEngine replays a scripted sequence of responses.
type stubEngine struct {
	name      string
	responses []string
	errs      []error
	calls     []engineCall
}

func (e *stubEngine) Name() string { return e.name }

func (e *stubEngine) Run(_ context.Context, path, hint string) (string, error) {
	i := len(e.calls)
	e.calls = append(e.calls, engineCall{path: path, hint: hint})
	var text string
	var err error
	if i < len(e.responses) {
		text = e.responses[i]
	}
	if i < len(e.errs) {
		err = e.errs[i]
	}
	return text, err
}

type stubRasterizer struct {
	path string
	err  error
}

func (r *stubRasterizer) RasterizePage(context.Context, string, int) (string, error) {
	return r.path, r.err
}

type stubPDFReader struct {
	pageCount    int
	pageCountErr error
	pageTexts    map[int]string
	extractErr   error
	splitErr     error
}

func (r *stubPDFReader) PageCount(string) (int, error) {
	return r.pageCount, r.pageCountErr
}

func (r *stubPDFReader) ExtractPageText(_ string, page int) (string, error) {
	return r.pageTexts[page], r.extractErr
}

func (r *stubPDFReader) SplitPage(_ string, _ int, outPath string) error {
	if r.splitErr != nil {
		return r.splitErr
	}
	return os.WriteFile(outPath, []byte("%PDF-1.4"), 0o644)
}

func pageTestConfig() *config.Config {
	return &config.Config{
		MinSampleLength:       10,
		DetectorTrigger:       30,
		DetectorBoostScore:    70,
		PrimaryMinScore:       25,
		SecondaryMinScore:     10,
		SingleEnglishScore:    60,
		SingleOtherMaxScore:   10,
		RecheckMinTextLength:  50,
		RecheckMinLengthRatio: 0.5,
		CleanupMaxAttempts:    1,
	}
}

// writeTestPNG creates a small decodable page image inside dir.
func writeTestPNG(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "page.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 64, 64))))
	return path
}

type pageFixture struct {
	proc   *PageProcessor
	single *stubEngine
	multi  *stubEngine
	raster *stubRasterizer
	tmpDir string
}

func newPageFixture(t *testing.T, single, multi *stubEngine) *pageFixture {
	t.Helper()
	cfg := pageTestConfig()
	tmpDir := t.TempDir()
	tmp, err := tempfiles.NewManager(tmpDir, 1, 0, nil)
	require.NoError(t, err)

	raster := &stubRasterizer{path: writeTestPNG(t, tmpDir)}
	proc := NewPageProcessor(
		cfg,
		logging.NewLogger("test"),
		language.NewInferrer(cfg, nil),
		ocr.NewSelector(cfg.SingleEnglishScore, cfg.SingleOtherMaxScore),
		single, multi,
		raster,
		&stubPDFReader{},
		tmp,
	)
	return &pageFixture{proc: proc, single: single, multi: multi, raster: raster, tmpDir: tmpDir}
}

const gurmukhiSample = "ਪੰਜਾਬ ਸਰਕਾਰ ਵੱਲੋਂ ਜਾਰੀ ਹੁਕਮ ਅਨੁਸਾਰ ਇਹ ਪੱਤਰ"
const englishSample = "This is clearly an English business letter sample"

func TestPDFPageMultiLanguagePath(t *testing.T) {
	single := &stubEngine{name: "ocrmypdf", errs: []error{errors.New("must not run")}}
	multi := &stubEngine{name: "tesseract", responses: []string{gurmukhiSample, gurmukhiSample}}
	fx := newPageFixture(t, single, multi)

	res := fx.proc.ProcessPDFPage(context.Background(), "job-1", "/in.pdf", 1, 1)

	assert.Equal(t, 1, res.PageNumber)
	assert.Equal(t, ocr.MethodTesseract, res.OCRMethod)
	assert.Contains(t, res.DetectedLanguages, "pan")
	assert.Greater(t, res.TextLength, 0)
	assert.Empty(t, single.calls)

	// Detection sample first, then the full-page pass with combined hints.
	require.Len(t, multi.calls, 2)
	assert.Equal(t, "eng+hin+pan", multi.calls[0].hint)
	assert.Equal(t, "pan+eng", multi.calls[1].hint)
}

func TestPDFPageSingleLanguagePath(t *testing.T) {
	single := &stubEngine{name: "ocrmypdf", responses: []string{"Dear Sir, further to our discussion"}}
	multi := &stubEngine{name: "tesseract", responses: []string{englishSample}}
	fx := newPageFixture(t, single, multi)

	res := fx.proc.ProcessPDFPage(context.Background(), "job-1", "/in.pdf", 2, 2)

	assert.Equal(t, ocr.MethodOCRmyPDF, res.OCRMethod)
	assert.Equal(t, []string{"eng"}, res.DetectedLanguages)
	require.Len(t, single.calls, 1)
	assert.Equal(t, "eng", single.calls[0].hint)
	assert.Equal(t, ".pdf", filepath.Ext(single.calls[0].path))
}

func TestSingleEngineFailureFallsBackToRawEnglish(t *testing.T) {
	single := &stubEngine{name: "ocrmypdf", errs: []error{errors.New("ghostscript exploded")}}
	multi := &stubEngine{name: "tesseract", responses: []string{englishSample, "fallback extracted text"}}
	fx := newPageFixture(t, single, multi)

	res := fx.proc.ProcessPDFPage(context.Background(), "job-1", "/in.pdf", 1, 1)

	assert.Equal(t, ocr.MethodTesseract, res.OCRMethod)
	assert.Greater(t, res.TextLength, 0)
	require.Len(t, multi.calls, 2)
	assert.Equal(t, "eng", multi.calls[1].hint)
}

func TestRecheckAdoptsCleanerEnglishRerun(t *testing.T) {
	// Mixed sample routes to multi, but the produced text reads as pure
	// English and is long enough to justify one single-path attempt.
	mixedSample := "ਪੰਜਾਬ ਦਫ਼ਤਰ memo attached herewith ਪੱਤਰ"
	longEnglish := strings.Repeat("clean english sentence ", 5)
	rerun := strings.Repeat("even cleaner english sentence ", 4)

	single := &stubEngine{name: "ocrmypdf", responses: []string{rerun}}
	multi := &stubEngine{name: "tesseract", responses: []string{mixedSample, longEnglish}}
	fx := newPageFixture(t, single, multi)

	res := fx.proc.ProcessPDFPage(context.Background(), "job-1", "/in.pdf", 1, 1)

	assert.Equal(t, ocr.MethodOCRmyPDF, res.OCRMethod)
	assert.Equal(t, len([]rune(rerun)), res.TextLength)
	require.Len(t, single.calls, 1)
}

func TestRecheckRejectsShorterRerun(t *testing.T) {
	mixedSample := "ਪੰਜਾਬ ਦਫ਼ਤਰ memo attached herewith ਪੱਤਰ"
	longEnglish := strings.Repeat("original english sentence ", 5)

	// The re-run "succeeds" but loses most of the text; keep the original.
	single := &stubEngine{name: "ocrmypdf", responses: []string{"tiny"}}
	multi := &stubEngine{name: "tesseract", responses: []string{mixedSample, longEnglish}}
	fx := newPageFixture(t, single, multi)

	res := fx.proc.ProcessPDFPage(context.Background(), "job-1", "/in.pdf", 1, 1)

	assert.Equal(t, ocr.MethodTesseract, res.OCRMethod)
	assert.Equal(t, len([]rune(longEnglish)), res.TextLength)
}

func TestEmptyDetectionSampleUsesUncertainDistribution(t *testing.T) {
	// Sample too short for inference; page OCR also comes back empty, so
	// the pre-OCR uncertain guess is what gets reported.
	single := &stubEngine{name: "ocrmypdf"}
	multi := &stubEngine{name: "tesseract", responses: []string{"ab", ""}}
	fx := newPageFixture(t, single, multi)

	res := fx.proc.ProcessPDFPage(context.Background(), "job-1", "/in.pdf", 1, 1)

	assert.Equal(t, []string{"eng", "hin", "pan"}, res.DetectedLanguages)
	assert.Zero(t, res.TextLength)
	require.Len(t, multi.calls, 2)
	assert.Equal(t, "eng+hin+pan", multi.calls[1].hint)
}

func TestRasterizationFailureDegradesPage(t *testing.T) {
	single := &stubEngine{name: "ocrmypdf"}
	multi := &stubEngine{name: "tesseract"}
	fx := newPageFixture(t, single, multi)
	fx.raster.err = errors.New("pdftoppm missing")

	res := fx.proc.ProcessPDFPage(context.Background(), "job-9", "/in.pdf", 1, 3)

	assert.Equal(t, 3, res.PageNumber)
	assert.Equal(t, ocr.MethodTesseract, res.OCRMethod)
	assert.Zero(t, res.TextLength)
	assert.Equal(t, []string{"eng"}, res.DetectedLanguages)
	assert.Equal(t, 60.0, res.LanguageScores["eng"])
}

func TestAllEnginesFailingDegradesPage(t *testing.T) {
	boom := errors.New("no ocr for you")
	single := &stubEngine{name: "ocrmypdf", errs: []error{boom}}
	multi := &stubEngine{name: "tesseract", errs: []error{boom, boom}}
	fx := newPageFixture(t, single, multi)

	res := fx.proc.ProcessPDFPage(context.Background(), "job-1", "/in.pdf", 1, 1)

	assert.Zero(t, res.TextLength)
	assert.Equal(t, ocr.MethodTesseract, res.OCRMethod)
}

func TestPageArtifactsRemovedAfterProcessing(t *testing.T) {
	single := &stubEngine{name: "ocrmypdf", responses: []string{"Dear Sir, further to our discussion"}}
	multi := &stubEngine{name: "tesseract", responses: []string{englishSample}}
	fx := newPageFixture(t, single, multi)

	fx.proc.ProcessPDFPage(context.Background(), "job-1", "/in.pdf", 1, 1)

	// Every transient artifact must be gone: the rasterized image, the
	// crop sample and the split page PDF.
	entries, err := os.ReadDir(fx.tmpDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestImageProcessedAsSinglePage(t *testing.T) {
	single := &stubEngine{name: "ocrmypdf"}
	multi := &stubEngine{name: "tesseract", responses: []string{gurmukhiSample, gurmukhiSample}}
	fx := newPageFixture(t, single, multi)

	res := fx.proc.ProcessImage(context.Background(), "job-1", fx.raster.path, 1)

	assert.Equal(t, 1, res.PageNumber)
	assert.Equal(t, ocr.MethodTesseract, res.OCRMethod)
	assert.Contains(t, res.DetectedLanguages, "pan")
}
