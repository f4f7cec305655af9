package processor

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lipiscan/extract-worker/internal/apperrors"
	"github.com/lipiscan/extract-worker/internal/language"
	"github.com/lipiscan/extract-worker/internal/logging"
	"github.com/lipiscan/extract-worker/internal/ocr"
	"github.com/lipiscan/extract-worker/internal/tempfiles"
)

type pageCall struct {
	sourcePage int
	ordinal    int
	image      bool
}

// stubPageRunner returns scripted results keyed by ordinal.
type stubPageRunner struct {
	results map[int]PageResult
	calls   []pageCall
}

func (r *stubPageRunner) ProcessPDFPage(_ context.Context, _ string, _ string, sourcePage, ordinal int) PageResult {
	r.calls = append(r.calls, pageCall{sourcePage: sourcePage, ordinal: ordinal})
	return r.result(ordinal)
}

func (r *stubPageRunner) ProcessImage(_ context.Context, _ string, _ string, ordinal int) PageResult {
	r.calls = append(r.calls, pageCall{ordinal: ordinal, image: true})
	return r.result(ordinal)
}

func (r *stubPageRunner) result(ordinal int) PageResult {
	if res, ok := r.results[ordinal]; ok {
		return res
	}
	return PageResult{
		PageNumber:        ordinal,
		DetectedLanguages: []string{"eng"},
		LanguageScores:    map[string]float64{"eng": 60, "hin": 0, "pan": 0},
		OCRMethod:         ocr.MethodTesseract,
	}
}

type docFixture struct {
	proc   *DocumentProcessor
	pages  *stubPageRunner
	reader *stubPDFReader
	tmpDir string
}

func newDocFixture(t *testing.T) *docFixture {
	t.Helper()
	cfg := pageTestConfig()
	tmpDir := t.TempDir()
	tmp, err := tempfiles.NewManager(tmpDir, 1, 0, nil)
	require.NoError(t, err)

	pages := &stubPageRunner{results: map[int]PageResult{}}
	reader := &stubPDFReader{pageTexts: map[int]string{}}
	proc := NewDocumentProcessor(cfg, logging.NewLogger("test"), language.NewInferrer(cfg, nil), pages, reader, tmp)
	return &docFixture{proc: proc, pages: pages, reader: reader, tmpDir: tmpDir}
}

func buildTestDocx(t *testing.T, text string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte("<document><body><p><r><t>" + text + "</t></r></p></body></document>"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestProcessUnsupportedExtensionIsFatal(t *testing.T) {
	fx := newDocFixture(t)

	result, err := fx.proc.Process(context.Background(), &Job{
		JobID: "job-1",
		Files: []InputFile{{Filename: "payload.xyz", Data: []byte("x")}},
	})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrorUnsupportedFileType))
	assert.Contains(t, err.Error(), ".xyz")
	assert.Empty(t, fx.pages.calls)
}

func TestProcessDocxExtractsDirectly(t *testing.T) {
	fx := newDocFixture(t)

	result, err := fx.proc.Process(context.Background(), &Job{
		JobID: "job-1",
		Files: []InputFile{{Filename: "letter.docx", Data: buildTestDocx(t, "An ordinary English paragraph here.")}},
	})

	require.NoError(t, err)
	require.Equal(t, 1, result.TotalPages)
	assert.Equal(t, ocr.MethodTextExtraction, result.PageProcessingInfo[0].OCRMethod)
	assert.Equal(t, "An ordinary English paragraph here.", result.ExtractedText)
	assert.Empty(t, fx.pages.calls)
}

func TestProcessPDFNativeAndScannedPages(t *testing.T) {
	fx := newDocFixture(t)
	fx.reader.pageCount = 2
	fx.reader.pageTexts[1] = "This is a digital page with a native text layer."
	fx.pages.results[2] = PageResult{
		PageNumber:        2,
		DetectedLanguages: []string{"pan"},
		LanguageScores:    map[string]float64{"eng": 5, "hin": 0, "pan": 95},
		OCRMethod:         ocr.MethodTesseract,
		TextLength:        10,
		Text:              "ਸਕੈਨ ਕੀਤਾ ਪੰਨਾ ਪਾਠ",
	}

	result, err := fx.proc.Process(context.Background(), &Job{
		JobID: "job-1",
		Files: []InputFile{{Filename: "mixed.pdf", Data: []byte("%PDF-1.4")}},
	})

	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalPages)

	assert.Equal(t, 1, result.PageProcessingInfo[0].PageNumber)
	assert.Equal(t, ocr.MethodTextExtraction, result.PageProcessingInfo[0].OCRMethod)

	assert.Equal(t, 2, result.PageProcessingInfo[1].PageNumber)
	assert.Equal(t, ocr.MethodTesseract, result.PageProcessingInfo[1].OCRMethod)
	assert.Contains(t, result.PageProcessingInfo[1].DetectedLanguages, "pan")

	// Only the page without a text layer went through OCR.
	require.Len(t, fx.pages.calls, 1)
	assert.Equal(t, 2, fx.pages.calls[0].sourcePage)

	assert.Contains(t, result.LanguageUsedForOCR, "eng")
}

func TestProcessCorruptPDFIsFatal(t *testing.T) {
	fx := newDocFixture(t)
	fx.reader.pageCountErr = errors.New("xref table broken")

	result, err := fx.proc.Process(context.Background(), &Job{
		JobID: "job-1",
		Files: []InputFile{{Filename: "broken.pdf", Data: []byte("not a pdf")}},
	})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrorDocumentExtract))
}

func TestProcessLanguageOverride(t *testing.T) {
	fx := newDocFixture(t)

	result, err := fx.proc.Process(context.Background(), &Job{
		JobID:            "job-1",
		Files:            []InputFile{{Filename: "letter.docx", Data: buildTestDocx(t, "English body text for the record.")}},
		LanguageOverride: "pan+eng",
	})

	require.NoError(t, err)
	assert.Equal(t, "pan+eng", result.LanguageUsedForOCR)
}

func TestProcessOrdinalsSpanFiles(t *testing.T) {
	fx := newDocFixture(t)
	fx.reader.pageCount = 2

	result, err := fx.proc.Process(context.Background(), &Job{
		JobID: "job-1",
		Files: []InputFile{
			{Filename: "scan.pdf", Data: []byte("%PDF-1.4")},
			{Filename: "photo.png", Data: []byte("png-bytes")},
			{Filename: "letter.docx", Data: buildTestDocx(t, "Trailing docx paragraph.")},
		},
	})

	require.NoError(t, err)
	require.Equal(t, 4, result.TotalPages)
	for i, info := range result.PageProcessingInfo {
		assert.Equal(t, i+1, info.PageNumber)
	}
	// Image was handed over as ordinal 3, after the two PDF pages.
	assert.Equal(t, pageCall{ordinal: 3, image: true}, fx.pages.calls[2])
}

func TestProcessWhitespaceCollapsedInAggregate(t *testing.T) {
	fx := newDocFixture(t)
	fx.reader.pageCount = 1
	fx.reader.pageTexts[1] = "first\nline   with \t spacing"

	result, err := fx.proc.Process(context.Background(), &Job{
		JobID: "job-1",
		Files: []InputFile{{Filename: "doc.pdf", Data: []byte("%PDF-1.4")}},
	})

	require.NoError(t, err)
	assert.Equal(t, "first line with spacing", result.ExtractedText)
}

func TestProcessEmptyOutputDefaults(t *testing.T) {
	fx := newDocFixture(t)
	fx.reader.pageCount = 1 // page has no text layer; stub OCR returns empty

	result, err := fx.proc.Process(context.Background(), &Job{
		JobID: "job-1",
		Files: []InputFile{{Filename: "blank.pdf", Data: []byte("%PDF-1.4")}},
	})

	require.NoError(t, err)
	assert.Empty(t, result.ExtractedText)
	assert.Equal(t, []string{"eng"}, result.DetectedLanguages)
	assert.Equal(t, 70.0, result.ConfidenceScore)
	assert.Equal(t, 1, result.TotalPages)
}

func TestProcessConfidenceIsMaxScoreRounded(t *testing.T) {
	fx := newDocFixture(t)

	result, err := fx.proc.Process(context.Background(), &Job{
		JobID: "job-1",
		Files: []InputFile{{Filename: "letter.docx", Data: buildTestDocx(t, "Nothing but English words in this one")}},
	})

	require.NoError(t, err)
	assert.Equal(t, 100.0, result.ConfidenceScore)
	assert.Equal(t, result.ConfidenceScore, float64(int(result.ConfidenceScore*10))/10)
}

func TestProcessRemovesFileArtifacts(t *testing.T) {
	fx := newDocFixture(t)
	fx.reader.pageCount = 1

	_, err := fx.proc.Process(context.Background(), &Job{
		JobID: "job-1",
		Files: []InputFile{
			{Filename: "doc.pdf", Data: []byte("%PDF-1.4")},
			{Filename: "photo.jpg", Data: []byte("jpg-bytes")},
		},
	})
	require.NoError(t, err)

	entries, err := os.ReadDir(fx.tmpDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProcessCancelledContextAborts(t *testing.T) {
	fx := newDocFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fx.proc.Process(ctx, &Job{
		JobID: "job-1",
		Files: []InputFile{{Filename: "doc.pdf", Data: []byte("%PDF-1.4")}},
	})

	assert.ErrorIs(t, err, context.Canceled)
}
