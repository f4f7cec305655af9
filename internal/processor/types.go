package processor

import "context"

// InputFile is one uploaded file of a job.
type InputFile struct {
	Filename string `json:"filename"`
	Data     []byte `json:"data"`
}

// Job is a document extraction request covering one or more files.
type Job struct {
	JobID string      `json:"jobId"`
	Files []InputFile `json:"files"`

	// LanguageOverride, when set by the caller, replaces the detected
	// value of language_used_for_ocr in the response. It does not affect
	// per-page routing.
	LanguageOverride string `json:"languages,omitempty"`
}

// PageResult records how one page's text was obtained. Immutable after
// creation.
type PageResult struct {
	PageNumber        int                `json:"page_number"`
	DetectedLanguages []string           `json:"detected_languages"`
	LanguageScores    map[string]float64 `json:"language_scores"`
	OCRMethod         string             `json:"ocr_method"`
	TextLength        int                `json:"text_length"`

	// Text carries the page's extracted text to document aggregation; it
	// is not part of the per-page response payload.
	Text string `json:"-"`
}

// DocumentResult aggregates all input files into one logical response.
type DocumentResult struct {
	ExtractedText      string             `json:"extracted_text"`
	DetectedLanguages  []string           `json:"detected_languages"`
	LanguageUsedForOCR string             `json:"language_used_for_ocr"`
	ConfidenceScore    float64            `json:"confidence_score"`
	PageProcessingInfo []PageResult       `json:"page_processing_info"`
	TotalPages         int                `json:"total_pages"`
}

// LanguageInferrer derives language codes and confidence scores from text.
type LanguageInferrer interface {
	Infer(text string) ([]string, map[string]float64)
}

// Rasterizer renders one PDF page to an image file.
type Rasterizer interface {
	RasterizePage(ctx context.Context, pdfPath string, page int) (string, error)
}

// PDFReader reads text and structure from PDF files.
type PDFReader interface {
	PageCount(path string) (int, error)
	ExtractPageText(path string, page int) (string, error)
	SplitPage(path string, page int, outPath string) error
}

// PageRunner processes a single page or image into a PageResult. It never
// fails: page-level errors degrade into default results.
type PageRunner interface {
	ProcessPDFPage(ctx context.Context, jobID, pdfPath string, sourcePage, ordinal int) PageResult
	ProcessImage(ctx context.Context, jobID, imagePath string, ordinal int) PageResult
}
