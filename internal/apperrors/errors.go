/**
 * Custom error types for the extraction worker.
 *
 * Recovery decisions in the pipeline hang off the error code: file-type
 * violations and whole-document open failures propagate to the caller,
 * everything else is absorbed into degraded per-page results.
 */

package apperrors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode enum for structured error handling.
type ErrorCode string

const (
	// Fatal for the whole request; caller contract violation.
	ErrorUnsupportedFileType ErrorCode = "UNSUPPORTED_FILE_TYPE"

	// Fatal for the file; the document could not be opened or rasterized.
	ErrorDocumentExtract ErrorCode = "DOCUMENT_EXTRACT_FAILED"

	// Recovered locally; the page degrades to an empty default result.
	ErrorPageProcessing ErrorCode = "PAGE_PROCESSING_FAILED"

	// Recovered locally; the single-language engine failed and the page
	// falls back to the raw engine.
	ErrorEngineExecution ErrorCode = "ENGINE_EXECUTION_FAILED"

	// Recovered locally; the statistical detector failed and inference
	// continues on script distribution alone.
	ErrorDetection ErrorCode = "DETECTION_FAILED"
)

// ProcessingError represents a structured processing error.
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	JobID     string
	Timestamp time.Time
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// Factory functions for common errors

func NewUnsupportedFileTypeError(jobID, extension string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorUnsupportedFileType,
		Message:   fmt.Sprintf("unsupported file type: %s", extension),
		JobID:     jobID,
		Timestamp: time.Now(),
	}
}

func NewDocumentExtractError(jobID, filename string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorDocumentExtract,
		Message:   fmt.Sprintf("failed to open document: %s", filename),
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewPageProcessingError(jobID string, page int, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorPageProcessing,
		Message:   fmt.Sprintf("page %d processing failed", page),
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewEngineExecutionError(jobID, engine string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorEngineExecution,
		Message:   fmt.Sprintf("OCR engine %s failed", engine),
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewDetectionError(cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorDetection,
		Message:   "statistical language detection failed",
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// CodeOf returns the error code carried by err, or empty when err is not a
// ProcessingError.
func CodeOf(err error) ErrorCode {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsCode reports whether err carries the given error code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
