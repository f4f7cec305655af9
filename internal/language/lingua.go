package language

import (
	"github.com/pemistahl/lingua-go"
)

// LinguaDetector adapts the lingua statistical detector to the Detector
// interface, restricted to the three supported languages.
type LinguaDetector struct {
	detector lingua.LanguageDetector
}

// NewLinguaDetector builds a detector with English, Hindi and Punjabi models.
func NewLinguaDetector() *LinguaDetector {
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(lingua.English, lingua.Hindi, lingua.Punjabi).
		Build()
	return &LinguaDetector{detector: detector}
}

// Detect returns the language code for the given text, or ok=false when the
// detector cannot reach a decision.
func (d *LinguaDetector) Detect(text string) (string, bool) {
	if text == "" {
		return "", false
	}

	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return "", false
	}

	switch lang {
	case lingua.English:
		return English, true
	case lingua.Hindi:
		return Hindi, true
	case lingua.Punjabi:
		return Punjabi, true
	default:
		return "", false
	}
}
