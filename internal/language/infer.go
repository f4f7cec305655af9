// Package language converts script distributions into ranked language codes
// with confidence scores, optionally boosted by a statistical detector.
package language

import (
	"strings"

	"github.com/lipiscan/extract-worker/internal/config"
	"github.com/lipiscan/extract-worker/internal/script"
)

// Supported language codes, in tie-break order.
const (
	English = "eng"
	Hindi   = "hin"
	Punjabi = "pan"
)

var supported = []string{English, Hindi, Punjabi}

// scriptToLanguage is the fixed correspondence between scripts and languages.
var scriptToLanguage = map[string]string{
	script.Latin:      English,
	script.Devanagari: Hindi,
	script.Gurmukhi:   Punjabi,
}

// Detector is a statistical language detector. Implementations report the
// detected language code and whether detection succeeded; failures are
// expressed as ok=false and never abort inference.
type Detector interface {
	Detect(text string) (code string, ok bool)
}

// Inferrer derives language codes and confidence scores from text samples.
// Safe for concurrent use; all state is immutable after construction.
type Inferrer struct {
	cfg      *config.Config
	detector Detector
}

// NewInferrer creates an Inferrer. detector may be nil, in which case the
// statistical boost step is skipped entirely.
func NewInferrer(cfg *config.Config, detector Detector) *Inferrer {
	return &Inferrer{cfg: cfg, detector: detector}
}

// Infer returns the detected languages (never empty, primary first) and the
// per-language confidence scores in [0,100]. Scores are independent signals
// and do not sum to 100. The function is pure given a deterministic detector.
func (inf *Inferrer) Infer(text string) ([]string, map[string]float64) {
	trimmed := strings.TrimSpace(text)
	if len([]rune(trimmed)) < inf.cfg.MinSampleLength {
		// Too small a sample for reliable detection.
		return []string{English}, scores(60, 0, 0)
	}

	normalized := script.Normalize(trimmed)
	dist := script.Analyze(normalized)

	langScores := scores(0, 0, 0)
	for sc, lang := range scriptToLanguage {
		langScores[lang] = dist[sc]
	}

	if inf.detector != nil && !inf.anyScoreReaches(langScores, inf.cfg.DetectorTrigger) {
		// Script counting was inconclusive; let the statistical detector
		// weigh in on a sample restricted to the supported scripts.
		if code, ok := inf.detector.Detect(script.Strip(normalized)); ok && isSupported(code) {
			if langScores[code] < inf.cfg.DetectorBoostScore {
				langScores[code] = inf.cfg.DetectorBoostScore
			}
		}
	}

	detected := inf.selectLanguages(langScores)
	if len(detected) == 0 {
		return []string{English}, scores(50, 0, 0)
	}
	return detected, langScores
}

// selectLanguages picks the primary language (highest score, if it reaches
// the primary threshold) followed by every other language at or above the
// secondary threshold.
func (inf *Inferrer) selectLanguages(langScores map[string]float64) []string {
	primary := ""
	best := -1.0
	for _, lang := range supported {
		if langScores[lang] > best {
			primary = lang
			best = langScores[lang]
		}
	}

	var detected []string
	if best >= inf.cfg.PrimaryMinScore {
		detected = append(detected, primary)
	} else {
		return nil
	}

	for _, lang := range supported {
		if lang == primary {
			continue
		}
		if langScores[lang] >= inf.cfg.SecondaryMinScore {
			detected = append(detected, lang)
		}
	}
	return detected
}

func (inf *Inferrer) anyScoreReaches(langScores map[string]float64, threshold float64) bool {
	for _, s := range langScores {
		if s >= threshold {
			return true
		}
	}
	return false
}

func isSupported(code string) bool {
	for _, lang := range supported {
		if lang == code {
			return true
		}
	}
	return false
}

func scores(eng, hin, pan float64) map[string]float64 {
	return map[string]float64{English: eng, Hindi: hin, Punjabi: pan}
}
