package ocr

// Strategy identifies which OCR path to take for a page.
type Strategy string

const (
	// StrategySingle is the single-language searchable-PDF path. Slower
	// per page but cleaner text for pure-English content.
	StrategySingle Strategy = "single"

	// StrategyMulti is the raw image-to-text path with combined language
	// hints. Required whenever non-Latin scripts are present, since the
	// searchable-PDF engine takes one language per invocation.
	StrategyMulti Strategy = "multi"
)

// Selector decides the OCR strategy from inferred languages and scores.
type Selector struct {
	englishScore  float64 // eng must exceed this for the single path
	otherMaxScore float64 // while every other language stays below this
}

// NewSelector creates a Selector with the given thresholds.
func NewSelector(englishScore, otherMaxScore float64) *Selector {
	return &Selector{englishScore: englishScore, otherMaxScore: otherMaxScore}
}

// Select returns StrategySingle when the page is English-only or strongly
// English-dominant, StrategyMulti otherwise.
func (s *Selector) Select(languages []string, scores map[string]float64) Strategy {
	if len(languages) == 1 && languages[0] == "eng" {
		return StrategySingle
	}

	if scores["eng"] > s.englishScore {
		dominant := true
		for lang, score := range scores {
			if lang == "eng" {
				continue
			}
			if score >= s.otherMaxScore {
				dominant = false
				break
			}
		}
		if dominant {
			return StrategySingle
		}
	}

	return StrategyMulti
}
