package research

import "github.com/hoanghai1803/quill/internal/models"

// DifficultyClassifier buckets a keyword gap by how hard it would be to
// rank for. coverage is the share of analyzed competitor articles that
// mention the term, in [0, 1].
type DifficultyClassifier interface {
	Classify(term string, coverage float64) models.Difficulty
}

// ThresholdClassifier maps coverage onto buckets: below Easy is Easy, below
// Medium is Medium, anything else is Hard.
type ThresholdClassifier struct {
	Easy   float64
	Medium float64
}

// DefaultClassifier treats terms most competitors already cover as Hard.
var DefaultClassifier = ThresholdClassifier{Easy: 0.3, Medium: 0.6}

// Classify implements DifficultyClassifier.
func (c ThresholdClassifier) Classify(_ string, coverage float64) models.Difficulty {
	switch {
	case coverage < c.Easy:
		return models.DifficultyEasy
	case coverage < c.Medium:
		return models.DifficultyMedium
	default:
		return models.DifficultyHard
	}
}

// ClassifierFunc adapts a function to DifficultyClassifier.
type ClassifierFunc func(term string, coverage float64) models.Difficulty

// Classify implements DifficultyClassifier.
func (f ClassifierFunc) Classify(term string, coverage float64) models.Difficulty {
	return f(term, coverage)
}

// difficultyWeight discounts harder gaps when they are ranked against
// trends.
func difficultyWeight(d models.Difficulty) float64 {
	switch d {
	case models.DifficultyEasy:
		return 1.0
	case models.DifficultyMedium:
		return 0.75
	default:
		return 0.5
	}
}
