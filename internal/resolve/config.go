package resolve

import "trapper/internal/score"

// Config carries the decision thresholds. The defaults are the empirically
// tuned values inherited from the system this engine replaces; they are
// configuration, not constants, because nobody has demonstrated they are
// optimal.
type Config struct {
	// AutoMatchThreshold is the minimum total score for an unattended link.
	AutoMatchThreshold float64
	// ReviewFloor is the minimum total score to surface a candidate at all;
	// below it the input is a fresh entity.
	ReviewFloor float64
	// Scoring configures the candidate scorer.
	Scoring score.Config
}

func DefaultConfig() Config {
	return Config{
		AutoMatchThreshold: 0.95,
		ReviewFloor:        0.50,
		Scoring:            score.DefaultConfig(),
	}
}
