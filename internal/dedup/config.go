package dedup

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the deduplication engine
type Config struct {
	// SemanticThreshold is the minimum line similarity (0.0-1.0) required to
	// confirm a structural-fingerprint match as a semantic duplicate.
	// The fingerprint match is the query predicate; the threshold is the
	// acceptance test on the matched proposal's full content.
	// Default: 0.8
	SemanticThreshold float64

	// SimilarThreshold is the minimum line similarity (0.0-1.0) for a recent
	// proposal to count as a similar duplicate. The first proposal above the
	// threshold in recency order wins, not the global maximum.
	// Default: 0.7
	SimilarThreshold float64

	// LookbackWindow is how far back the similar check searches.
	// Default: 24 hours (similar proposals lose relevance quickly)
	LookbackWindow time.Duration

	// MaxCandidates is the maximum number of recent proposals the similar
	// check compares against. Limits per-call comparison cost.
	// Default: 10
	MaxCandidates int
}

// DefaultConfig returns the default deduplication configuration
//
// These defaults are chosen to:
// - Require near-identity for semantic duplicates (high threshold)
// - Catch reformulated proposals without flagging unrelated ones (0.7)
// - Keep the similar scan cheap (small recency window, few candidates)
func DefaultConfig() Config {
	return Config{
		SemanticThreshold: 0.8,
		SimilarThreshold:  0.7,
		LookbackWindow:    24 * time.Hour,
		MaxCandidates:     10,
	}
}

// LoadFromEnv returns the default config with environment overrides applied.
// Recognized variables:
//
//	PATCHFLOW_DEDUP_SEMANTIC_THRESHOLD (float, 0.0-1.0)
//	PATCHFLOW_DEDUP_SIMILAR_THRESHOLD  (float, 0.0-1.0)
//	PATCHFLOW_DEDUP_LOOKBACK_HOURS     (int)
//	PATCHFLOW_DEDUP_MAX_CANDIDATES     (int)
func LoadFromEnv() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("PATCHFLOW_DEDUP_SEMANTIC_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.SemanticThreshold = f
		}
	}
	if v := os.Getenv("PATCHFLOW_DEDUP_SIMILAR_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.SimilarThreshold = f
		}
	}
	if v := os.Getenv("PATCHFLOW_DEDUP_LOOKBACK_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.LookbackWindow = time.Duration(n) * time.Hour
		}
	}
	if v := os.Getenv("PATCHFLOW_DEDUP_MAX_CANDIDATES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxCandidates = n
		}
	}

	return cfg
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.SemanticThreshold < 0.0 || c.SemanticThreshold > 1.0 {
		return fmt.Errorf("semantic threshold must be between 0.0 and 1.0 (got %.2f)", c.SemanticThreshold)
	}
	if c.SimilarThreshold < 0.0 || c.SimilarThreshold > 1.0 {
		return fmt.Errorf("similar threshold must be between 0.0 and 1.0 (got %.2f)", c.SimilarThreshold)
	}
	if c.LookbackWindow <= 0 {
		return fmt.Errorf("lookback window must be positive (got %v)", c.LookbackWindow)
	}
	if c.MaxCandidates <= 0 {
		return fmt.Errorf("max candidates must be positive (got %d)", c.MaxCandidates)
	}
	return nil
}
