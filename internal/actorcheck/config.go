package actorcheck

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/menchan-Rub/SwiftLight-sub000/internal/errors"
)

// DeadlockWeights are the severity-model weights. They are heuristic policy:
// the defaults make a two-actor fully synchronous cycle score above the
// reporting cutoff while long mostly-asynchronous rings stay below it.
type DeadlockWeights struct {
	// CycleLength weights the inverse cycle length 1/(len-1).
	CycleLength float64 `json:"cycle_length"`
	// SyncFraction weights the fraction of synchronous (ask) edges.
	SyncFraction float64 `json:"sync_fraction"`
	// SharedResources weights the capped count of shared-resource fields
	// among cycle members.
	SharedResources float64 `json:"shared_resources"`
	// CriticalFraction weights the fraction of cycle members flagged
	// critical.
	CriticalFraction float64 `json:"critical_fraction"`
}

// Config carries every policy parameter of the verifier. Zero values are not
// usable; start from DefaultConfig.
type Config struct {
	// MaxHierarchyDepth is the supervision/inheritance chain length above
	// which a deep-hierarchy advisory is produced.
	MaxHierarchyDepth int `json:"max_hierarchy_depth"`

	// MergeSimilarityThreshold is the access-frequency similarity a
	// singleton isolation group must exceed to be merged into a larger one.
	MergeSimilarityThreshold float64 `json:"merge_similarity_threshold"`

	// DeadlockCutoff is the severity above which a communication cycle is
	// surfaced as a deadlock-risk advisory. Cycles at or below it remain
	// info-level candidates.
	DeadlockCutoff float64 `json:"deadlock_cutoff"`

	Weights DeadlockWeights `json:"deadlock_weights"`

	// MaxErrors and MaxWarnings bound how many diagnostics are kept.
	MaxErrors   int `json:"max_errors"`
	MaxWarnings int `json:"max_warnings"`
}

// DefaultConfig returns the shipped policy defaults.
func DefaultConfig() Config {
	return Config{
		MaxHierarchyDepth:        5,
		MergeSimilarityThreshold: 0.5,
		DeadlockCutoff:           0.70,
		Weights: DeadlockWeights{
			CycleLength:      0.35,
			SyncFraction:     0.40,
			SharedResources:  0.10,
			CriticalFraction: 0.15,
		},
		MaxErrors:   100,
		MaxWarnings: 1000,
	}
}

// LoadConfig reads policy overrides from a JSON file on top of the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks the configuration for values the analyses cannot work
// with.
func (c Config) Validate() error {
	if c.MaxHierarchyDepth < 1 {
		return errors.InvalidConfigValue("max_hierarchy_depth", c.MaxHierarchyDepth, "must be at least 1")
	}

	if c.MergeSimilarityThreshold < 0 || c.MergeSimilarityThreshold > 1 {
		return errors.InvalidConfigValue("merge_similarity_threshold", c.MergeSimilarityThreshold, "must be in [0,1]")
	}

	if c.DeadlockCutoff < 0 || c.DeadlockCutoff > 1 {
		return errors.InvalidConfigValue("deadlock_cutoff", c.DeadlockCutoff, "must be in [0,1]")
	}

	w := c.Weights
	for _, pair := range []struct {
		name  string
		value float64
	}{
		{"deadlock_weights.cycle_length", w.CycleLength},
		{"deadlock_weights.sync_fraction", w.SyncFraction},
		{"deadlock_weights.shared_resources", w.SharedResources},
		{"deadlock_weights.critical_fraction", w.CriticalFraction},
	} {
		if pair.value < 0 || pair.value > 1 {
			return errors.InvalidConfigValue(pair.name, pair.value, "must be in [0,1]")
		}
	}

	sum := w.CycleLength + w.SyncFraction + w.SharedResources + w.CriticalFraction
	if math.Abs(sum-1.0) > 1e-9 {
		return errors.InvalidConfigValue("deadlock_weights", sum, "weights must sum to 1")
	}

	if c.MaxErrors < 1 {
		return errors.InvalidConfigValue("max_errors", c.MaxErrors, "must be at least 1")
	}

	if c.MaxWarnings < 0 {
		return errors.InvalidConfigValue("max_warnings", c.MaxWarnings, "must not be negative")
	}

	return nil
}
