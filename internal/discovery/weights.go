package discovery

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// Weights defines how one algorithm combines the sub-scores. Values are
// fractions of the composite and sum to 1.0 per algorithm.
type Weights struct {
	Relevance   float64 `json:"relevance"`
	Diversity   float64 `json:"diversity"`
	Originality float64 `json:"originality"`
	Engagement  float64 `json:"engagement"`
	Standing    float64 `json:"standing"`
	Recency     float64 `json:"recency"`
	Clarity     float64 `json:"clarity"`
}

// WeightTables maps each algorithm to its weighting.
type WeightTables map[Algorithm]Weights

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string             `json:"version"`
	Weights map[string]Weights `json:"weights"`
}

// DefaultTables returns the default per-algorithm weight tables.
//
// relevance:      heavy emphasis on query match.
// diversity:      rewards result sets spanning distinct perspectives.
// emergent:       favors new, original content.
// standing_aware: folds in author standing as a soft signal.
func DefaultTables() WeightTables {
	return WeightTables{
		AlgorithmRelevance: {
			Relevance:   0.50,
			Engagement:  0.20,
			Clarity:     0.15,
			Originality: 0.10,
			Recency:     0.05,
		},
		AlgorithmDiversity: {
			Diversity:   0.40,
			Relevance:   0.35,
			Engagement:  0.15,
			Originality: 0.10,
		},
		AlgorithmEmergent: {
			Originality: 0.40,
			Recency:     0.25,
			Relevance:   0.20,
			Clarity:     0.15,
		},
		AlgorithmStandingAware: {
			Relevance:   0.35,
			Standing:    0.30,
			Engagement:  0.20,
			Originality: 0.10,
			Diversity:   0.05,
		},
	}
}

// LoadCalibration loads weight tables from a JSON calibration file.
// If the file doesn't exist or can't be read, returns default tables with an
// error. Partial configurations are merged with defaults for graceful
// degradation.
func LoadCalibration(filePath string) (WeightTables, error) {
	if filePath == "" {
		return DefaultTables(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultTables(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultTables(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	merged := MergeCalibration(DefaultTables(), config.Weights)
	logCalibrationOverrides(DefaultTables(), merged)

	return merged, nil
}

// MergeCalibration merges override weights with default tables. Only
// non-zero values from the override are applied, allowing partial overrides
// in the calibration file. Unknown algorithm names are ignored.
func MergeCalibration(base WeightTables, overrides map[string]Weights) WeightTables {
	if base == nil {
		base = DefaultTables()
	}

	result := make(WeightTables, len(base))
	for algo, w := range base {
		result[algo] = w
	}

	for name, override := range overrides {
		algo, err := ParseAlgorithm(name)
		if err != nil {
			slog.Warn("ignoring calibration for unknown algorithm", "algorithm", name)
			continue
		}
		merged := result[algo]
		if override.Relevance != 0 {
			merged.Relevance = override.Relevance
		}
		if override.Diversity != 0 {
			merged.Diversity = override.Diversity
		}
		if override.Originality != 0 {
			merged.Originality = override.Originality
		}
		if override.Engagement != 0 {
			merged.Engagement = override.Engagement
		}
		if override.Standing != 0 {
			merged.Standing = override.Standing
		}
		if override.Recency != 0 {
			merged.Recency = override.Recency
		}
		if override.Clarity != 0 {
			merged.Clarity = override.Clarity
		}
		result[algo] = merged
	}

	return result
}

// logCalibrationOverrides logs which weights were overridden from defaults.
func logCalibrationOverrides(defaults, loaded WeightTables) {
	var overrides []string
	for algo, def := range defaults {
		got := loaded[algo]
		if got != def {
			overrides = append(overrides, fmt.Sprintf("%s: %+v -> %+v", algo, def, got))
		}
	}

	if len(overrides) > 0 {
		slog.Info("loaded discovery calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded discovery calibration (using all defaults)")
	}
}

// redistribute removes the originality weight and scales the remaining
// weights proportionally so the composite stays comparable when the
// originality signal is unavailable.
func redistribute(w Weights) Weights {
	if w.Originality == 0 {
		return w
	}
	remaining := w.Relevance + w.Diversity + w.Engagement + w.Standing + w.Recency + w.Clarity
	if remaining <= 0 {
		return w
	}
	scale := (remaining + w.Originality) / remaining
	return Weights{
		Relevance:  w.Relevance * scale,
		Diversity:  w.Diversity * scale,
		Engagement: w.Engagement * scale,
		Standing:   w.Standing * scale,
		Recency:    w.Recency * scale,
		Clarity:    w.Clarity * scale,
	}
}
