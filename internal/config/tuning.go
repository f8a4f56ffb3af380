// Package config loads the optional JSON tuning file that overrides the
// calibrated pipeline defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// TuningConfig holds the tunable pipeline parameters. All fields are
// pointers so a partial JSON file only overrides what it names; the Get*
// methods provide the calibrated defaults for anything left nil.
type TuningConfig struct {
	// Spot registration params
	MaxMatchDistanceMM     *float64 `json:"max_match_distance_mm,omitempty"`
	PinholeMaxSeparationMM *float64 `json:"pinhole_max_separation_mm,omitempty"`
	FitDistortion          *bool    `json:"fit_distortion,omitempty"`
	FixedScale             *bool    `json:"fixed_scale,omitempty"`
	FixedRotation          *bool    `json:"fixed_rotation,omitempty"`

	// Circle aggregation params
	MinObservations *int     `json:"min_observations,omitempty"`
	NonMovingStdMM  *float64 `json:"non_moving_std_mm,omitempty"`
	MinRadiusMM     *float64 `json:"min_radius_mm,omitempty"`
	MaxOffsetMM     *float64 `json:"max_offset_mm,omitempty"`

	// Pointing params
	PointingIterations *int `json:"pointing_iterations,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under
// the max file size. Fields omitted from the JSON file retain their
// default values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.MaxMatchDistanceMM != nil && *c.MaxMatchDistanceMM <= 0 {
		return fmt.Errorf("max_match_distance_mm must be positive, got %f", *c.MaxMatchDistanceMM)
	}
	if c.PinholeMaxSeparationMM != nil && *c.PinholeMaxSeparationMM <= 0 {
		return fmt.Errorf("pinhole_max_separation_mm must be positive, got %f", *c.PinholeMaxSeparationMM)
	}
	if c.MinObservations != nil && *c.MinObservations < 3 {
		return fmt.Errorf("min_observations must be at least 3, got %d", *c.MinObservations)
	}
	if c.NonMovingStdMM != nil && *c.NonMovingStdMM < 0 {
		return fmt.Errorf("non_moving_std_mm must be non-negative, got %f", *c.NonMovingStdMM)
	}
	if c.MinRadiusMM != nil && *c.MinRadiusMM < 0 {
		return fmt.Errorf("min_radius_mm must be non-negative, got %f", *c.MinRadiusMM)
	}
	if c.MaxOffsetMM != nil && *c.MaxOffsetMM <= 0 {
		return fmt.Errorf("max_offset_mm must be positive, got %f", *c.MaxOffsetMM)
	}
	if c.PointingIterations != nil && *c.PointingIterations < 1 {
		return fmt.Errorf("pointing_iterations must be at least 1, got %d", *c.PointingIterations)
	}
	return nil
}

// GetMaxMatchDistanceMM returns the max_match_distance_mm value or the default.
func (c *TuningConfig) GetMaxMatchDistanceMM() float64 {
	if c.MaxMatchDistanceMM == nil {
		return 7.0
	}
	return *c.MaxMatchDistanceMM
}

// GetPinholeMaxSeparationMM returns the pinhole_max_separation_mm value or the default.
func (c *TuningConfig) GetPinholeMaxSeparationMM() float64 {
	if c.PinholeMaxSeparationMM == nil {
		return 1.5
	}
	return *c.PinholeMaxSeparationMM
}

// GetFitDistortion returns the fit_distortion value or the default.
func (c *TuningConfig) GetFitDistortion() bool {
	if c.FitDistortion == nil {
		return true
	}
	return *c.FitDistortion
}

// GetFixedScale returns the fixed_scale value or the default.
func (c *TuningConfig) GetFixedScale() bool {
	if c.FixedScale == nil {
		return false
	}
	return *c.FixedScale
}

// GetFixedRotation returns the fixed_rotation value or the default.
func (c *TuningConfig) GetFixedRotation() bool {
	if c.FixedRotation == nil {
		return false
	}
	return *c.FixedRotation
}

// GetMinObservations returns the min_observations value or the default.
func (c *TuningConfig) GetMinObservations() int {
	if c.MinObservations == nil {
		return 6
	}
	return *c.MinObservations
}

// GetNonMovingStdMM returns the non_moving_std_mm value or the default.
func (c *TuningConfig) GetNonMovingStdMM() float64 {
	if c.NonMovingStdMM == nil {
		return 1.0
	}
	return *c.NonMovingStdMM
}

// GetMinRadiusMM returns the min_radius_mm value or the default.
func (c *TuningConfig) GetMinRadiusMM() float64 {
	if c.MinRadiusMM == nil {
		return 0.1
	}
	return *c.MinRadiusMM
}

// GetMaxOffsetMM returns the max_offset_mm value or the default.
func (c *TuningConfig) GetMaxOffsetMM() float64 {
	if c.MaxOffsetMM == nil {
		return 3.0
	}
	return *c.MaxOffsetMM
}

// GetPointingIterations returns the pointing_iterations value or the default.
func (c *TuningConfig) GetPointingIterations() int {
	if c.PointingIterations == nil {
		return 2
	}
	return *c.PointingIterations
}
