// Package config provides configuration types and helpers for sensorpress.
package config

import "fmt"

// CLIConfig holds the application-wide configuration loaded by Viper, the
// way the teacher CLI's Config loads format/verbosity. Engine parameters
// live in EngineConfig below; this struct covers CLI-level concerns.
type CLIConfig struct {
	Format  string `mapstructure:"format"`
	Verbose bool   `mapstructure:"verbose"`
	Engine  EngineConfig `mapstructure:"engine"`
}

// EngineConfig holds the tunable parameters for a compression engine
// instance. Every field has a documented default; the zero value of
// EngineConfig is not valid on its own, use Defaults() as a starting point.
type EngineConfig struct {
	// PThreshold is the acceptance threshold a candidate template's
	// similarity score must strictly exceed for the matcher to accept it.
	PThreshold float64 `mapstructure:"p_threshold"`

	// MaxTemplates is the template store capacity (Cmax).
	MaxTemplates int `mapstructure:"max_templates"`

	// MinValues is the minimum vector length the similarity metric will
	// score; shorter vectors score 0.
	MinValues int `mapstructure:"min_values"`

	// CleanInterval is the number of processed samples between automatic
	// store prunes.
	CleanInterval int `mapstructure:"clean_interval"`

	// BlockSize is the initial/fixed block length N.
	BlockSize int `mapstructure:"block_size"`

	// AdaptiveBlockSize enables the block-size controller (C6).
	AdaptiveBlockSize bool `mapstructure:"adaptive_block_size"`

	// MinBlockSize and MaxBlockSize bound N when adaptive.
	MinBlockSize int `mapstructure:"min_block_size"`
	MaxBlockSize int `mapstructure:"max_block_size"`

	// Kmax is the maximum number of block-size changes per run.
	Kmax int `mapstructure:"kmax"`

	// Rmin is the minimum number of trials since the last change before
	// another change is considered.
	Rmin int `mapstructure:"rmin"`

	// Wc is the number of consecutive blocks at the current N required
	// before a new adjustment is considered.
	Wc int `mapstructure:"wc"`

	// ConfidenceLevel (gamma) determines z* = Phi^-1((1+gamma)/2).
	ConfidenceLevel float64 `mapstructure:"confidence_level"`

	// SimilarityFactor (k) scales the mean relative difference in the
	// similarity metric.
	SimilarityFactor float64 `mapstructure:"similarity_factor"`
}

// Defaults returns an EngineConfig populated with the spec's documented
// default values.
func Defaults() EngineConfig {
	return EngineConfig{
		PThreshold:        0.7,
		MaxTemplates:      100,
		MinValues:         1,
		CleanInterval:     1000,
		BlockSize:         8,
		AdaptiveBlockSize: false,
		MinBlockSize:      4,
		MaxBlockSize:      16,
		Kmax:              5,
		Rmin:              30,
		Wc:                2,
		ConfidenceLevel:   0.95,
		SimilarityFactor:  20,
	}
}

// Validate reports ErrInvalidConfig (wrapped with detail) if the
// configuration cannot be used to construct an engine.
func (c EngineConfig) Validate() error {
	switch {
	case c.MinBlockSize <= 0:
		return fmt.Errorf("%w: min_block_size must be positive, got %d", ErrInvalidConfig, c.MinBlockSize)
	case c.MaxBlockSize < c.MinBlockSize:
		return fmt.Errorf("%w: max_block_size (%d) must be >= min_block_size (%d)", ErrInvalidConfig, c.MaxBlockSize, c.MinBlockSize)
	case c.BlockSize < c.MinBlockSize || c.BlockSize > c.MaxBlockSize:
		return fmt.Errorf("%w: block_size (%d) must be within [min_block_size, max_block_size] ([%d, %d])", ErrInvalidConfig, c.BlockSize, c.MinBlockSize, c.MaxBlockSize)
	case c.PThreshold < 0 || c.PThreshold > 1:
		return fmt.Errorf("%w: p_threshold must be in [0,1], got %v", ErrInvalidConfig, c.PThreshold)
	case c.MaxTemplates <= 0:
		return fmt.Errorf("%w: max_templates must be positive, got %d", ErrInvalidConfig, c.MaxTemplates)
	case c.MinValues < 0:
		return fmt.Errorf("%w: min_values must be non-negative, got %d", ErrInvalidConfig, c.MinValues)
	case c.Kmax < 0:
		return fmt.Errorf("%w: kmax must be non-negative, got %d", ErrInvalidConfig, c.Kmax)
	case c.Rmin < 0:
		return fmt.Errorf("%w: rmin must be non-negative, got %d", ErrInvalidConfig, c.Rmin)
	case c.Wc <= 0:
		return fmt.Errorf("%w: wc must be positive, got %d", ErrInvalidConfig, c.Wc)
	case c.ConfidenceLevel <= 0 || c.ConfidenceLevel >= 1:
		return fmt.Errorf("%w: confidence_level must be in (0,1), got %v", ErrInvalidConfig, c.ConfidenceLevel)
	case c.SimilarityFactor < 0:
		return fmt.Errorf("%w: similarity_factor must be non-negative, got %v", ErrInvalidConfig, c.SimilarityFactor)
	}
	return nil
}
