package config

import (
	"errors"
	"testing"
)

func TestDefaults_Valid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("Defaults() failed validation: %v", err)
	}
}

func TestEngineConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *EngineConfig)
		wantErr bool
	}{
		{"defaults ok", func(c *EngineConfig) {}, false},
		{"min > max block size", func(c *EngineConfig) { c.MinBlockSize = 20 }, true},
		{"block size below min", func(c *EngineConfig) { c.BlockSize = 1 }, true},
		{"block size above max", func(c *EngineConfig) { c.BlockSize = 100 }, true},
		{"zero min block size", func(c *EngineConfig) { c.MinBlockSize = 0 }, true},
		{"p_threshold above 1", func(c *EngineConfig) { c.PThreshold = 1.5 }, true},
		{"p_threshold negative", func(c *EngineConfig) { c.PThreshold = -0.1 }, true},
		{"p_threshold == 1 is valid", func(c *EngineConfig) { c.PThreshold = 1.0 }, false},
		{"max_templates zero", func(c *EngineConfig) { c.MaxTemplates = 0 }, true},
		{"negative min_values", func(c *EngineConfig) { c.MinValues = -1 }, true},
		{"negative kmax", func(c *EngineConfig) { c.Kmax = -1 }, true},
		{"negative rmin", func(c *EngineConfig) { c.Rmin = -1 }, true},
		{"zero wc", func(c *EngineConfig) { c.Wc = 0 }, true},
		{"confidence_level zero", func(c *EngineConfig) { c.ConfidenceLevel = 0 }, true},
		{"confidence_level one", func(c *EngineConfig) { c.ConfidenceLevel = 1 }, true},
		{"negative similarity_factor", func(c *EngineConfig) { c.SimilarityFactor = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Defaults()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr && err == nil {
				t.Fatalf("Validate() = nil, want error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("Validate() = %v, want nil", err)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want wrapping ErrInvalidConfig", err)
			}
		})
	}
}
