// Package watchconfig watches the engine config file for changes so a
// long-running compress CLI invocation (--watch) can pick up new
// EngineConfig values without restarting.
package watchconfig

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/bimmerbailey/sensorpress/internal/config"
)

// Watcher watches a config file on disk and delivers freshly-parsed
// EngineConfig values whenever it changes.
type Watcher struct {
	filePath string
	watcher  *fsnotify.Watcher
	onChange func(config.EngineConfig)
	onError  func(error)
}

// New creates a Watcher for filePath. onChange is called with the
// reloaded config after each write; onError is called for watcher or
// reload failures and does not stop the watch loop.
func New(filePath string, onChange func(config.EngineConfig), onError func(error)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watchconfig: create watcher: %w", err)
	}
	if err := fw.Add(filePath); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watchconfig: watch %q: %w", filePath, err)
	}
	return &Watcher{filePath: filePath, watcher: fw, onChange: onChange, onError: onError}, nil
}

// Run blocks, delivering reloaded configs until ctx is cancelled or the
// underlying watcher closes.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watchconfig: events channel closed unexpectedly")
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := w.reload()
			if err != nil {
				if w.onError != nil {
					w.onError(err)
				}
				continue
			}
			if w.onChange != nil {
				w.onChange(cfg)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watchconfig: errors channel closed unexpectedly")
			}
			if w.onError != nil {
				w.onError(fmt.Errorf("watchconfig: %w", err))
			}
		}
	}
}

// reload re-parses the watched file into an EngineConfig layered on top
// of the documented defaults, the same way the root command's initial
// load works.
func (w *Watcher) reload() (config.EngineConfig, error) {
	v := viper.New()
	v.SetConfigFile(w.filePath)

	defaults := config.Defaults()
	v.SetDefault("p_threshold", defaults.PThreshold)
	v.SetDefault("max_templates", defaults.MaxTemplates)
	v.SetDefault("min_values", defaults.MinValues)
	v.SetDefault("clean_interval", defaults.CleanInterval)
	v.SetDefault("block_size", defaults.BlockSize)
	v.SetDefault("adaptive_block_size", defaults.AdaptiveBlockSize)
	v.SetDefault("min_block_size", defaults.MinBlockSize)
	v.SetDefault("max_block_size", defaults.MaxBlockSize)
	v.SetDefault("kmax", defaults.Kmax)
	v.SetDefault("rmin", defaults.Rmin)
	v.SetDefault("wc", defaults.Wc)
	v.SetDefault("confidence_level", defaults.ConfidenceLevel)
	v.SetDefault("similarity_factor", defaults.SimilarityFactor)

	if err := v.ReadInConfig(); err != nil {
		return config.EngineConfig{}, fmt.Errorf("watchconfig: reload %q: %w", w.filePath, err)
	}

	var cfg config.EngineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return config.EngineConfig{}, fmt.Errorf("watchconfig: unmarshal %q: %w", w.filePath, err)
	}
	if err := cfg.Validate(); err != nil {
		return config.EngineConfig{}, err
	}
	return cfg, nil
}
