package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bimmerbailey/sensorpress/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sensorpress",
	Short: "A lossy, template-based compressor for sensor time series",
	Long: `Sensorpress is a CLI tool for compressing and decompressing
univariate sensor time series using a template-store based matcher and an
adaptive block-size controller.

Examples:
  sensorpress compress --device-id furnace-1 --limit 500
  sensorpress decompress --device-id furnace-1 --list
  sensorpress decompress --compression-id 3f9e... --output samples.json`,
}

// Execute is called by main.main(). It runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.sensorpress.yaml)")
	rootCmd.PersistentFlags().StringP("format", "f", "text", "output format (text, json, table)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	_ = viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error finding home directory:", err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".sensorpress")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SENSORPRESS")
	viper.AutomaticEnv()

	viper.SetDefault("format", "text")
	viper.SetDefault("verbose", false)

	defaults := config.Defaults()
	viper.SetDefault("p_threshold", defaults.PThreshold)
	viper.SetDefault("max_templates", defaults.MaxTemplates)
	viper.SetDefault("min_values", defaults.MinValues)
	viper.SetDefault("clean_interval", defaults.CleanInterval)
	viper.SetDefault("block_size", defaults.BlockSize)
	viper.SetDefault("adaptive_block_size", defaults.AdaptiveBlockSize)
	viper.SetDefault("min_block_size", defaults.MinBlockSize)
	viper.SetDefault("max_block_size", defaults.MaxBlockSize)
	viper.SetDefault("kmax", defaults.Kmax)
	viper.SetDefault("rmin", defaults.Rmin)
	viper.SetDefault("wc", defaults.Wc)
	viper.SetDefault("confidence_level", defaults.ConfidenceLevel)
	viper.SetDefault("similarity_factor", defaults.SimilarityFactor)

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// engineConfigFromViper builds an EngineConfig from the currently bound
// Viper values (flags, env, config file, defaults, in that precedence).
func engineConfigFromViper() (config.EngineConfig, error) {
	var cfg config.EngineConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return config.EngineConfig{}, fmt.Errorf("parsing engine config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.EngineConfig{}, err
	}
	return cfg, nil
}
