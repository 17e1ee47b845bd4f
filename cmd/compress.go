package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bimmerbailey/sensorpress/internal/config"
	"github.com/bimmerbailey/sensorpress/internal/engine"
	"github.com/bimmerbailey/sensorpress/internal/ingest"
	"github.com/bimmerbailey/sensorpress/internal/output"
	"github.com/bimmerbailey/sensorpress/internal/store"
	"github.com/bimmerbailey/sensorpress/internal/watchconfig"
)

var compressCmd = &cobra.Command{
	Use:   "compress",
	Short: "Compress a device's sensor samples into a template-based record",
	Long: `Fetch samples for a device, run them through the compression engine,
and persist the resulting record.

With --watch, the command stays running and recompresses the same batch
whenever the config file on disk changes, instead of exiting after one run.

Examples:
  sensorpress compress --device-id furnace-1 --limit 500
  sensorpress compress --device-id furnace-1 --limit 2000 --save-result out.json
  sensorpress compress --device-id furnace-1 --limit 500 --watch`,
	RunE: runCompress,
}

func init() {
	compressCmd.Flags().String("device-id", "", "device to compress samples for (generated if omitted)")
	compressCmd.Flags().Int("limit", 500, "number of samples to fetch and compress")
	compressCmd.Flags().String("save-result", "", "also write the compressed record as JSON to this file")
	compressCmd.Flags().Bool("visualize", false, "print a per-block summary of the encoded stream")
	compressCmd.Flags().Bool("watch", false, "keep running, recompressing whenever the config file changes")
	compressCmd.Flags().String("store-dir", "", "directory for the on-disk record store (default $HOME/.sensorpress/records)")

	rootCmd.AddCommand(compressCmd)
}

func runCompress(cmd *cobra.Command, _ []string) error {
	deviceID, _ := cmd.Flags().GetString("device-id")
	limit, _ := cmd.Flags().GetInt("limit")
	saveResult, _ := cmd.Flags().GetString("save-result")
	visualize, _ := cmd.Flags().GetBool("visualize")
	watch, _ := cmd.Flags().GetBool("watch")
	storeDir, _ := cmd.Flags().GetString("store-dir")

	verbose := viper.GetBool("verbose")
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if deviceID == "" {
		deviceID = uuid.New().String()
		logger.Info("no --device-id given, generated one", "device_id", deviceID)
	}

	cfg, err := engineConfigFromViper()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	src := ingest.NewGenerator()
	samples, err := src.Fetch(ctx, deviceID, limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ingest error:", err)
		os.Exit(1)
	}

	st, err := recordStore(storeDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "store error:", err)
		os.Exit(1)
	}

	format := output.ParseFormat(viper.GetString("format"))
	wr := output.New(os.Stdout, format)

	if err := compressOnce(ctx, logger, st, wr, deviceID, cfg, samples, visualize, saveResult); err != nil {
		return err
	}

	if !watch {
		return nil
	}

	reloaded := make(chan config.EngineConfig, 1)
	w, err := watchconfig.New(viper.ConfigFileUsed(),
		func(c config.EngineConfig) {
			select {
			case reloaded <- c:
			default:
			}
		},
		func(err error) {
			logger.Warn("config reload failed", "error", err)
		},
	)
	if err != nil {
		logger.Warn("could not start config watcher, exiting after one run", "error", err)
		return nil
	}

	watchCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan error, 1)
	go func() { done <- w.Run(watchCtx) }()

	for {
		select {
		case <-watchCtx.Done():
			<-done
			return nil
		case c := <-reloaded:
			logger.Info("reloaded engine config, recompressing", "p_threshold", c.PThreshold)
			if err := compressOnce(watchCtx, logger, st, wr, deviceID, c, samples, visualize, saveResult); err != nil {
				logger.Warn("recompress failed", "error", err)
			}
		}
	}
}

// compressOnce runs a single compress-and-persist cycle against samples
// with cfg, rendering the result through wr.
func compressOnce(ctx context.Context, logger *slog.Logger, st store.Store, wr *output.Writer, deviceID string, cfg config.EngineConfig, samples []config.Sample, visualize bool, saveResult string) error {
	eng, err := engine.New(cfg)
	if err != nil {
		return err
	}

	rec, err := eng.Compress(deviceID, samples)
	if err != nil {
		if errors.Is(err, config.ErrEmptyInput) {
			fmt.Fprintln(os.Stderr, "no samples to compress")
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "compress error:", err)
		os.Exit(1)
	}

	id, err := st.Save(ctx, rec)
	if err != nil {
		fmt.Fprintln(os.Stderr, "persistence error:", err)
		os.Exit(1)
	}
	logger.Info("compressed and saved record", "id", id, "device_id", deviceID)

	fmt.Fprintf(os.Stdout, "saved compressed record %s\n", id)
	if err := wr.WriteRecordSummary(rec); err != nil {
		return err
	}
	if visualize {
		if err := wr.WriteStreamRows(rec, output.ColorAuto); err != nil {
			return err
		}
	}

	if saveResult != "" {
		data, err := rec.MarshalJSON()
		if err != nil {
			return fmt.Errorf("marshal record for --save-result: %w", err)
		}
		if err := os.WriteFile(saveResult, data, 0o644); err != nil {
			return fmt.Errorf("write --save-result %q: %w", saveResult, err)
		}
	}

	return nil
}

// recordStore returns the shared on-disk record store, defaulting to
// $HOME/.sensorpress/records when dir is empty.
func recordStore(dir string) (*store.FileStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving default store directory: %w", err)
		}
		dir = home + "/.sensorpress/records"
	}
	return store.NewFileStore(dir)
}
