package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bimmerbailey/sensorpress/internal/config"
	"github.com/bimmerbailey/sensorpress/internal/decode"
	"github.com/bimmerbailey/sensorpress/internal/output"
	"github.com/bimmerbailey/sensorpress/internal/store"
)

var decompressCmd = &cobra.Command{
	Use:   "decompress",
	Short: "Decode one or more compressed records back into sample sequences",
	Long: `Locate one or more compressed records by id or by device (optionally
bounded by a time range) and reconstruct their decoded sample sequences.
--list prints record metadata only, without decoding.

Examples:
  sensorpress decompress --compression-id 3f9e...
  sensorpress decompress --device-id furnace-1 --list
  sensorpress decompress --device-id furnace-1 --start-date 2026-01-01 --end-date 2026-01-02 --output out.json`,
	RunE: runDecompress,
}

func init() {
	decompressCmd.Flags().String("compression-id", "", "id of a single record to decode")
	decompressCmd.Flags().String("device-id", "", "decode every record saved for this device")
	decompressCmd.Flags().String("start-date", "", "only include records whose time range ends at or after this time")
	decompressCmd.Flags().String("end-date", "", "only include records whose time range starts at or before this time")
	decompressCmd.Flags().String("output", "", "write decoded output to this file instead of stdout")
	decompressCmd.Flags().Bool("list", false, "print record metadata only, without decoding")
	decompressCmd.Flags().String("store-dir", "", "directory for the on-disk record store (default $HOME/.sensorpress/records)")

	rootCmd.AddCommand(decompressCmd)
}

func runDecompress(cmd *cobra.Command, _ []string) error {
	compressionID, _ := cmd.Flags().GetString("compression-id")
	deviceID, _ := cmd.Flags().GetString("device-id")
	startStr, _ := cmd.Flags().GetString("start-date")
	endStr, _ := cmd.Flags().GetString("end-date")
	outputPath, _ := cmd.Flags().GetString("output")
	listOnly, _ := cmd.Flags().GetBool("list")
	storeDir, _ := cmd.Flags().GetString("store-dir")

	if compressionID == "" && deviceID == "" {
		return fmt.Errorf("decompress: one of --compression-id or --device-id is required")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := recordStore(storeDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "store error:", err)
		os.Exit(1)
	}

	ids, err := resolveIDs(ctx, st, compressionID, deviceID, startStr, endStr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "lookup error:", err)
		os.Exit(1)
	}
	if len(ids) == 0 {
		fmt.Fprintln(os.Stderr, "no matching records")
		os.Exit(1)
	}

	format := output.ParseFormat(viper.GetString("format"))

	out := os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("opening --output %q: %w", outputPath, err)
		}
		defer f.Close()
		out = f
	}
	wr := output.New(out, format)

	if listOnly {
		entries, err := st.List(ctx, deviceID)
		if err != nil {
			fmt.Fprintln(os.Stderr, "list error:", err)
			os.Exit(1)
		}
		return wr.WriteListEntries(entries)
	}

	for _, id := range ids {
		rec, err := st.Load(ctx, id)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load error:", err)
			os.Exit(1)
		}

		points, err := decode.All(rec)
		if err != nil && !errors.Is(err, config.ErrDanglingReference) {
			fmt.Fprintln(os.Stderr, "decode error:", err)
			os.Exit(1)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "record %s: %v (partial results returned)\n", id, err)
		}

		if err := wr.WriteDecodedPoints(points); err != nil {
			return err
		}
	}

	return nil
}

// resolveIDs returns the record ids to decode: either the single
// --compression-id, or every record for deviceID whose time range
// overlaps [start, end] when those bounds were given.
func resolveIDs(ctx context.Context, st store.Store, compressionID, deviceID, startStr, endStr string) ([]string, error) {
	if compressionID != "" {
		return []string{compressionID}, nil
	}

	entries, err := st.List(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	var start, end time.Time
	var hasStart, hasEnd bool
	if startStr != "" {
		start, err = config.ParseTimeRef(startStr)
		if err != nil {
			return nil, fmt.Errorf("invalid --start-date: %w", err)
		}
		hasStart = true
	}
	if endStr != "" {
		end, err = config.ParseTimeRef(endStr)
		if err != nil {
			return nil, fmt.Errorf("invalid --end-date: %w", err)
		}
		hasEnd = true
	}

	var ids []string
	for _, e := range entries {
		if (hasStart || hasEnd) && !overlaps(e, start, hasStart, end, hasEnd) {
			continue
		}
		ids = append(ids, e.ID)
	}
	return ids, nil
}

func overlaps(e store.ListEntry, start time.Time, hasStart bool, end time.Time, hasEnd bool) bool {
	if e.TimeRange == nil {
		return false
	}
	if hasStart && e.TimeRange.End.Before(start) {
		return false
	}
	if hasEnd && e.TimeRange.Start.After(end) {
		return false
	}
	return true
}
