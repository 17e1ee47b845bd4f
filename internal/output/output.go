// Package output provides formatted output rendering for compressed
// records, their decoded sample streams, and store listings. It
// supports text, JSON, and table formats.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/bimmerbailey/sensorpress/internal/decode"
	"github.com/bimmerbailey/sensorpress/internal/record"
	"github.com/bimmerbailey/sensorpress/internal/store"
)

// Format represents an output format type.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

// ParseFormat converts a string to a Format, defaulting to text.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "table":
		return FormatTable
	default:
		return FormatText
	}
}

// Writer handles writing formatted output.
type Writer struct {
	w      io.Writer
	format Format
}

// New creates a new output Writer.
func New(w io.Writer, format Format) *Writer {
	return &Writer{w: w, format: format}
}

// WriteJSON outputs any value as indented JSON.
func (wr *Writer) WriteJSON(v interface{}) error {
	enc := json.NewEncoder(wr.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteRecordSummary renders a compressed record's metadata: device,
// compression ratio, hit ratio, average cer/similarity, template and
// value counts, and time range when present.
func (wr *Writer) WriteRecordSummary(rec *record.Record) error {
	switch wr.format {
	case FormatJSON:
		return wr.WriteJSON(rec)
	case FormatTable:
		return wr.writeSummaryTable(rec)
	default:
		return wr.writeSummaryText(rec)
	}
}

func (wr *Writer) writeSummaryText(rec *record.Record) error {
	m := rec.Metadata
	fmt.Fprintf(wr.w, "device: %s\n", rec.DeviceID)
	fmt.Fprintf(wr.w, "templates: %d\n", m.NumTemplates)
	fmt.Fprintf(wr.w, "values: %d\n", m.TotalValues)
	fmt.Fprintf(wr.w, "hit ratio: %.4f\n", m.HitRatio)
	fmt.Fprintf(wr.w, "compression ratio: %.2fx\n", m.CompressionRatio)
	fmt.Fprintf(wr.w, "avg cer: %.6f\n", m.AvgCER)
	fmt.Fprintf(wr.w, "avg similarity: %.4f\n", m.AvgSimilarity)
	if rec.TimeRange != nil {
		fmt.Fprintf(wr.w, "time range: %s to %s\n",
			rec.TimeRange.Start.Format("2006-01-02T15:04:05Z"),
			rec.TimeRange.End.Format("2006-01-02T15:04:05Z"))
	}
	return nil
}

func (wr *Writer) writeSummaryTable(rec *record.Record) error {
	tw := tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tVALUE")
	fmt.Fprintln(tw, "-----\t-----")
	fmt.Fprintf(tw, "device\t%s\n", rec.DeviceID)
	fmt.Fprintf(tw, "templates\t%d\n", rec.Metadata.NumTemplates)
	fmt.Fprintf(tw, "values\t%d\n", rec.Metadata.TotalValues)
	fmt.Fprintf(tw, "hit ratio\t%.4f\n", rec.Metadata.HitRatio)
	fmt.Fprintf(tw, "compression ratio\t%.2fx\n", rec.Metadata.CompressionRatio)
	fmt.Fprintf(tw, "avg cer\t%.6f\n", rec.Metadata.AvgCER)
	return tw.Flush()
}

// WriteListEntries renders a store listing (the --list flag).
func (wr *Writer) WriteListEntries(entries []store.ListEntry) error {
	switch wr.format {
	case FormatJSON:
		return wr.WriteJSON(entries)
	case FormatTable:
		return wr.writeListTable(entries)
	default:
		return wr.writeListText(entries)
	}
}

func (wr *Writer) writeListText(entries []store.ListEntry) error {
	for _, e := range entries {
		fmt.Fprintf(wr.w, "%s\t%s\ttemplates=%d\tratio=%.2fx\n", e.ID, e.DeviceID, e.NumTemplates, e.CompressionRatio)
	}
	return nil
}

func (wr *Writer) writeListTable(entries []store.ListEntry) error {
	tw := tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDEVICE\tTEMPLATES\tRATIO")
	fmt.Fprintln(tw, "--\t------\t---------\t-----")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2fx\n", e.ID, e.DeviceID, e.NumTemplates, e.CompressionRatio)
	}
	return tw.Flush()
}

// WriteStreamRows renders the encoded stream, one row per block, with
// rows flagged dangling (a Reference whose template_id is absent from
// rec.Templates) or high-cer colored in the text and table formats.
func (wr *Writer) WriteStreamRows(rec *record.Record, mode ColorMode) error {
	switch wr.format {
	case FormatJSON:
		return wr.WriteJSON(rec.EncodedStream)
	case FormatTable:
		return wr.writeStreamTable(rec, mode)
	default:
		return wr.writeStreamText(rec, mode)
	}
}

func isDangling(rec *record.Record, b record.Block) bool {
	if b.IsTemplate() {
		return false
	}
	_, ok := rec.Templates.Get(b.TemplateID)
	return !ok
}

func (wr *Writer) writeStreamText(rec *record.Record, mode ColorMode) error {
	colorize := shouldColorize(mode, wr.w)
	for i, b := range rec.EncodedStream {
		kind := "reference"
		if b.IsTemplate() {
			kind = "template"
		}
		line := fmt.Sprintf("block=%d kind=%s template_id=%d similarity=%.4f cer=%.6f length=%d", i, kind, b.TemplateID, b.SimilarityScore, b.CER, b.Length)
		if colorize {
			line = colorizeRow(line, isDangling(rec, b), b.CER)
		}
		fmt.Fprintln(wr.w, line)
	}
	return nil
}

func (wr *Writer) writeStreamTable(rec *record.Record, mode ColorMode) error {
	colorize := shouldColorize(mode, wr.w)
	tw := tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BLOCK\tKIND\tTEMPLATE_ID\tSIMILARITY\tCER\tLENGTH")
	fmt.Fprintln(tw, "-----\t----\t-----------\t----------\t---\t------")
	for i, b := range rec.EncodedStream {
		kind := "reference"
		if b.IsTemplate() {
			kind = "template"
		}
		row := fmt.Sprintf("%d\t%s\t%d\t%.4f\t%.6f\t%d", i, kind, b.TemplateID, b.SimilarityScore, b.CER, b.Length)
		if colorize {
			row = colorizeRow(row, isDangling(rec, b), b.CER)
		}
		fmt.Fprintln(tw, row)
	}
	return tw.Flush()
}

// WriteDecodedPoints renders a reconstructed sample sequence.
func (wr *Writer) WriteDecodedPoints(points []decode.Point) error {
	switch wr.format {
	case FormatJSON:
		return wr.WriteJSON(points)
	case FormatTable:
		return wr.writeDecodedTable(points)
	default:
		return wr.writeDecodedText(points)
	}
}

func (wr *Writer) writeDecodedText(points []decode.Point) error {
	for _, p := range points {
		ts := ""
		if p.Timestamp != nil {
			ts = p.Timestamp.Format("2006-01-02T15:04:05Z")
		}
		fmt.Fprintf(wr.w, "%s\t%v\n", ts, p.Value)
	}
	return nil
}

func (wr *Writer) writeDecodedTable(points []decode.Point) error {
	tw := tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIMESTAMP\tVALUE")
	fmt.Fprintln(tw, "---------\t-----")
	for _, p := range points {
		ts := ""
		if p.Timestamp != nil {
			ts = p.Timestamp.Format("15:04:05")
		}
		fmt.Fprintf(tw, "%s\t%v\n", ts, p.Value)
	}
	return tw.Flush()
}
