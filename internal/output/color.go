package output

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// ColorMode determines when to use colored output.
type ColorMode int

const (
	ColorAuto   ColorMode = iota // Auto-detect based on TTY
	ColorAlways                  // Always use colors
	ColorNever                   // Never use colors
)

// highCER flags a block whose reconstruction error is large enough to
// be worth calling out even though it didn't breach p_threshold.
const highCER = 0.1

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// shouldColorize determines if output should be colorized based on mode and TTY detection.
func shouldColorize(mode ColorMode, w interface{}) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	case ColorAuto:
		// Check if writer is a file and if it's a terminal
		if f, ok := w.(*os.File); ok {
			return isTerminal(f)
		}
		return false
	}
	return false
}

// colorizeRow colors a rendered stream row: red for a dangling
// reference (its template_id is absent from the record's template
// table), yellow for a high-cer block, default otherwise.
func colorizeRow(line string, dangling bool, cer float64) string {
	switch {
	case dangling:
		return colorBold + colorRed + line + colorReset
	case cer >= highCER:
		return colorYellow + line + colorReset
	default:
		return line
	}
}

// FormatError formats an error message for terminal output, bolding
// and reddening it when colorized.
func FormatError(err error, colorize bool) string {
	if err == nil {
		return ""
	}
	if colorize {
		return colorBold + colorRed + err.Error() + colorReset
	}
	return err.Error()
}

// WriteLine writes a single preformatted line, useful for callers that
// have already built a colorized string via colorizeRow.
func (wr *Writer) WriteLine(line string) error {
	_, err := fmt.Fprintln(wr.w, line)
	return err
}
