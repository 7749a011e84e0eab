// Package output provides line-oriented CLI output helpers for command
// results: status lines with icons, indented code blocks, and JSON
// rendering for --json flags. Interactive progress lives in internal/ui;
// this package is for the short-lived commands.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Writer formats command output.
type Writer struct {
	out io.Writer
}

// New creates a Writer targeting out.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints a message prefixed with an icon. Write errors are ignored;
// there is nowhere to report a broken console.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		fmt.Fprintf(w.out, "%s %s\n", icon, msg)
		return
	}
	fmt.Fprintf(w.out, "   %s\n", msg)
}

// Statusf prints a formatted status message.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success line.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success line.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning line.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf prints a formatted warning line.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error line.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Errorf prints a formatted error line.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Plain prints a line without any icon or indentation.
func (w *Writer) Plain(msg string) {
	fmt.Fprintln(w.out, msg)
}

// Plainf prints a formatted line without any icon.
func (w *Writer) Plainf(format string, args ...any) {
	w.Plain(fmt.Sprintf(format, args...))
}

// Code prints content as an indented block framed by blank lines.
func (w *Writer) Code(content string) {
	fmt.Fprintln(w.out)
	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(w.out, "  %s\n", line)
	}
	fmt.Fprintln(w.out)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	fmt.Fprintln(w.out)
}

// JSON prints v as indented JSON, for --json command modes.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
