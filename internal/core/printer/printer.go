// Package printer emits the user-visible status lines shared by all
// commands: a right-aligned verb followed by a message.
package printer

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

// Printer is the narrow capability commands use for status output, so the
// core stays testable with an in-memory fake.
type Printer interface {
	Status(verb, msg string)
	Warn(msg string)
	Note(msg string)
	Deprecated(msg string)
}

// Console writes colored status lines in the `{verb:>12} {message}` layout.
type Console struct {
	Out io.Writer
	Err io.Writer
}

// NewConsole creates a Console bound to stdout/stderr.
func NewConsole() *Console {
	return &Console{Out: os.Stdout, Err: os.Stderr}
}

var (
	statusColor     = color.New(color.FgGreen, color.Bold)
	warnColor       = color.New(color.FgYellow, color.Bold)
	noteColor       = color.New(color.FgCyan, color.Bold)
	deprecatedColor = color.New(color.FgRed, color.Bold)
)

// Status prints an action line, e.g. `      Adding serde v1.0 to dependencies`.
func (c *Console) Status(verb, msg string) {
	_, _ = fmt.Fprintf(c.Out, "%s %s\n", statusColor.Sprintf("%12s", verb), msg)
}

// Warn prints a warning line. Warnings never fail the command.
func (c *Console) Warn(msg string) {
	_, _ = fmt.Fprintf(c.Err, "%s %s\n", warnColor.Sprintf("%12s", "Warning"), msg)
}

// Note prints an informational line.
func (c *Console) Note(msg string) {
	_, _ = fmt.Fprintf(c.Err, "%s %s\n", noteColor.Sprintf("%12s", "Note"), msg)
}

// Deprecated prints a deprecation line.
func (c *Console) Deprecated(msg string) {
	_, _ = fmt.Fprintf(c.Err, "%s %s\n", deprecatedColor.Sprintf("%12s", "Deprecated"), msg)
}

// Recorder captures status lines for tests.
type Recorder struct {
	mu    sync.Mutex
	Lines []string
}

func (r *Recorder) record(verb, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Lines = append(r.Lines, fmt.Sprintf("%s %s", verb, msg))
}

func (r *Recorder) Status(verb, msg string) { r.record(verb, msg) }
func (r *Recorder) Warn(msg string)         { r.record("Warning", msg) }
func (r *Recorder) Note(msg string)         { r.record("Note", msg) }
func (r *Recorder) Deprecated(msg string)   { r.record("Deprecated", msg) }
