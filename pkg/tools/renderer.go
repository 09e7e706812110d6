package tools

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Renderer writes severity-tagged lines to the terminal: the
// execution banners spec.md §4.4 step 10 calls for, plan checklists,
// and approval prompts.
type Renderer interface {
	Write(msg string)
	Info(msg string)
	Success(msg string)
	Warn(msg string)
	Error(msg string)
}

// termRenderer is a color-coded Renderer backed by fatih/color, with
// a plain io.Writer fallback so output never panics if the terminal
// can't be detected.
type termRenderer struct {
	out     io.Writer
	info    *color.Color
	success *color.Color
	warn    *color.Color
	errColor *color.Color
}

// NewTermRenderer builds a Renderer writing to stdout.
func NewTermRenderer() Renderer {
	return &termRenderer{
		out:      os.Stdout,
		info:     color.New(color.FgCyan),
		success:  color.New(color.FgGreen),
		warn:     color.New(color.FgYellow),
		errColor: color.New(color.FgRed, color.Bold),
	}
}

func (r *termRenderer) Write(msg string) {
	defer r.recoverFallback(msg)
	fmt.Fprintln(r.out, msg)
}

func (r *termRenderer) Info(msg string) {
	defer r.recoverFallback(msg)
	r.info.Fprintln(r.out, msg)
}

func (r *termRenderer) Success(msg string) {
	defer r.recoverFallback(msg)
	r.success.Fprintln(r.out, "✓ "+msg)
}

func (r *termRenderer) Warn(msg string) {
	defer r.recoverFallback(msg)
	r.warn.Fprintln(r.out, "⚠ "+msg)
}

func (r *termRenderer) Error(msg string) {
	defer r.recoverFallback(msg)
	r.errColor.Fprintln(r.out, "✗ "+msg)
}

// recoverFallback guarantees a rendering failure (e.g. a color writer
// panicking against a redirected, non-terminal stream) still reaches
// the user as plain text.
func (r *termRenderer) recoverFallback(msg string) {
	if rec := recover(); rec != nil {
		fmt.Fprintln(os.Stdout, msg)
	}
}
