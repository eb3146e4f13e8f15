package engine

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Reporter receives progress lines from the trainer. There is no global
// logger; every component that talks gets a Reporter handed to it.
type Reporter interface {
	Info(msg string)
	Train(msg string)
	Eval(msg string)
}

// ConsoleReporter renders tagged lines: cyan info, green training progress,
// red evaluation results.
type ConsoleReporter struct {
	out   io.Writer
	info  lipgloss.Style
	train lipgloss.Style
	eval  lipgloss.Style
}

// NewConsoleReporter writes to out, or stdout when out is nil.
func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleReporter{
		out:   out,
		info:  lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		train: lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		eval:  lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	}
}

// Info implements Reporter.
func (r *ConsoleReporter) Info(msg string) { r.line(r.info, "INFO", msg) }

// Train implements Reporter.
func (r *ConsoleReporter) Train(msg string) { r.line(r.train, "TRAIN", msg) }

// Eval implements Reporter.
func (r *ConsoleReporter) Eval(msg string) { r.line(r.eval, "EVAL", msg) }

func (r *ConsoleReporter) line(style lipgloss.Style, tag, msg string) {
	fmt.Fprintln(r.out, style.Render(fmt.Sprintf("[%s] %s", tag, msg)))
}

// NopReporter discards everything. Tests and library callers that do not
// want output use this.
type NopReporter struct{}

// Info implements Reporter.
func (NopReporter) Info(string) {}

// Train implements Reporter.
func (NopReporter) Train(string) {}

// Eval implements Reporter.
func (NopReporter) Eval(string) {}
