package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/vikashloomba/mcp-connection-manager-go/pkg/mcpmgr"
)

// Status symbols
const (
	checkMark = "✓"
	xMark     = "✗"
	infoMark  = "ℹ"
)

// Output writes command results to Out and failures to Err.
type Output struct {
	Out io.Writer
	Err io.Writer

	successColor *color.Color
	errorColor   *color.Color
	infoColor    *color.Color
	mutedColor   *color.Color
}

// NewOutput returns an Output over the given writers. Colors follow
// color.NoColor, which is set for non-terminals.
func NewOutput(out, errOut io.Writer) *Output {
	return &Output{
		Out:          out,
		Err:          errOut,
		successColor: color.New(color.FgGreen),
		errorColor:   color.New(color.FgRed),
		infoColor:    color.New(color.FgCyan),
		mutedColor:   color.New(color.FgHiBlack),
	}
}

// DefaultOutput writes to stdout and stderr.
func DefaultOutput() *Output {
	return NewOutput(os.Stdout, os.Stderr)
}

func (o *Output) status(w io.Writer, tone *color.Color, prefix, msg string) {
	tone.Fprint(w, prefix+" ")
	fmt.Fprintln(w, msg)
}

func (o *Output) Success(format string, args ...any) {
	o.status(o.Out, o.successColor, checkMark, fmt.Sprintf(format, args...))
}

func (o *Output) Failure(format string, args ...any) {
	o.status(o.Err, o.errorColor, xMark, fmt.Sprintf(format, args...))
}

func (o *Output) Info(format string, args ...any) {
	o.status(o.Out, o.infoColor, infoMark, fmt.Sprintf(format, args...))
}

func (o *Output) Muted(format string, args ...any) {
	o.mutedColor.Fprintln(o.Out, fmt.Sprintf(format, args...))
}

func (o *Output) Print(format string, args ...any) {
	fmt.Fprintf(o.Out, format, args...)
}

// PrintJSON writes v as indented JSON.
func (o *Output) PrintJSON(v any) error {
	enc := json.NewEncoder(o.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// HandleError prints err with its hint, if any, and returns the exit code.
func (o *Output) HandleError(err error) int {
	o.Failure("%s", err.Error())
	if hint := mcpmgr.HintOf(err); hint != "" {
		o.status(o.Err, o.infoColor, infoMark, hint)
	}
	return 1
}

// printSnapshot summarizes a connect or describe result.
func (o *Output) printSnapshot(snap mcpmgr.ServerSnapshot) {
	if !snap.IsConnected {
		o.Failure("%s: %s", snap.Config.ID, snap.LastError)
		if snap.Hint != "" {
			o.status(o.Err, o.infoColor, infoMark, snap.Hint)
		}
		return
	}
	o.Success("connected to %s (%s %s) via %s", snap.Config.ID, snap.Info.Name, snap.Info.Version, snap.ConnectedVia)
	o.Print("Tools (%d):\n", len(snap.Tools))
	for _, t := range snap.Tools {
		o.Print("  %-24s %s\n", t.Name, t.Description)
	}
	o.Print("Prompts (%d):\n", len(snap.Prompts))
	for _, p := range snap.Prompts {
		o.Print("  %-24s %s\n", p.Name, p.Description)
	}
	o.Print("Resources (%d):\n", len(snap.Resources))
	for _, r := range snap.Resources {
		o.Print("  %-24s %s\n", r.URI, r.Name)
	}
	for op, msg := range snap.DiscoveryErrors {
		o.Muted("%s unavailable: %s", op, msg)
	}
}

// printResult writes the content of an invocation, one item per line.
func (o *Output) printResult(res *mcpmgr.ToolCallResult) {
	if res.IsError {
		o.Failure("tool reported an error")
	}
	for _, item := range res.Content {
		switch item.Type {
		case mcpmgr.ContentText:
			o.Print("%s\n", item.Text)
		case mcpmgr.ContentImage:
			o.Muted("[image %s, %d base64 bytes]", item.MimeType, len(item.Data))
		default:
			target := item.URI
			if target == "" {
				target = item.URL
			}
			o.Muted("[%s %s]", item.Type, target)
			if item.Text != "" {
				o.Print("%s\n", item.Text)
			}
		}
	}
}
