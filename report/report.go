// Package report implements the Reporter: per-test failure diffs,
// --list/--list-run lines, and the per-file/global pass-fail tallies
// spec.md §4.6 describes.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/rh-lab-q/clitest/driver"
)

// ColorMode mirrors the --color flag's three-way policy.
type ColorMode int

const (
	ColorAuto ColorMode = iota
	ColorAlways
	ColorNever
)

// ParseColorMode parses the --color flag's value.
func ParseColorMode(s string) (ColorMode, error) {
	switch s {
	case "", "auto":
		return ColorAuto, nil
	case "always":
		return ColorAlways, nil
	case "never":
		return ColorNever, nil
	default:
		return ColorAuto, fmt.Errorf("report: invalid --color value %q", s)
	}
}

// Reporter renders test progress and summaries to Out/Err. It holds no
// test-counting state of its own: callers feed it driver.Events and
// driver.FileResults as they're produced.
type Reporter struct {
	Out  io.Writer
	Err  io.Writer
	list func(*color.Color) *color.Color

	width     int
	multiFile bool
	listRun   bool
	// lastWasFailure tracks whether the most recently rendered event was a
	// failure block, so two consecutive failures share the separator
	// between them instead of printing it twice.
	lastWasFailure bool
	failColor      *color.Color
	headColor      *color.Color
	bannerColor    *color.Color
	okColor        *color.Color
}

// New builds a Reporter. columnsEnv is the resolved COLUMNS environment
// override (0 means unset); noColorEnv is the NO_COLOR convention.
func New(out, errw io.Writer, mode ColorMode, noColorEnv bool, columnsEnv int, listRun, multiFile bool) *Reporter {
	enabled := resolveColor(mode, noColorEnv, out)
	color.NoColor = !enabled

	return &Reporter{
		Out:         out,
		Err:         errw,
		width:       resolveWidth(columnsEnv, out),
		multiFile:   multiFile,
		listRun:     listRun,
		failColor:   color.New(color.FgRed, color.Bold),
		headColor:   color.New(color.FgYellow),
		bannerColor: color.New(color.FgCyan, color.Bold),
		okColor:     color.New(color.FgGreen, color.Bold),
	}
}

func resolveColor(mode ColorMode, noColorEnv bool, out io.Writer) bool {
	if noColorEnv {
		return false
	}
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		f, ok := out.(*os.File)
		return ok && term.IsTerminal(int(f.Fd()))
	}
}

func resolveWidth(columnsEnv int, out io.Writer) int {
	if columnsEnv > 0 {
		return columnsEnv
	}
	if f, ok := out.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			return w
		}
	}
	return 50
}

func (r *Reporter) separator() string {
	return strings.Repeat("=", r.width)
}

// FileBanner prints the "Testing file <path>" banner multi-file mode
// shows before processing each file.
func (r *Reporter) FileBanner(path string) {
	r.lastWasFailure = false
	if !r.multiFile {
		return
	}
	r.bannerColor.Fprintf(r.Out, "Testing file %s\n", path)
}

// Event renders one test's outcome: a list line in --list/--list-run
// mode, or a failure block (separator, header, diff, separator) on a
// matched, executed, failing test. Passing tests and skipped tests are
// silent, matching spec.md's "per failing test" reporting contract.
func (r *Reporter) Event(path string, ev driver.Event) {
	if ev.Listed {
		fmt.Fprintf(r.Out, "%d: %s\n", ev.Test.Index, ev.Test.Command)
		return
	}
	if ev.Skipped {
		return
	}
	if !ev.Executed {
		return
	}
	if r.listRun {
		status := "OK"
		c := r.okColor
		if !ev.Verdict.Pass {
			status = "FAIL"
			c = r.failColor
		}
		c.Fprintf(r.Out, "%d: %s [%s]\n", ev.Test.Index, ev.Test.Command, status)
		return
	}
	if ev.Verdict.Pass {
		r.lastWasFailure = false
		return
	}

	// A separator already closed the previous failure block; reuse it as
	// this block's opening separator instead of printing a duplicate.
	if !r.lastWasFailure {
		r.failColor.Fprintln(r.Out, r.separator())
	}
	r.headColor.Fprintf(r.Out, "[FAILED #%d, line %d] %s\n", ev.Test.Index, ev.Test.SourceLine, ev.Test.Command)
	if ev.Verdict.Diff != "" {
		fmt.Fprintln(r.Out, ev.Verdict.Diff)
	}
	r.failColor.Fprintln(r.Out, r.separator())
	r.lastWasFailure = true
}

// FileSummary prints one line of a file's tally, used for the multi-file
// OK/FAIL/SKIP table.
func (r *Reporter) FileSummary(res driver.FileResult) {
	if !r.multiFile {
		return
	}
	fmt.Fprintf(r.Out, "%-40s OK=%d FAIL=%d SKIP=%d\n", res.Path, res.OK(), res.Failed, res.Skipped)
}

// Summary is the aggregate tally across every file processed.
type Summary struct {
	Seen, Failed, Skipped int
}

func (s Summary) OK() int { return s.Seen - s.Failed - s.Skipped }

// FinalSummary prints the closing "OK: X of N tests passed (S skipped)"
// or "FAIL: F of N tests failed (S skipped)" line.
func (r *Reporter) FinalSummary(s Summary) {
	if s.Failed > 0 {
		r.failColor.Fprintf(r.Out, "FAIL: %d of %d tests failed (%d skipped)\n", s.Failed, s.Seen, s.Skipped)
		return
	}
	r.okColor.Fprintf(r.Out, "OK: %d of %d tests passed (%d skipped)\n", s.OK(), s.Seen, s.Skipped)
}

// Fatal prints a fatal error in the "<program>: Error: <message>" shape
// spec.md §7 requires, to Err.
func (r *Reporter) Fatal(program string, err error) {
	fmt.Fprintf(r.Err, "%s: Error: %s\n", program, err)
}
