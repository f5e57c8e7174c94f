// Package match implements the matcher dispatcher: the seven comparison
// strategies a Test's captured output can be checked against, and their
// fatal-vs-fail error semantics.
package match

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/rh-lab-q/clitest/transcript"
)

// Verdict is the outcome of comparing one Test's captured output against
// its expected payload.
type Verdict struct {
	Pass bool
	// Diff is a human-readable fragment describing the mismatch. Empty
	// when Pass is true.
	Diff string
}

// FatalError marks a match-time defect that must abort the whole run
// rather than just fail one test: an unreadable --file target, or a
// malformed regex/perl pattern.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// EvalFunc runs command in a fresh, one-shot subshell (never the
// persistent session) and returns its captured stdout. It backs ModeEval.
type EvalFunc func(ctx context.Context, command string) (string, error)

// Matcher dispatches a Test to the comparison strategy selected by its
// Mode. It is a pure function of (mode, expected, captured) except for
// ModeFile, which reads the named file, and ModeEval, which needs a way to
// spawn a one-shot subshell; that capability is injected via Eval so this
// package never imports the shell package directly.
type Matcher struct {
	// DiffContext is the number of context lines surrounding each diff
	// hunk, derived from --diff-options. Defaults to 3 when unset.
	DiffContext int
	// Eval runs the expected-payload shell expression for ModeEval.
	Eval EvalFunc
}

// New builds a Matcher from the raw --diff-options string and an eval
// callback.
func New(diffOptions string, eval EvalFunc) *Matcher {
	return &Matcher{DiffContext: parseDiffContext(diffOptions), Eval: eval}
}

// Compare runs test against captured and returns a verdict. A non-nil
// error is always a *FatalError: the caller must abort the run.
func (m *Matcher) Compare(ctx context.Context, test transcript.Test, captured string) (Verdict, error) {
	switch test.Mode {
	case transcript.ModeOutput:
		return m.diffVerdict(test.Expected, captured), nil

	case transcript.ModeText:
		return m.diffVerdict(test.Expected+"\n", captured), nil

	case transcript.ModeEval:
		if m.Eval == nil {
			return Verdict{}, &FatalError{Err: fmt.Errorf("eval mode requires a subshell, none configured")}
		}
		expected, err := m.Eval(ctx, test.Expected)
		if err != nil {
			return Verdict{}, &FatalError{Err: fmt.Errorf("evaluating expected expression: %w", err)}
		}
		return m.diffVerdict(expected, captured), nil

	case transcript.ModeLines:
		return linesVerdict(test.ExpectedLines, captured), nil

	case transcript.ModeFile:
		contents, err := os.ReadFile(test.Expected)
		if err != nil {
			return Verdict{}, &FatalError{Err: fmt.Errorf("reading --file target %q: %w", test.Expected, err)}
		}
		return m.diffVerdict(string(contents), captured), nil

	case transcript.ModeRegex:
		return regexVerdict(test.Expected, captured)

	case transcript.ModePerl:
		return perlVerdict(test.Expected, captured)

	default:
		return Verdict{}, &FatalError{Err: fmt.Errorf("unknown match mode %v", test.Mode)}
	}
}

func (m *Matcher) diffVerdict(expected, captured string) Verdict {
	if expected == captured {
		return Verdict{Pass: true}
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(captured),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  m.DiffContext,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		text = fmt.Sprintf("(failed to render diff: %v)\nexpected: %q\ngot:      %q", err, expected, captured)
	}
	return Verdict{Pass: false, Diff: stripDiffHeaders(text)}
}

// stripDiffHeaders removes the "---"/"+++" file-header lines difflib
// emits, leaving only the hunk bodies, per the reporting contract.
func stripDiffHeaders(diff string) string {
	lines := strings.Split(diff, "\n")
	out := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(l, "--- ") || strings.HasPrefix(l, "+++ ") {
			continue
		}
		out = append(out, l)
	}
	return strings.TrimRight(strings.Join(out, "\n"), "\n")
}

func linesVerdict(expected int, captured string) Verdict {
	got := countLines(captured)
	if got == expected {
		return Verdict{Pass: true}
	}
	return Verdict{Pass: false, Diff: fmt.Sprintf("Expected %d lines, got %d.", expected, got)}
}

func countLines(s string) int {
	return strings.Count(s, "\n")
}

func regexVerdict(pattern, captured string) (Verdict, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Verdict{}, &FatalError{Err: fmt.Errorf("invalid --regex pattern %q: %w", pattern, err)}
	}
	for _, line := range strings.Split(captured, "\n") {
		if re.MatchString(line) {
			return Verdict{Pass: true}, nil
		}
	}
	return Verdict{Pass: false, Diff: fmt.Sprintf("no line matched regex %q", pattern)}, nil
}

func perlVerdict(pattern, captured string) (Verdict, error) {
	re, err := regexp2.Compile(pattern, regexp2.Singleline)
	if err != nil {
		return Verdict{}, &FatalError{Err: fmt.Errorf("invalid --perl pattern %q: %w", pattern, err)}
	}
	m, err := re.FindStringMatch(captured)
	if err != nil {
		return Verdict{}, &FatalError{Err: fmt.Errorf("evaluating --perl pattern %q: %w", pattern, err)}
	}
	if m != nil {
		return Verdict{Pass: true}, nil
	}
	return Verdict{Pass: false, Diff: fmt.Sprintf("no match for perl pattern %q", pattern)}, nil
}

// parseDiffContext reads a -U<n> token out of a --diff-options string.
// Unrecognized tokens are ignored; spec.md does not define a grammar for
// this option beyond "passed to diff invocations".
func parseDiffContext(opts string) int {
	const def = 3
	for _, tok := range strings.Fields(opts) {
		if strings.HasPrefix(tok, "-U") && len(tok) > 2 {
			if n, err := strconv.Atoi(tok[2:]); err == nil && n >= 0 {
				return n
			}
		}
	}
	return def
}
