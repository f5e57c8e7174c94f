// Package driver implements the per-file loop described in spec.md §4.5:
// parse a transcript, filter tests by range, run each surviving test
// through the persistent shell session, dispatch to the matcher, and
// accumulate counters. It is the one component that talks to every other
// core component.
package driver

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rh-lab-q/clitest/match"
	"github.com/rh-lab-q/clitest/rangeset"
	"github.com/rh-lab-q/clitest/shell"
	"github.com/rh-lab-q/clitest/transcript"
)

// ErrStopped is returned by RunFile when --first caused the run to abort
// after a failing test. It is not a fatal error: the failure has already
// been recorded in the returned FileResult and counted toward exit code 1,
// not 2.
var ErrStopped = errors.New("driver: stopped after first failure")

// FatalError wraps a defect that must abort the whole run immediately:
// an unreadable input file, a malformed pattern, a bad inline directive,
// or a range that matched zero tests. It always maps to exit code 2.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

func fatalf(format string, args ...any) error {
	return &FatalError{Err: fmt.Errorf(format, args...)}
}

// Event is reported once per emitted Test, in emission order, so a
// Reporter can render progress as the run proceeds rather than only at
// the end.
type Event struct {
	Test     transcript.Test
	Skipped  bool
	Listed   bool // --list / --list-run: not executed
	Executed bool
	Captured string
	Verdict  match.Verdict
}

// Options configures one file's run. Config must be set (see
// transcript.DefaultConfig); zero-valued range sets apply no filtering.
// The diff context comes from the Matcher passed to RunFile; RunFile does
// not read DiffOptions.
type Options struct {
	Config          transcript.Config
	RunRange        rangeset.Set
	SkipRange       rangeset.Set
	List            bool
	ListRun         bool
	StopOnFirstFail bool
	DiffOptions     string
	// OnEvent, if set, is called synchronously for every Test in
	// emission order. A skipped Test is already counted as skipped when
	// its event is emitted; an executed Test's failure is counted only
	// after its event. Used by the Reporter to print progress and
	// failures as they happen.
	OnEvent func(Event)
}

// FileResult tallies one file's run, per spec.md §3's "run counters".
type FileResult struct {
	Path    string
	Seen    int
	Failed  int
	Skipped int
	// FailedIndices records, in order, the 1-based index of every test
	// that failed.
	FailedIndices []int
}

// OK returns the number of tests that ran and matched.
func (r FileResult) OK() int {
	return r.Seen - r.Failed - r.Skipped
}

// RunFile executes one transcript file to completion (or until a fatal
// error or --first abort). session is the persistent shell for this file;
// callers decide whether to share one Session across files or create a
// fresh one per file (spec.md §3: persistence is required only within a
// file).
func RunFile(ctx context.Context, path string, session *shell.Session, m *match.Matcher, opts Options) (FileResult, error) {
	result := FileResult{Path: path}

	info, err := os.Stat(path)
	if err != nil {
		return result, fatalf("cannot read input file %q: %v", path, err)
	}
	if info.IsDir() {
		return result, fatalf("input file %q is a directory", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return result, fatalf("cannot read input file %q: %v", path, err)
	}

	tests, err := transcript.Parse(transcript.Normalize(data), opts.Config, path)
	if err != nil {
		return result, &FatalError{Err: err}
	}

	rangeActive := opts.RunRange.Active() || opts.SkipRange.Active()
	if len(tests) == 0 && !rangeActive {
		return result, fatalf("%s: no test found", path)
	}

	matchedAny := !rangeActive
	for _, test := range tests {
		result.Seen++

		// Skip wins over include when both match, per spec.md §4.5(b).
		inRun := !opts.RunRange.Active() || opts.RunRange.Contains(test.Index)
		inSkip := opts.SkipRange.Active() && opts.SkipRange.Contains(test.Index)
		if inRun && !inSkip {
			matchedAny = true
		}
		if !inRun || inSkip {
			result.Skipped++
			emit(opts, Event{Test: test, Skipped: true})
			continue
		}

		if opts.List {
			// --list prints the command without executing it. --list-run
			// still executes (it reports OK/FAIL per test) and is handled
			// below like a normal run; only rendering differs, and that is
			// the Reporter's concern, not the driver's.
			emit(opts, Event{Test: test, Listed: true})
			continue
		}

		captured, err := session.Run(ctx, test.Command)
		if err != nil {
			return result, fatalf("running test #%d (line %d): %v", test.Index, test.SourceLine, err)
		}

		verdict, err := m.Compare(ctx, test, captured)
		if err != nil {
			return result, &FatalError{Err: fmt.Errorf("%s:%d: %w", path, test.SourceLine, err)}
		}

		emit(opts, Event{Test: test, Executed: true, Captured: captured, Verdict: verdict})

		if !verdict.Pass {
			result.Failed++
			result.FailedIndices = append(result.FailedIndices, test.Index)
			if opts.StopOnFirstFail {
				return result, ErrStopped
			}
		}
	}

	if rangeActive && !matchedAny {
		return result, rangeFatal(opts)
	}

	return result, nil
}

func rangeFatal(opts Options) error {
	switch {
	case opts.RunRange.Active() && opts.SkipRange.Active():
		return fatalf("--test and --skip together matched zero tests")
	case opts.RunRange.Active():
		return fatalf("--test matched zero tests")
	default:
		return fatalf("--skip matched zero tests")
	}
}

func emit(opts Options, ev Event) {
	if opts.OnEvent != nil {
		opts.OnEvent(ev)
	}
}
