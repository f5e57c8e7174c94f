// Package clitest implements the core of a command-line test runner that
// validates interactive shell sessions documented in plain text files: it
// parses each transcript into commands and expected output, runs the
// commands in a persistent shell, compares actual against expected with a
// selectable matcher, and reports pass/fail/skip counts.
//
// The flag parsing, help text, and process-exit wiring that drive this
// package live in cmd/clitest; this package is usable standalone.
package clitest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/rh-lab-q/clitest/driver"
	"github.com/rh-lab-q/clitest/match"
	"github.com/rh-lab-q/clitest/rangeset"
	"github.com/rh-lab-q/clitest/report"
	"github.com/rh-lab-q/clitest/shell"
	"github.com/rh-lab-q/clitest/transcript"
)

// Options configures a whole run, across every input file. It is the
// in-process equivalent of the CLI flags in spec.md §6.
type Options struct {
	Config transcript.Config

	TestRange string // --test
	SkipRange string // --skip

	List            bool // --list
	ListRun         bool // --list-run
	StopOnFirstFail bool // --first

	PreFlight  string // --pre-flight
	PostFlight string // --post-flight

	DiffOptions string // --diff-options

	// TmpDir is the parent directory the private scratch directory is
	// created under (the resolved TMPDIR, default "/tmp").
	TmpDir string

	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Summary is the aggregate tally across every file Run processed, plus
// each file's own breakdown.
type Summary struct {
	Seen, Failed, Skipped int
	Files                 []driver.FileResult
}

// OK returns the number of tests that ran and matched, across all files.
func (s Summary) OK() int { return s.Seen - s.Failed - s.Skipped }

// ExitCode maps a completed Summary to spec.md §6's process exit codes.
// It does not account for a fatal error aborting the run; callers should
// use exit code 2 whenever Run itself returns a non-nil error.
func (s Summary) ExitCode() int {
	if s.Failed > 0 {
		return 1
	}
	return 0
}

// Run processes each file in order: restoring the original working
// directory before each one (so relative paths on the command line stay
// meaningful even though tests may cd), driving it through package
// driver, and reporting through rep. It returns a fatal error (always a
// *driver.FatalError) the instant one occurs; callers should map that to
// exit code 2. A non-fatal test failure is reflected only in the returned
// Summary, never as an error.
func Run(ctx context.Context, files []string, opts Options, rep *report.Reporter) (Summary, error) {
	log := opts.logger()

	origWD, err := os.Getwd()
	if err != nil {
		return Summary{}, &driver.FatalError{Err: fmt.Errorf("clitest: getting working directory: %w", err)}
	}

	scratch, cleanup, err := newScratchDir(opts.TmpDir)
	if err != nil {
		return Summary{}, &driver.FatalError{Err: err}
	}
	defer cleanup()
	log.Debug("created scratch directory", "path", scratch)

	runRange, err := rangeset.Parse(opts.TestRange)
	if err != nil {
		return Summary{}, &driver.FatalError{Err: fmt.Errorf("--test: %w", err)}
	}
	skipRange, err := rangeset.Parse(opts.SkipRange)
	if err != nil {
		return Summary{}, &driver.FatalError{Err: fmt.Errorf("--skip: %w", err)}
	}

	if opts.PreFlight != "" {
		log.Debug("running pre-flight hook", "command", opts.PreFlight)
		if _, err := shell.RunOnce(ctx, opts.PreFlight); err != nil {
			return Summary{}, &driver.FatalError{Err: fmt.Errorf("pre-flight: %w", err)}
		}
	}

	m := match.New(opts.DiffOptions, shell.RunOnce)

	var summary Summary
	aborted := false

	for _, path := range files {
		if err := os.Chdir(origWD); err != nil {
			return summary, &driver.FatalError{Err: fmt.Errorf("clitest: restoring working directory: %w", err)}
		}

		rep.FileBanner(path)

		session, err := shell.NewSession(origWD)
		if err != nil {
			return summary, &driver.FatalError{Err: err}
		}

		res, runErr := driver.RunFile(ctx, path, session, m, driver.Options{
			Config:          opts.Config,
			RunRange:        runRange,
			SkipRange:       skipRange,
			List:            opts.List,
			ListRun:         opts.ListRun,
			StopOnFirstFail: opts.StopOnFirstFail,
			DiffOptions:     opts.DiffOptions,
			OnEvent: func(ev driver.Event) {
				if ev.Executed {
					log.Debug("executed test", "file", path, "index", ev.Test.Index, "line", ev.Test.SourceLine, "command", ev.Test.Command)
				}
				rep.Event(path, ev)
			},
		})

		summary.Seen += res.Seen
		summary.Failed += res.Failed
		summary.Skipped += res.Skipped
		summary.Files = append(summary.Files, res)
		rep.FileSummary(res)

		if runErr != nil {
			if errors.Is(runErr, driver.ErrStopped) {
				aborted = true
				break
			}
			return summary, runErr
		}
	}

	if !aborted && opts.PostFlight != "" {
		log.Debug("running post-flight hook", "command", opts.PostFlight)
		if _, err := shell.RunOnce(ctx, opts.PostFlight); err != nil {
			log.Warn("post-flight hook failed", "error", err)
		}
	}

	rep.FinalSummary(report.Summary{Seen: summary.Seen, Failed: summary.Failed, Skipped: summary.Skipped})
	return summary, nil
}

// newScratchDir creates the private, owner-only temporary directory
// spec.md §5 requires, rooted under parent (the resolved TMPDIR). The
// returned cleanup func removes it; callers must invoke it on every exit
// path, including after a fatal error.
func newScratchDir(parent string) (string, func(), error) {
	if parent == "" {
		parent = os.TempDir()
	}
	path := filepath.Join(parent, "clitest-"+uuid.NewString())
	if err := os.Mkdir(path, 0o700); err != nil {
		return "", func() {}, fmt.Errorf("clitest: creating scratch directory: %w", err)
	}
	cleanup := func() { os.RemoveAll(path) }
	return path, cleanup, nil
}
