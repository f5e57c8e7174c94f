// Package shell implements the Executor: a persistent shell session that
// runs commands one at a time, capturing combined stdout+stderr, while
// letting environment variables, the working directory, and shell
// functions set by one command remain visible to the next.
//
// Rather than forking a real /bin/sh per test, the session is backed by
// mvdan.cc/sh/v3's POSIX-ish shell interpreter: a single interp.Runner is
// constructed once per file run and reused for every command in it, so
// its Vars map and Dir field are exactly the state spec.md's persistence
// contract requires.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Session is a persistent shell interpreter session. Calls to Run and Dir
// are serialized by an internal mutex, so commands always execute strictly
// one at a time.
type Session struct {
	mu     sync.Mutex
	runner *interp.Runner
	out    *bytes.Buffer
	parser *syntax.Parser
}

// NewSession starts a persistent session rooted at dir (the directory the
// first command sees as its working directory; subsequent "cd"s inside
// tests update it from there). dir may be empty to inherit the process's
// current working directory.
func NewSession(dir string) (*Session, error) {
	out := new(bytes.Buffer)
	opts := []interp.RunnerOption{
		interp.StdIO(nil, out, out),
		interp.Env(expand.ListEnviron(os.Environ()...)),
	}
	if dir != "" {
		opts = append(opts, interp.Dir(dir))
	}
	runner, err := interp.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("shell: starting session: %w", err)
	}
	return &Session{runner: runner, out: out, parser: syntax.NewParser()}, nil
}

// Run evaluates command and returns its combined stdout+stderr. Exit
// status is intentionally not surfaced: matchers work purely on captured
// text, per spec.md §4.4.
func (s *Session) Run(ctx context.Context, command string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.out.Reset()
	file, err := s.parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return "", fmt.Errorf("shell: parsing command: %w", err)
	}
	// The interpreter reports non-zero exits and unbound-variable style
	// errors as a returned error; the matcher only ever looks at
	// captured text, so it is deliberately discarded here.
	_ = s.runner.Run(ctx, file)
	return s.out.String(), nil
}

// Dir returns the session's current working directory, as mutated by any
// "cd" commands tests have run.
func (s *Session) Dir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runner.Dir
}

// RunOnce evaluates command in a brand-new, throwaway interpreter and
// returns its captured stdout; its stderr is discarded. It backs
// ModeEval's "fresh subshell" requirement: the expression's side effects
// must never leak into the persistent session under test.
func RunOnce(ctx context.Context, command string) (string, error) {
	file, err := syntax.NewParser().Parse(strings.NewReader(command), "")
	if err != nil {
		return "", fmt.Errorf("shell: parsing command: %w", err)
	}
	var stdout bytes.Buffer
	runner, err := interp.New(
		interp.StdIO(nil, &stdout, io.Discard),
		interp.Env(expand.ListEnviron(os.Environ()...)),
	)
	if err != nil {
		return "", fmt.Errorf("shell: starting session: %w", err)
	}
	_ = runner.Run(ctx, file)
	return stdout.String(), nil
}
