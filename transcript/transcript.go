// Package transcript implements the line-oriented state machine that turns
// a shell-transcript text file into a stream of Test records: it
// recognizes prompt and output lines, separates commands from expected
// output, and decodes inline match-mode directives.
package transcript

import (
	"fmt"
	"strconv"
	"strings"
)

// Test is one extracted command and its expected-output contract.
type Test struct {
	// Index is the 1-based ordinal across all tests emitted for this
	// parse, assigned in emission order (not execution order).
	Index int
	// SourceLine is the 1-based line number where the command begins.
	SourceLine int
	// Command is the verbatim command text to be evaluated by the shell.
	Command string
	// Mode selects how Expected is compared against captured output.
	Mode Mode
	// Expected is the mode-dependent payload: multi-line text for
	// ModeOutput, a single line for ModeText, a shell expression for
	// ModeEval, a path for ModeFile, a pattern for ModeRegex/ModePerl.
	// Unused for ModeLines.
	Expected string
	// ExpectedLines holds the integer payload for ModeLines. Unused
	// otherwise.
	ExpectedLines int
}

// Config holds the per-line literals the parser recognizes. The zero
// value is not directly usable; use DefaultConfig.
type Config struct {
	// Prefix must precede every prompt and output line. Empty disables
	// the requirement.
	Prefix string
	// Prompt marks the start of a command line (default "$ ").
	Prompt string
	// InlinePrefix marks the start of an inline expected-output payload
	// on a command line (default "#→ ").
	InlinePrefix string
}

// DefaultConfig returns the parser configuration clitest uses when the
// user supplies no --prefix, --prompt, or --inline-prefix overrides.
func DefaultConfig() Config {
	return Config{
		Prompt:       "$ ",
		InlinePrefix: "#→ ",
	}
}

// ParseError reports a fatal, user-actionable defect in a transcript:
// malformed --lines payload, empty inline payload for a non-text mode.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// Parse scans data (already normalized to LF line endings, see Normalize)
// and returns the Test records emitted by the state machine described in
// spec §4.2. file is used only to annotate ParseError messages.
func Parse(data []byte, cfg Config, file string) ([]Test, error) {
	p := &parser{cfg: cfg, file: file}
	return p.run(data)
}

type parser struct {
	cfg     Config
	file    string
	lineNo  int
	tests   []Test
	pending *Test
}

func (p *parser) run(data []byte) ([]Test, error) {
	text := string(data)
	// Split preserving the ability to detect a missing trailing newline;
	// an optional trailing newline must not fabricate an extra empty line.
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	full := p.cfg.Prefix + p.cfg.Prompt
	trimmedFull := strings.TrimRight(full, " ")

	for _, line := range lines {
		p.lineNo++

		trimmedLine := strings.TrimRight(line, " ")
		switch {
		case trimmedLine == trimmedFull:
			p.finalize()
		case strings.HasPrefix(line, full) && len(line) > len(full):
			p.finalize()
			if err := p.startCommand(line[len(full):]); err != nil {
				return nil, err
			}
		default:
			p.continueOutput(line)
		}
	}
	p.finalize()

	return p.tests, nil
}

// finalize emits the pending Test, if any, assigning it the next index.
func (p *parser) finalize() {
	if p.pending == nil {
		return
	}
	p.pending.Index = len(p.tests) + 1
	p.tests = append(p.tests, *p.pending)
	p.pending = nil
}

func (p *parser) continueOutput(line string) {
	if p.pending == nil {
		return
	}
	if p.cfg.Prefix != "" && !strings.HasPrefix(line, p.cfg.Prefix) {
		p.finalize()
		return
	}
	p.pending.Expected += strings.TrimPrefix(line, p.cfg.Prefix) + "\n"
}

func (p *parser) startCommand(text string) error {
	sourceLine := p.lineNo

	idx := strings.LastIndex(text, p.cfg.InlinePrefix)
	if idx < 0 {
		p.pending = &Test{SourceLine: sourceLine, Command: text, Mode: ModeOutput}
		return nil
	}

	command := text[:idx]
	payload := text[idx+len(p.cfg.InlinePrefix):]

	mode := ModeText
	remainder := payload
	for token, m := range directive {
		if strings.HasPrefix(payload, token+" ") {
			mode = m
			remainder = payload[len(token)+1:]
			break
		}
	}

	if mode != ModeText && remainder == "" {
		return p.fatal(sourceLine, fmt.Sprintf("empty inline payload for %s mode", mode))
	}

	test := Test{SourceLine: sourceLine, Command: command, Mode: mode}
	if mode == ModeLines {
		n, err := strconv.Atoi(remainder)
		if err != nil || n < 0 || strings.ContainsAny(remainder, "+- ") {
			return p.fatal(sourceLine, fmt.Sprintf("invalid --lines payload %q: must be a non-negative integer", remainder))
		}
		test.ExpectedLines = n
	} else {
		test.Expected = remainder
	}

	p.pending = &test
	p.finalize()
	return nil
}

func (p *parser) fatal(line int, msg string) error {
	return &ParseError{File: p.file, Line: line, Msg: msg}
}
