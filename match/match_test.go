package match

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rh-lab-q/clitest/transcript"
)

func TestOutputModePass(t *testing.T) {
	m := New("", nil)
	v, err := m.Compare(context.Background(), transcript.Test{Mode: transcript.ModeOutput, Expected: "hello\n"}, "hello\n")
	if err != nil {
		t.Fatal(err)
	}
	if !v.Pass {
		t.Errorf("expected pass, got fail: %s", v.Diff)
	}
}

func TestOutputModeFailHidesHeaders(t *testing.T) {
	m := New("", nil)
	v, err := m.Compare(context.Background(), transcript.Test{Mode: transcript.ModeOutput, Expected: "bye\n"}, "hi\n")
	if err != nil {
		t.Fatal(err)
	}
	if v.Pass {
		t.Fatal("expected failure")
	}
	if strings.Contains(v.Diff, "--- expected") || strings.Contains(v.Diff, "+++ actual") {
		t.Errorf("diff headers leaked into fragment: %q", v.Diff)
	}
	if !strings.Contains(v.Diff, "-bye") || !strings.Contains(v.Diff, "+hi") {
		t.Errorf("diff fragment missing expected hunk: %q", v.Diff)
	}
}

func TestTextModeAppendsNewline(t *testing.T) {
	m := New("", nil)
	v, err := m.Compare(context.Background(), transcript.Test{Mode: transcript.ModeText, Expected: "hello"}, "hello\n")
	if err != nil {
		t.Fatal(err)
	}
	if !v.Pass {
		t.Errorf("expected pass, got fail: %s", v.Diff)
	}
}

func TestLinesMode(t *testing.T) {
	cases := []struct {
		expected int
		captured string
		pass     bool
	}{
		{3, "a\nb\nc\n", true},
		{0, "", true},
		{0, "a\n", false},
		{2, "a\nb\n", true},
		{1, "a\nb", true}, // unterminated final line is not counted
	}
	m := New("", nil)
	for _, c := range cases {
		v, err := m.Compare(context.Background(), transcript.Test{Mode: transcript.ModeLines, ExpectedLines: c.expected}, c.captured)
		if err != nil {
			t.Fatal(err)
		}
		if v.Pass != c.pass {
			t.Errorf("lines(%d, %q) pass=%v, want %v", c.expected, c.captured, v.Pass, c.pass)
		}
	}
}

func TestFileModeMissingIsFatal(t *testing.T) {
	m := New("", nil)
	_, err := m.Compare(context.Background(), transcript.Test{Mode: transcript.ModeFile, Expected: "/nonexistent/does/not/exist"}, "x")
	if err == nil {
		t.Fatal("expected fatal error")
	}
	var fe *FatalError
	if _, ok := err.(*FatalError); !ok {
		t.Fatalf("expected *FatalError, got %T", err)
	}
	_ = fe
}

func TestFileModeComparesContents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "expected.txt")
	if err := os.WriteFile(path, []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	m := New("", nil)
	v, err := m.Compare(context.Background(), transcript.Test{Mode: transcript.ModeFile, Expected: path}, "hello\n")
	if err != nil {
		t.Fatal(err)
	}
	if !v.Pass {
		t.Errorf("expected pass, got: %s", v.Diff)
	}
}

func TestRegexMode(t *testing.T) {
	m := New("", nil)
	v, err := m.Compare(context.Background(), transcript.Test{Mode: transcript.ModeRegex, Expected: "^h[ei]llo$"}, "nope\nhello\n")
	if err != nil {
		t.Fatal(err)
	}
	if !v.Pass {
		t.Errorf("expected pass, got fail: %s", v.Diff)
	}
}

func TestRegexModeMalformedIsFatal(t *testing.T) {
	m := New("", nil)
	_, err := m.Compare(context.Background(), transcript.Test{Mode: transcript.ModeRegex, Expected: "(unclosed"}, "x")
	if err == nil {
		t.Fatal("expected fatal error")
	}
}

func TestPerlModeSpansNewlines(t *testing.T) {
	m := New("", nil)
	v, err := m.Compare(context.Background(), transcript.Test{Mode: transcript.ModePerl, Expected: "hello.world"}, "hello\nworld\n")
	if err != nil {
		t.Fatal(err)
	}
	if !v.Pass {
		t.Errorf("expected dotall match across newline, got fail: %s", v.Diff)
	}
}

func TestEvalMode(t *testing.T) {
	m := New("", func(ctx context.Context, command string) (string, error) {
		if command != "echo hello" {
			t.Fatalf("unexpected eval command %q", command)
		}
		return "hello\n", nil
	})
	v, err := m.Compare(context.Background(), transcript.Test{Mode: transcript.ModeEval, Expected: "echo hello"}, "hello\n")
	if err != nil {
		t.Fatal(err)
	}
	if !v.Pass {
		t.Errorf("expected pass, got fail: %s", v.Diff)
	}
}

func TestParseDiffContext(t *testing.T) {
	if got := parseDiffContext("-U5"); got != 5 {
		t.Errorf("got %d, want 5", got)
	}
	if got := parseDiffContext("--something-else"); got != 3 {
		t.Errorf("got %d, want default 3", got)
	}
}
