// Command clitest runs the interactive command-line sessions documented
// in one or more plain-text transcript files and reports how many passed,
// failed, and were skipped.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/kingpin/v2"

	"github.com/rh-lab-q/clitest"
	"github.com/rh-lab-q/clitest/driver"
	"github.com/rh-lab-q/clitest/internal/config"
	"github.com/rh-lab-q/clitest/report"
	"github.com/rh-lab-q/clitest/transcript"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	app := kingpin.New("clitest", "Validate interactive command-line sessions documented in plain text files.")
	app.Version(version)
	app.HelpFlag.Short('h')

	first := app.Flag("first", "Stop on first failure.").Bool()
	list := app.Flag("list", "List tests without executing.").Bool()
	listRun := app.Flag("list-run", "List tests with OK/FAIL status.").Bool()
	testRange := app.Flag("test", "Only run tests whose index is in RANGE.").PlaceHolder("RANGE").String()
	skipRange := app.Flag("skip", "Skip tests whose index is in RANGE.").PlaceHolder("RANGE").String()
	preFlight := app.Flag("pre-flight", "Run CMD once before the first test.").PlaceHolder("CMD").String()
	postFlight := app.Flag("post-flight", "Run CMD once after the last test.").PlaceHolder("CMD").String()
	quiet := app.Flag("quiet", "Suppress non-essential output.").Bool()
	verbose := app.Flag("verbose", "Trace executor invocations.").Bool()
	colorFlag := app.Flag("color", "Color policy.").Default("auto").Enum("auto", "always", "never")
	diffOptions := app.Flag("diff-options", "Options passed to diff invocations.").PlaceHolder("STR").String()
	inlinePrefixFlag := app.Flag("inline-prefix", "Inline expected-output marker.").Default("#→ ").String()
	prefixFlag := app.Flag("prefix", `Per-line prefix ("tab", "0", 1-99, or a backslash-escaped literal).`).String()
	promptFlag := app.Flag("prompt", "Prompt literal.").Default("$ ").String()
	files := app.Arg("file", "Transcript file to run.").Required().Strings()

	if _, err := app.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "clitest: %s\n", err)
		return 2
	}

	level := slog.LevelInfo
	switch {
	case *verbose:
		level = slog.LevelDebug
	case *quiet:
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	colorMode, err := report.ParseColorMode(*colorFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "clitest: %s\n", err)
		return 2
	}

	env, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "clitest: %s\n", err)
		return 2
	}

	rep := report.New(os.Stdout, os.Stderr, colorMode, env.NoColor, env.Columns, *listRun, len(*files) > 1)

	opts := clitest.Options{
		Config: transcript.Config{
			Prefix:       resolvePrefix(*prefixFlag),
			Prompt:       *promptFlag,
			InlinePrefix: *inlinePrefixFlag,
		},
		TestRange:       *testRange,
		SkipRange:       *skipRange,
		List:            *list,
		ListRun:         *listRun,
		StopOnFirstFail: *first,
		PreFlight:       *preFlight,
		PostFlight:      *postFlight,
		DiffOptions:     *diffOptions,
		TmpDir:          env.TmpDir,
		Logger:          logger,
	}

	summary, err := clitest.Run(context.Background(), *files, opts, rep)
	if err != nil {
		var fatal *driver.FatalError
		if ok := asFatal(err, &fatal); ok {
			rep.Fatal("clitest", fatal)
			return 2
		}
		rep.Fatal("clitest", err)
		return 2
	}

	return summary.ExitCode()
}

func asFatal(err error, target **driver.FatalError) bool {
	fe, ok := err.(*driver.FatalError)
	if ok {
		*target = fe
	}
	return ok
}

// resolvePrefix implements --prefix's special-cased values: "tab" becomes
// a literal tab, "0" disables the prefix, a bare decimal 1-99 becomes that
// many spaces, and anything else has its backslash escapes expanded.
func resolvePrefix(raw string) string {
	switch raw {
	case "", "0":
		return ""
	case "tab":
		return "\t"
	}
	if n, err := strconv.Atoi(raw); err == nil && n >= 1 && n <= 99 {
		return strings.Repeat(" ", n)
	}
	if unquoted, err := strconv.Unquote(`"` + raw + `"`); err == nil {
		return unquoted
	}
	return raw
}
