// Package config loads the process-environment configuration clitest
// consumes: TMPDIR for scratch-file placement, COLUMNS for separator-line
// width, and NO_COLOR as a widely observed convention for disabling color
// regardless of --color.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Env holds the environment-derived settings spec.md §6 names, plus the
// NO_COLOR convention it is silent on but does not forbid.
type Env struct {
	TmpDir  string `envconfig:"TMPDIR" default:"/tmp"`
	Columns int    `envconfig:"COLUMNS" default:"0"`
	NoColor bool   `envconfig:"NO_COLOR"`
}

// Load reads TMPDIR, COLUMNS, and NO_COLOR, the names pinned by each
// field's envconfig tag. The prefix passed to envconfig.Process is
// deliberately empty: a non-empty prefix is prepended to the tag name
// (yielding e.g. CLITEST_TMPDIR), which would stop this from reading the
// ambient, unprefixed variables these names conventionally refer to.
func Load() (*Env, error) {
	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("config: loading environment: %w", err)
	}
	return &env, nil
}
