package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/mmr-tortoise/espbuild/internal/model"
)

// Runner invokes cargo in a fixed project directory.
//
// The zero value is not usable; construct with NewRunner. Stdout and
// Stderr default to the process streams so cargo's progress output and
// compiler diagnostics reach the user directly, but tests redirect them.
type Runner struct {
	// Cargo is the cargo binary to invoke, resolved via PATH if not
	// absolute.
	Cargo string

	// Dir is the project directory cargo runs in (the directory holding
	// Cargo.toml).
	Dir string

	// Stdout and Stderr receive the tool's output streams.
	Stdout io.Writer
	Stderr io.Writer
}

// NewRunner creates a Runner for the given cargo binary and project
// directory, streaming tool output to the process streams.
func NewRunner(cargo, dir string) *Runner {
	return &Runner{
		Cargo:  cargo,
		Dir:    dir,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Clean removes prior build artifacts via `cargo clean`.
func (r *Runner) Clean(ctx context.Context) error {
	return r.run(ctx, "clean")
}

// Build compiles the project for the given target and profile via
// `cargo build --target <triple> [--release]`.
//
// The environment the cargo process inherits is the current process
// environment — the caller is responsible for bootstrapping the
// toolchain variables first (see internal/envset).
func (r *Runner) Build(ctx context.Context, target model.Target, profile model.Profile) error {
	return r.run(ctx, BuildArgs(target, profile)...)
}

// BuildArgs returns the cargo argument vector for a build. Split out as
// a pure function so the exact command line is testable without running
// anything.
func BuildArgs(target model.Target, profile model.Profile) []string {
	args := []string{"build", "--target", target.String()}
	if profile == model.ProfileRelease {
		args = append(args, "--release")
	}
	return args
}

// run executes cargo with the given arguments, streaming output.
//
// On a non-zero exit it returns a model.CLIError with ExitBuildFailed.
// A cargo binary that cannot be found at all maps to
// ExitToolchainNotFound instead, so `espbuild doctor` advice can be
// given for the common "rustup not installed" case.
func (r *Runner) run(ctx context.Context, args ...string) error {
	// #nosec G204 — the binary comes from config and the args are
	// constructed internally, not from user input.
	cmd := exec.CommandContext(ctx, r.Cargo, args...)
	cmd.Dir = r.Dir
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return model.WrapCLIError(
				model.ExitToolchainNotFound,
				fmt.Sprintf("%s not found on PATH (install rustup and the esp toolchain via espup)", r.Cargo),
				err,
			)
		}
		return model.WrapCLIError(
			model.ExitBuildFailed,
			fmt.Sprintf("%s %s failed", r.Cargo, strings.Join(args, " ")),
			err,
		)
	}

	return nil
}

// LookPath reports whether the runner's cargo binary is resolvable,
// without invoking it. Used by `espbuild doctor`.
func (r *Runner) LookPath() error {
	_, err := exec.LookPath(r.Cargo)
	return err
}
