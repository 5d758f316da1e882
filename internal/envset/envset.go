package envset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/mmr-tortoise/espbuild/internal/model"
)

// captureScript is the sh program Bootstrap runs. The export script path
// is passed as a positional parameter ($1) rather than interpolated into
// the program text, so paths with spaces or quotes need no escaping.
//
// The script's own stdout is discarded (export-esp.sh prints activation
// banners) so that stdout carries nothing but the NUL-separated
// environment dump. stderr is left alone and captured separately for
// error reporting.
const captureScript = `. "$1" >/dev/null && env -0`

// Result describes what a Bootstrap run changed.
type Result struct {
	// Applied maps variable names to the values the export script set.
	// It contains only variables that were added or changed relative to
	// the environment before sourcing.
	Applied map[string]string
}

// AppliedNames returns the applied variable names in sorted order, for
// stable logging output.
func (r *Result) AppliedNames() []string {
	names := make([]string, 0, len(r.Applied))
	for name := range r.Applied {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Bootstrap sources the export script and applies the environment it
// produces to the current process.
//
// The script is an opaque collaborator: we neither parse nor interpret
// it, we only observe its effect on a shell's environment. Failure modes:
//   - sh not on PATH → CLIError with ExitToolchainNotFound
//   - script missing or exiting non-zero → CLIError with
//     ExitBootstrapFailed, including the script's stderr
func Bootstrap(ctx context.Context, scriptPath string) (*Result, error) {
	before := Snapshot()

	// #nosec G204 — the script path comes from config/flags, and it is
	// passed as a positional parameter, not spliced into shell text.
	cmd := exec.CommandContext(ctx, "sh", "-c", captureScript, "sh", scriptPath)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, model.WrapCLIError(
				model.ExitToolchainNotFound,
				"sh not found on PATH",
				err,
			)
		}
		message := fmt.Sprintf("failed to source export script %s", scriptPath)
		if errText := strings.TrimSpace(stderr.String()); errText != "" {
			message = fmt.Sprintf("%s: %s", message, errText)
		}
		return nil, model.WrapCLIError(model.ExitBootstrapFailed, message, err)
	}

	after := ParseNullSeparated(stdout.String())
	applied := Diff(before, after)

	if err := Apply(applied); err != nil {
		return nil, model.WrapCLIError(
			model.ExitBootstrapFailed,
			"failed to apply exported environment",
			err,
		)
	}

	return &Result{Applied: applied}, nil
}

// Snapshot returns the current process environment as a map.
// Entries without an '=' (which os.Environ should never produce)
// are skipped.
func Snapshot() map[string]string {
	env := make(map[string]string)
	for _, entry := range os.Environ() {
		name, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		env[name] = value
	}
	return env
}

// ParseNullSeparated parses `env -0` output into a map. NUL separation
// is used instead of newlines because environment values may themselves
// contain newlines (PATH manipulations in export scripts never do, but
// arbitrary variables can).
func ParseNullSeparated(output string) map[string]string {
	env := make(map[string]string)
	for _, entry := range strings.Split(output, "\x00") {
		if entry == "" {
			continue
		}
		name, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		env[name] = value
	}
	return env
}

// Diff returns the variables that are new or changed in after relative
// to before. Variables removed by the script are ignored: export
// scripts only add, and propagating removals would let a buggy script
// strip PATH from the build.
func Diff(before, after map[string]string) map[string]string {
	changed := make(map[string]string)
	for name, value := range after {
		if prev, ok := before[name]; !ok || prev != value {
			changed[name] = value
		}
	}
	return changed
}

// Apply sets each variable in the current process environment.
func Apply(vars map[string]string) error {
	for name, value := range vars {
		if err := os.Setenv(name, value); err != nil {
			return fmt.Errorf("setenv %s: %w", name, err)
		}
	}
	return nil
}

// Clear removes the named variables from the process environment and
// returns the names in the order they were cleared. The operation is a
// plain set of deletions: unsetting a variable that is already absent
// is not an error, and the order of names is preserved only for
// reporting.
func Clear(names []string) []string {
	cleared := make([]string, 0, len(names))
	for _, name := range names {
		// os.Unsetenv only fails on platforms without environment
		// support; on POSIX and Windows it cannot fail for a valid name.
		_ = os.Unsetenv(name)
		cleared = append(cleared, name)
	}
	return cleared
}

// VarValue is a name/value pair for diagnostic output. Set distinguishes
// an empty-but-present variable from an absent one.
type VarValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Set   bool   `json:"set"`
}

// Values reports the current state of the named variables, in the given
// order. Used for the pre-build diagnostic print and the post-teardown
// confirmation.
func Values(names []string) []VarValue {
	out := make([]VarValue, 0, len(names))
	for _, name := range names {
		value, ok := os.LookupEnv(name)
		out = append(out, VarValue{Name: name, Value: value, Set: ok})
	}
	return out
}
