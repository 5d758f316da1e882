package toolchain

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/espbuild/internal/model"
)

// stubCargo writes an executable shell script that records each
// invocation's arguments (one line per call) into logPath and exits
// with the given code.
func stubCargo(t *testing.T, logPath string, exitCode int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cargo")
	script := "#!/bin/sh\necho \"$@\" >> " + logPath + "\nexit " + strconv.Itoa(exitCode) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

// invocations reads the stub's call log, one argument line per call.
func invocations(t *testing.T, logPath string) []string {
	t.Helper()
	data, err := os.ReadFile(logPath)
	if err != nil {
		return nil
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

// TestBuildArgs pins the literal cargo command line: the build contract
// requires exactly the configured target and the release flag, nothing
// else.
func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name     string
		target   model.Target
		profile  model.Profile
		expected []string
	}{
		{
			name:     "release build",
			target:   model.TargetESP32S3,
			profile:  model.ProfileRelease,
			expected: []string{"build", "--target", "xtensa-esp32s3-espidf", "--release"},
		},
		{
			name:     "debug build omits release flag",
			target:   model.TargetESP32S3,
			profile:  model.ProfileDebug,
			expected: []string{"build", "--target", "xtensa-esp32s3-espidf"},
		},
		{
			name:     "riscv target",
			target:   model.TargetESP32C3,
			profile:  model.ProfileRelease,
			expected: []string{"build", "--target", "riscv32imc-esp-espidf", "--release"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BuildArgs(tt.target, tt.profile))
		})
	}
}

// TestRunner_CleanThenBuild runs both operations against a recording
// stub and verifies each command line, and that each was issued exactly
// once.
func TestRunner_CleanThenBuild(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "calls.log")
	r := NewRunner(stubCargo(t, logPath, 0), t.TempDir())
	r.Stdout = &strings.Builder{}
	r.Stderr = &strings.Builder{}

	ctx := context.Background()
	require.NoError(t, r.Clean(ctx))
	require.NoError(t, r.Build(ctx, model.TargetESP32S3, model.ProfileRelease))

	calls := invocations(t, logPath)
	require.Len(t, calls, 2)
	assert.Equal(t, "clean", calls[0])
	assert.Equal(t, "build --target xtensa-esp32s3-espidf --release", calls[1])
}

// TestRunner_BuildFailure maps a non-zero cargo exit to the build
// failure exit code.
func TestRunner_BuildFailure(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "calls.log")
	r := NewRunner(stubCargo(t, logPath, 1), t.TempDir())
	r.Stdout = &strings.Builder{}
	r.Stderr = &strings.Builder{}

	err := r.Build(context.Background(), model.TargetESP32S3, model.ProfileRelease)
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitBuildFailed, cliErr.Code)
	assert.Contains(t, cliErr.Message, "build --target xtensa-esp32s3-espidf --release")
}

// TestRunner_CargoNotFound maps an unresolvable cargo binary to the
// toolchain exit code, which drives the doctor hint.
func TestRunner_CargoNotFound(t *testing.T) {
	r := NewRunner("espbuild-test-no-such-cargo", t.TempDir())
	r.Stdout = &strings.Builder{}
	r.Stderr = &strings.Builder{}

	err := r.Build(context.Background(), model.TargetESP32S3, model.ProfileRelease)
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitToolchainNotFound, cliErr.Code)

	assert.Error(t, r.LookPath())
}

// TestRunner_InheritsEnvironment verifies the bootstrap contract: cargo
// sees the variables set in the espbuild process environment.
func TestRunner_InheritsEnvironment(t *testing.T) {
	t.Setenv("LIBCLANG_PATH", "/opt/esp/libclang")

	dir := t.TempDir()
	path := filepath.Join(dir, "cargo")
	outPath := filepath.Join(dir, "env.out")
	script := "#!/bin/sh\nprintf '%s' \"$LIBCLANG_PATH\" > " + outPath + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))

	r := NewRunner(path, t.TempDir())
	r.Stdout = &strings.Builder{}
	r.Stderr = &strings.Builder{}
	require.NoError(t, r.Clean(context.Background()))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "/opt/esp/libclang", string(data))
}
