package model

import (
	"fmt"
	"strings"
	"time"
)

// Target identifies the cross-compilation target triple the firmware is
// built for. The value is passed verbatim to `cargo build --target`.
//
// Only the ESP-IDF (std) triples supported by the esp-rs toolchain are
// considered valid; bare-metal (no_std) triples are out of scope because
// the projects espbuild drives link against ESP-IDF.
type Target string

const (
	// TargetESP32 is the original Xtensa ESP32.
	TargetESP32 Target = "xtensa-esp32-espidf"

	// TargetESP32S2 is the Xtensa ESP32-S2 (single core, USB OTG).
	TargetESP32S2 Target = "xtensa-esp32s2-espidf"

	// TargetESP32S3 is the Xtensa ESP32-S3 (dual core, the chip driving
	// the EPD47 e-paper boards this tool was written for). This is the
	// default target.
	TargetESP32S3 Target = "xtensa-esp32s3-espidf"

	// TargetESP32C3 is the RISC-V ESP32-C3.
	TargetESP32C3 Target = "riscv32imc-esp-espidf"

	// TargetESP32C6 is the RISC-V ESP32-C6 (also covers H2).
	TargetESP32C6 Target = "riscv32imac-esp-espidf"
)

// DefaultTarget is used when neither the config file nor the --target
// flag names a target.
const DefaultTarget = TargetESP32S3

// String returns the target triple. This method satisfies the
// fmt.Stringer interface, enabling human-readable output in CLI
// commands and logging.
func (t Target) String() string {
	return string(t)
}

// IsValid checks whether the Target value is one of the supported
// ESP-IDF target triples.
func (t Target) IsValid() bool {
	switch t {
	case TargetESP32, TargetESP32S2, TargetESP32S3, TargetESP32C3, TargetESP32C6:
		return true
	default:
		return false
	}
}

// IsXtensa reports whether the target is an Xtensa (as opposed to RISC-V)
// architecture. Xtensa targets require the forked espup toolchain and a
// LIBCLANG_PATH pointing at the esp-clang build, which is why the
// diagnostic variable matters most for them.
func (t Target) IsXtensa() bool {
	return strings.HasPrefix(string(t), "xtensa-")
}

// ParseTarget converts a string to a Target. Short chip names ("esp32s3")
// are accepted as a convenience and mapped to their full triple.
// Returns an error if the string does not match any supported target.
func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(s) {
	case "esp32":
		return TargetESP32, nil
	case "esp32s2", "esp32-s2":
		return TargetESP32S2, nil
	case "esp32s3", "esp32-s3":
		return TargetESP32S3, nil
	case "esp32c3", "esp32-c3":
		return TargetESP32C3, nil
	case "esp32c6", "esp32-c6", "esp32h2", "esp32-h2":
		return TargetESP32C6, nil
	}

	target := Target(s)
	if !target.IsValid() {
		return "", fmt.Errorf("unsupported target %q (valid: %s, %s, %s, %s, %s, or a short chip name like esp32s3)",
			s, TargetESP32, TargetESP32S2, TargetESP32S3, TargetESP32C3, TargetESP32C6)
	}
	return target, nil
}

// Profile selects the cargo optimization profile for the build.
// The build script this tool replaces always built with --release;
// debug exists for iteration on host-side logic.
type Profile string

const (
	// ProfileRelease builds with `cargo build --release`. This is the
	// default: ESP-IDF firmware images rarely fit flash in debug mode.
	ProfileRelease Profile = "release"

	// ProfileDebug builds without the --release flag.
	ProfileDebug Profile = "debug"
)

// String returns the string representation of the Profile.
func (p Profile) String() string {
	return string(p)
}

// IsValid checks whether the Profile value is one of the predefined
// valid profiles.
func (p Profile) IsValid() bool {
	switch p {
	case ProfileRelease, ProfileDebug:
		return true
	default:
		return false
	}
}

// ParseProfile converts a string to a Profile.
// Returns an error if the string does not match any valid profile.
func ParseProfile(s string) (Profile, error) {
	profile := Profile(strings.ToLower(s))
	if !profile.IsValid() {
		return "", fmt.Errorf("invalid profile %q (valid: release, debug)", s)
	}
	return profile, nil
}

// Default names of the toolchain environment variables espbuild manages.
// They come from the esp-rs ecosystem (export-esp.sh / esp-idf-sys) and
// can all be overridden in espbuild.yaml for projects whose export
// script sets a different surface.
var (
	// DefaultDiagnosticVar is printed before the build as a sanity check
	// that the export script actually ran: an empty LIBCLANG_PATH means
	// bindgen will pick up the host clang and fail on Xtensa targets.
	DefaultDiagnosticVar = "LIBCLANG_PATH"

	// DefaultPreBuildUnset is cleared before invoking cargo. A
	// preexisting IDF_PATH from a manually installed ESP-IDF checkout
	// overrides esp-idf-sys' managed toolchain auto-detection and pins
	// the build to whatever (possibly incompatible) IDF it points at.
	DefaultPreBuildUnset = []string{"IDF_PATH"}

	// DefaultTeardownUnset is cleared from the process environment after
	// the build so that nothing downstream inherits stale toolchain
	// configuration. Order is irrelevant; the set matches what
	// export-esp.sh and the esp-idf-sys build leave behind.
	DefaultTeardownUnset = []string{
		"LIBCLANG_PATH",
		"IDF_PATH",
		"IDF_TOOLS_PATH",
		"IDF_PYTHON_ENV_PATH",
	}
)

// ValidateVarName checks that a string is usable as an environment
// variable name in the POSIX sense: nonempty, no '=' and no NUL.
// Shells are stricter, but these are the two characters that would
// corrupt the env -0 capture and the exec environment.
func ValidateVarName(name string) error {
	if name == "" {
		return fmt.Errorf("environment variable name must not be empty")
	}
	if strings.ContainsAny(name, "=\x00") {
		return fmt.Errorf("invalid environment variable name %q", name)
	}
	return nil
}

// StepStatus describes the outcome of a single pipeline step in a
// BuildReport.
type StepStatus string

const (
	// StepOK means the step ran and succeeded.
	StepOK StepStatus = "ok"

	// StepFailed means the step ran and its external command exited
	// non-zero (or could not be started).
	StepFailed StepStatus = "failed"

	// StepSkipped means the step was not applicable for this run
	// (e.g., bootstrap in --container mode, clean with --no-clean).
	StepSkipped StepStatus = "skipped"
)

// Step names the pipeline stages in the order they execute. The report
// records them so scripts consuming --json output can tell exactly how
// far a run got.
type Step struct {
	// Name is the stage identifier: "bootstrap", "clean", "build",
	// "teardown".
	Name string `json:"name"`

	// Status is the stage outcome.
	Status StepStatus `json:"status"`

	// Duration is the wall-clock time the stage took. Zero for skipped
	// stages.
	Duration time.Duration `json:"duration"`

	// Detail carries stage-specific information, e.g. the number of
	// variables the bootstrap applied or the command line the build ran.
	Detail string `json:"detail,omitempty"`
}

// BuildReport is the result of one `espbuild build` (or `clean`) run.
// It is rendered as text or JSON by the CLI layer.
type BuildReport struct {
	// Project is the project name from config, or the working directory
	// base name when no config file names one.
	Project string `json:"project"`

	// Target is the cross-compilation target the build was invoked with.
	Target Target `json:"target"`

	// Profile is the optimization profile the build was invoked with.
	Profile Profile `json:"profile"`

	// Container is true when the build ran inside the toolchain image
	// instead of against the host toolchain.
	Container bool `json:"container"`

	// Steps lists the pipeline stages in execution order.
	Steps []Step `json:"steps"`

	// ClearedVars lists the environment variables removed during
	// teardown, in the order they were cleared.
	ClearedVars []string `json:"clearedVars,omitempty"`
}

// AddStep appends a stage record to the report.
func (r *BuildReport) AddStep(name string, status StepStatus, d time.Duration, detail string) {
	r.Steps = append(r.Steps, Step{Name: name, Status: status, Duration: d, Detail: detail})
}

// Succeeded reports whether every non-skipped stage completed
// successfully.
func (r *BuildReport) Succeeded() bool {
	for _, s := range r.Steps {
		if s.Status == StepFailed {
			return false
		}
	}
	return true
}

// ExitCode defines standard CLI exit codes. These codes allow scripts
// and CI systems to programmatically determine the outcome of a command.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitConfigError indicates the config file could not be read or
	// contains invalid values.
	ExitConfigError ExitCode = 2

	// ExitBootstrapFailed indicates the environment export script could
	// not be sourced. The build is never attempted in this case.
	ExitBootstrapFailed ExitCode = 3

	// ExitBuildFailed indicates the clean or build command exited
	// non-zero.
	ExitBuildFailed ExitCode = 4

	// ExitToolchainNotFound indicates the cargo binary (or sh) was not
	// found on PATH.
	ExitToolchainNotFound ExitCode = 5

	// ExitDockerNotRunning indicates the Docker daemon is not accessible
	// (only relevant for --container builds).
	ExitDockerNotRunning ExitCode = 6
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
