package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/mmr-tortoise/espbuild/internal/model"
)

// discoveryNames are the config file names probed in the project
// directory, in priority order.
var discoveryNames = []string{
	"espbuild.yaml",
	"espbuild.yml",
	"espbuild.jsonc",
	"espbuild.json",
}

// DefaultExportScript is the conventional location espup writes the
// environment export script to.
const DefaultExportScript = "~/export-esp.sh"

// DefaultContainerImage is the official esp-rs toolchain image used for
// --container builds when the config names none.
const DefaultContainerImage = "espressif/idf-rust:esp32s3_latest"

// Container holds the settings for containerized builds.
type Container struct {
	// Image is the toolchain image to run the build in.
	Image string `yaml:"image" json:"image"`
}

// Config is the parsed espbuild project configuration. Field tags cover
// both YAML and JSON(C) so the same struct serves every supported
// format.
type Config struct {
	// Project is a display name for reports. Defaults to the base name
	// of the project directory.
	Project string `yaml:"project" json:"project"`

	// ExportScript is the path to the environment export script sourced
	// before host builds. Supports ~ expansion.
	ExportScript string `yaml:"exportScript" json:"exportScript"`

	// Target is the cross-compilation target (full triple or short chip
	// name, see model.ParseTarget).
	Target string `yaml:"target" json:"target"`

	// Profile is the cargo optimization profile ("release" or "debug").
	Profile string `yaml:"profile" json:"profile"`

	// Cargo is the cargo binary to invoke. Defaults to "cargo" resolved
	// via PATH; mainly overridden in tests and exotic setups.
	Cargo string `yaml:"cargo" json:"cargo"`

	// DiagnosticVar is printed before the build as a bootstrap sanity
	// check.
	DiagnosticVar string `yaml:"diagnosticVar" json:"diagnosticVar"`

	// PreBuildUnset lists variables cleared before invoking cargo
	// because they conflict with the build tool's auto-detection.
	PreBuildUnset []string `yaml:"preBuildUnset" json:"preBuildUnset"`

	// TeardownUnset lists variables cleared after the build so later
	// processes do not inherit stale toolchain configuration.
	TeardownUnset []string `yaml:"teardownUnset" json:"teardownUnset"`

	// Container holds containerized-build settings.
	Container Container `yaml:"container" json:"container"`
}

// Load returns the configuration for the given project directory.
//
// If explicitPath is non-empty it is loaded and a missing file is an
// error. Otherwise the discovery names are probed in dir; if none
// exists, pure defaults are returned. In every case the result has all
// defaults applied and has been validated.
func Load(dir, explicitPath string) (*Config, error) {
	var (
		cfg *Config
		err error
	)

	switch {
	case explicitPath != "":
		cfg, err = loadFile(explicitPath)
		if err != nil {
			return nil, err
		}
	default:
		path := discover(dir)
		if path == "" {
			// No config file — run on defaults. This is the common case
			// for projects that stick to the standard esp-rs layout.
			cfg = &Config{}
		} else {
			cfg, err = loadFile(path)
			if err != nil {
				return nil, err
			}
		}
	}

	cfg.applyDefaults(dir)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// discover returns the first existing config file in dir, or "".
func discover(dir string) string {
	for _, name := range discoveryNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// loadFile reads and parses a single config file, choosing the decoder
// by extension.
func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(
				model.ExitConfigError,
				fmt.Sprintf("config file not found: %s", path),
				err,
			)
		}
		return nil, model.WrapCLIError(
			model.ExitConfigError,
			fmt.Sprintf("failed to read config file %s", path),
			err,
		)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, model.WrapCLIError(
				model.ExitConfigError,
				fmt.Sprintf("failed to parse %s", path),
				err,
			)
		}
	case ".json", ".jsonc":
		// jsonc.ToJSON strips comments and trailing commas, then the
		// standard decoder does the actual parsing. Unknown fields are
		// silently ignored, which keeps old espbuild versions tolerant
		// of newer config files.
		if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
			return nil, model.WrapCLIError(
				model.ExitConfigError,
				fmt.Sprintf("failed to parse %s", path),
				err,
			)
		}
	default:
		return nil, model.NewCLIError(
			model.ExitConfigError,
			fmt.Sprintf("unsupported config format %q (expected .yaml, .yml, .json, or .jsonc)", filepath.Ext(path)),
		)
	}

	return &cfg, nil
}

// applyDefaults fills every unset field with its esp-rs default.
func (c *Config) applyDefaults(dir string) {
	if c.Project == "" {
		c.Project = filepath.Base(dir)
	}
	if c.ExportScript == "" {
		c.ExportScript = DefaultExportScript
	}
	c.ExportScript = ExpandHome(c.ExportScript)
	if c.Target == "" {
		c.Target = model.DefaultTarget.String()
	}
	if c.Profile == "" {
		c.Profile = model.ProfileRelease.String()
	}
	if c.Cargo == "" {
		c.Cargo = "cargo"
	}
	if c.DiagnosticVar == "" {
		c.DiagnosticVar = model.DefaultDiagnosticVar
	}
	if c.PreBuildUnset == nil {
		c.PreBuildUnset = append([]string(nil), model.DefaultPreBuildUnset...)
	}
	if c.TeardownUnset == nil {
		c.TeardownUnset = append([]string(nil), model.DefaultTeardownUnset...)
	}
	if c.Container.Image == "" {
		c.Container.Image = DefaultContainerImage
	}
}

// validate checks the cross-field invariants after defaults are applied.
func (c *Config) validate() error {
	if _, err := model.ParseTarget(c.Target); err != nil {
		return model.WrapCLIError(model.ExitConfigError, "invalid target in config", err)
	}
	if _, err := model.ParseProfile(c.Profile); err != nil {
		return model.WrapCLIError(model.ExitConfigError, "invalid profile in config", err)
	}
	if err := model.ValidateVarName(c.DiagnosticVar); err != nil {
		return model.WrapCLIError(model.ExitConfigError, "invalid diagnosticVar in config", err)
	}
	for _, name := range c.PreBuildUnset {
		if err := model.ValidateVarName(name); err != nil {
			return model.WrapCLIError(model.ExitConfigError, "invalid preBuildUnset entry in config", err)
		}
	}
	for _, name := range c.TeardownUnset {
		if err := model.ValidateVarName(name); err != nil {
			return model.WrapCLIError(model.ExitConfigError, "invalid teardownUnset entry in config", err)
		}
	}
	return nil
}

// ResolvedTarget returns the parsed Target. Only valid after Load, which
// validates the field.
func (c *Config) ResolvedTarget() model.Target {
	t, _ := model.ParseTarget(c.Target)
	return t
}

// ResolvedProfile returns the parsed Profile. Only valid after Load.
func (c *Config) ResolvedProfile() model.Profile {
	p, _ := model.ParseProfile(c.Profile)
	return p
}

// ManagedVars returns the union of the diagnostic, pre-build, and
// teardown variable names, deduplicated, in first-seen order. This is
// the variable surface `espbuild env` reports on.
func (c *Config) ManagedVars() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	add(c.DiagnosticVar)
	for _, name := range c.PreBuildUnset {
		add(name)
	}
	for _, name := range c.TeardownUnset {
		add(name)
	}
	return out
}

// ExpandHome replaces a leading "~/" (or a bare "~") with the current
// user's home directory. Paths without a tilde are returned unchanged,
// as are paths when the home directory cannot be determined.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
