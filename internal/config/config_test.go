package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/espbuild/internal/model"
)

// writeFile is a small fixture helper that creates a config file in dir.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// TestLoad_NoConfigFile verifies the zero-config path: an empty project
// directory yields pure esp-rs defaults.
func TestLoad_NoConfigFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir, "")
	require.NoError(t, err)

	assert.Equal(t, filepath.Base(dir), cfg.Project)
	assert.Equal(t, model.TargetESP32S3, cfg.ResolvedTarget())
	assert.Equal(t, model.ProfileRelease, cfg.ResolvedProfile())
	assert.Equal(t, "cargo", cfg.Cargo)
	assert.Equal(t, "LIBCLANG_PATH", cfg.DiagnosticVar)
	assert.Equal(t, []string{"IDF_PATH"}, cfg.PreBuildUnset)
	assert.Equal(t, model.DefaultTeardownUnset, cfg.TeardownUnset)
	assert.Equal(t, DefaultContainerImage, cfg.Container.Image)
}

// TestLoad_YAML verifies parsing of the primary config format and that
// explicit values win over defaults.
func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "espbuild.yaml", `
project: slint-chat-epd47
exportScript: /opt/esp/export-esp.sh
target: esp32s3
profile: debug
cargo: /usr/local/bin/cargo
diagnosticVar: LIBCLANG_PATH
preBuildUnset: [IDF_PATH, ESP_IDF_TOOLS_INSTALL_DIR]
teardownUnset:
  - LIBCLANG_PATH
  - IDF_PATH
container:
  image: espressif/idf-rust:esp32s3_1.77.0
`)

	cfg, err := Load(dir, "")
	require.NoError(t, err)

	assert.Equal(t, "slint-chat-epd47", cfg.Project)
	assert.Equal(t, "/opt/esp/export-esp.sh", cfg.ExportScript)
	assert.Equal(t, model.TargetESP32S3, cfg.ResolvedTarget())
	assert.Equal(t, model.ProfileDebug, cfg.ResolvedProfile())
	assert.Equal(t, "/usr/local/bin/cargo", cfg.Cargo)
	assert.Equal(t, []string{"IDF_PATH", "ESP_IDF_TOOLS_INSTALL_DIR"}, cfg.PreBuildUnset)
	assert.Equal(t, []string{"LIBCLANG_PATH", "IDF_PATH"}, cfg.TeardownUnset)
	assert.Equal(t, "espressif/idf-rust:esp32s3_1.77.0", cfg.Container.Image)
}

// TestLoad_JSONC verifies that comments and trailing commas in the
// JSON variant are tolerated.
func TestLoad_JSONC(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "espbuild.jsonc", `{
  // EPD47 board uses the S3
  "target": "esp32s3",
  "profile": "release",
  "preBuildUnset": ["IDF_PATH",],
}`)

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, model.TargetESP32S3, cfg.ResolvedTarget())
	assert.Equal(t, []string{"IDF_PATH"}, cfg.PreBuildUnset)
}

// TestLoad_DiscoveryOrder verifies that espbuild.yaml wins over the
// JSON variants when both exist.
func TestLoad_DiscoveryOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "espbuild.yaml", "project: from-yaml\n")
	writeFile(t, dir, "espbuild.json", `{"project": "from-json"}`)

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, "from-yaml", cfg.Project)
}

// TestLoad_ExplicitPath verifies --config semantics: the named file is
// used even when discovery would find another, and a missing named file
// is an error (unlike absent discovery).
func TestLoad_ExplicitPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "espbuild.yaml", "project: discovered\n")
	explicit := writeFile(t, dir, "ci.yaml", "project: explicit\n")

	cfg, err := Load(dir, explicit)
	require.NoError(t, err)
	assert.Equal(t, "explicit", cfg.Project)

	_, err = Load(dir, filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitConfigError, cliErr.Code)
}

// TestLoad_InvalidValues verifies that bad targets, profiles, and
// variable names are rejected with the config exit code.
func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad target", "target: esp8266\n"},
		{"bad profile", "profile: fastest\n"},
		{"bad var name", "teardownUnset: ['FOO=BAR']\n"},
		{"bad yaml", "target: [unclosed\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "espbuild.yaml", tt.content)

			_, err := Load(dir, "")
			require.Error(t, err)
			var cliErr *model.CLIError
			require.True(t, errors.As(err, &cliErr))
			assert.Equal(t, model.ExitConfigError, cliErr.Code)
		})
	}
}

// TestLoad_UnsupportedExtension verifies the error for formats we do
// not parse.
func TestLoad_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "espbuild.toml", "target = 'esp32s3'\n")

	_, err := Load(dir, path)
	assert.Error(t, err)
}

// TestConfig_ManagedVars verifies deduplication and ordering of the
// reported variable surface.
func TestConfig_ManagedVars(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir, "")
	require.NoError(t, err)

	// LIBCLANG_PATH appears as both diagnostic and teardown variable,
	// IDF_PATH as both pre-build and teardown; each must appear once.
	assert.Equal(t, []string{
		"LIBCLANG_PATH",
		"IDF_PATH",
		"IDF_TOOLS_PATH",
		"IDF_PYTHON_ENV_PATH",
	}, cfg.ManagedVars())
}

// TestExpandHome verifies ~ expansion for the export script path.
func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "export-esp.sh"), ExpandHome("~/export-esp.sh"))
	assert.Equal(t, home, ExpandHome("~"))
	assert.Equal(t, "/opt/export-esp.sh", ExpandHome("/opt/export-esp.sh"))
	assert.Equal(t, "relative/path.sh", ExpandHome("relative/path.sh"))
}
