package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/espbuild/internal/config"
	"github.com/mmr-tortoise/espbuild/internal/model"
)

// loadDefaultConfig returns a defaults-only config for flag resolution
// tests.
func loadDefaultConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(t.TempDir(), "")
	require.NoError(t, err)
	return cfg
}

// TestResolveTargetProfile covers flag/config precedence and the
// --release shorthand.
func TestResolveTargetProfile(t *testing.T) {
	cfg := loadDefaultConfig(t)

	t.Run("defaults from config", func(t *testing.T) {
		target, profile, err := resolveTargetProfile(cfg, "", "", false)
		require.NoError(t, err)
		assert.Equal(t, model.TargetESP32S3, target)
		assert.Equal(t, model.ProfileRelease, profile)
	})

	t.Run("flags override config", func(t *testing.T) {
		target, profile, err := resolveTargetProfile(cfg, "esp32c3", "debug", false)
		require.NoError(t, err)
		assert.Equal(t, model.TargetESP32C3, target)
		assert.Equal(t, model.ProfileDebug, profile)
	})

	t.Run("release shorthand", func(t *testing.T) {
		_, profile, err := resolveTargetProfile(cfg, "", "", true)
		require.NoError(t, err)
		assert.Equal(t, model.ProfileRelease, profile)
	})

	t.Run("release conflicts with profile debug", func(t *testing.T) {
		_, _, err := resolveTargetProfile(cfg, "", "debug", true)
		assert.Error(t, err)
	})

	t.Run("invalid target flag", func(t *testing.T) {
		_, _, err := resolveTargetProfile(cfg, "esp8266", "", false)
		assert.Error(t, err)
	})
}

// TestPrintReportText spot-checks the human-readable rendering.
func TestPrintReportText(t *testing.T) {
	report := &model.BuildReport{
		Project: "slint-chat-epd47",
		Target:  model.TargetESP32S3,
		Profile: model.ProfileRelease,
	}
	report.AddStep("bootstrap", model.StepOK, 120*time.Millisecond, "")
	report.AddStep("clean", model.StepSkipped, 0, "--no-clean")
	report.AddStep("build", model.StepFailed, 3*time.Second, "cargo build --target xtensa-esp32s3-espidf --release")

	var out strings.Builder
	printReportText(&out, report)
	text := out.String()

	assert.Contains(t, text, "slint-chat-epd47 — xtensa-esp32s3-espidf (release, host)")
	assert.Contains(t, text, "bootstrap")
	assert.Contains(t, text, "skipped")
	assert.Contains(t, text, "--no-clean")
	assert.Contains(t, text, "failed")
}

// TestWriteUnsetScript verifies the eval-able output of
// `espbuild env --unset-script`.
func TestWriteUnsetScript(t *testing.T) {
	var out strings.Builder
	writeUnsetScript(&out, []string{"LIBCLANG_PATH", "IDF_PATH"})
	assert.Equal(t, "unset LIBCLANG_PATH\nunset IDF_PATH\n", out.String())
}
