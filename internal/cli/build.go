// Package cli — build.go implements the "espbuild build" command, the
// primary user-facing operation.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/espbuild/internal/config"
	"github.com/mmr-tortoise/espbuild/internal/model"
)

// buildFlags holds the flag values for the build command.
// These are bound to cobra flags in NewBuildCommand.
type buildFlags struct {
	configPath string // --config: explicit config file path
	target     string // --target: target triple or short chip name
	profile    string // --profile: release or debug
	release    bool   // --release: shorthand for --profile release
	noClean    bool   // --no-clean: skip cargo clean
	container  bool   // --container: build inside the toolchain image
}

// NewBuildCommand creates the "build" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewBuildCommand() *cobra.Command {
	flags := &buildFlags{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the firmware with a managed toolchain environment",
		Long: `Build the firmware for an ESP-IDF target.

The command sources the esp export script, prints the diagnostic variable,
clears variables that conflict with the build tool's auto-detection, runs
cargo clean and cargo build for the configured target, and finally clears
the toolchain variables again.

Examples:
  espbuild build
  espbuild build --target esp32s3 --release
  espbuild build --profile debug --no-clean
  espbuild build --container`,

		// The build command takes no positional arguments; everything is
		// configured via espbuild.yaml or flags.
		Args: cobra.NoArgs,

		// RunE is used instead of Run so we can return errors. Cobra will
		// pass them to the Execute error handler in root.go.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), flags, os.Stdout, os.Stderr)
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "", "Config file path (default: discover espbuild.yaml/.jsonc)")
	cmd.Flags().StringVar(&flags.target, "target", "", "Cross-compilation target (default: from config, xtensa-esp32s3-espidf)")
	cmd.Flags().StringVar(&flags.profile, "profile", "", "Build profile: release or debug (default: from config)")
	cmd.Flags().BoolVar(&flags.release, "release", false, "Shorthand for --profile release")
	cmd.Flags().BoolVar(&flags.noClean, "no-clean", false, "Skip cargo clean before the build")
	cmd.Flags().BoolVar(&flags.container, "container", false, "Run the build inside the toolchain image")

	return cmd
}

// runBuild loads the configuration, resolves flag overrides, and runs
// the build pipeline.
func runBuild(ctx context.Context, flags *buildFlags, stdout, stderr io.Writer) error {
	cwd, err := os.Getwd()
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to get current directory", err)
	}

	cfg, err := config.Load(cwd, flags.configPath)
	if err != nil {
		return err
	}
	VerboseLog("Project: %s (dir %s)", cfg.Project, cwd)

	target, profile, err := resolveTargetProfile(cfg, flags.target, flags.profile, flags.release)
	if err != nil {
		return err
	}
	VerboseLog("Target: %s, profile: %s", target, profile)

	report, pipeErr := runPipeline(ctx, pipelineOptions{
		cfg:        cfg,
		projectDir: cwd,
		target:     target,
		profile:    profile,
		noClean:    flags.noClean,
		buildStep:  true,
		container:  flags.container,
		stdout:     stdout,
		stderr:     stderr,
	})

	// The report is printed even when the pipeline failed, so scripts
	// consuming --json can see which step broke before the error lands
	// on stderr via Execute.
	printReport(stdout, report)
	return pipeErr
}

// resolveTargetProfile applies flag overrides on top of the config
// values. --release is a shorthand that conflicts with an explicit
// --profile debug.
func resolveTargetProfile(cfg *config.Config, targetFlag, profileFlag string, releaseFlag bool) (model.Target, model.Profile, error) {
	target := cfg.ResolvedTarget()
	if targetFlag != "" {
		t, err := model.ParseTarget(targetFlag)
		if err != nil {
			return "", "", model.WrapCLIError(model.ExitGeneralError, "invalid --target", err)
		}
		target = t
	}

	profile := cfg.ResolvedProfile()
	if profileFlag != "" {
		p, err := model.ParseProfile(profileFlag)
		if err != nil {
			return "", "", model.WrapCLIError(model.ExitGeneralError, "invalid --profile", err)
		}
		profile = p
	}
	if releaseFlag {
		if profileFlag != "" && profile != model.ProfileRelease {
			return "", "", model.NewCLIError(model.ExitGeneralError, "--release conflicts with --profile debug")
		}
		profile = model.ProfileRelease
	}

	return target, profile, nil
}

// printReport renders a BuildReport as text or JSON based on --json.
func printReport(w io.Writer, report *model.BuildReport) {
	if IsJSONOutput() {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			// Marshaling a plain struct cannot realistically fail; fall
			// back to the text rendering if it somehow does.
			printReportText(w, report)
			return
		}
		fmt.Fprintln(w, string(data))
		return
	}
	printReportText(w, report)
}

func printReportText(w io.Writer, report *model.BuildReport) {
	mode := "host"
	if report.Container {
		mode = "container"
	}
	fmt.Fprintf(w, "\n%s — %s (%s, %s)\n", report.Project, report.Target, report.Profile, mode)
	for _, step := range report.Steps {
		line := fmt.Sprintf("  %-10s %s", step.Name, step.Status)
		if step.Status == model.StepOK && step.Duration > 0 {
			line += fmt.Sprintf(" (%s)", step.Duration.Round(timeRounding))
		}
		if step.Detail != "" {
			line += "  " + step.Detail
		}
		fmt.Fprintln(w, line)
	}
}

// timeRounding keeps step durations readable in text output.
const timeRounding = 10 * time.Millisecond
