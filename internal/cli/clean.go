// Package cli — clean.go implements the "espbuild clean" command.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/espbuild/internal/config"
	"github.com/mmr-tortoise/espbuild/internal/docker"
	"github.com/mmr-tortoise/espbuild/internal/model"
)

// cleanFlags holds the flag values for the clean command.
type cleanFlags struct {
	configPath string // --config: explicit config file path
	containers bool   // --containers: remove leftover build containers instead
}

// NewCleanCommand creates the "clean" cobra command.
func NewCleanCommand() *cobra.Command {
	flags := &cleanFlags{}

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove build artifacts (or leftover build containers)",
		Long: `Run cargo clean under the managed toolchain environment.

The same bootstrap/teardown applies as for build: the export script is
sourced first and the toolchain variables are cleared afterwards, because
cargo clean on an esp-idf-sys project can itself trigger the embuild
scripts.

With --containers, instead remove any leftover espbuild-labeled Docker
build containers (from interrupted --container builds).

Examples:
  espbuild clean
  espbuild clean --containers`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.containers {
				return runCleanContainers(cmd.Context(), os.Stdout)
			}
			return runClean(cmd.Context(), flags, os.Stdout, os.Stderr)
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "", "Config file path (default: discover espbuild.yaml/.jsonc)")
	cmd.Flags().BoolVar(&flags.containers, "containers", false, "Remove leftover espbuild Docker build containers")

	return cmd
}

// runClean runs the pipeline with the build step disabled: bootstrap,
// diagnostic, cargo clean, teardown.
func runClean(ctx context.Context, flags *cleanFlags, stdout, stderr io.Writer) error {
	cwd, err := os.Getwd()
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to get current directory", err)
	}

	cfg, err := config.Load(cwd, flags.configPath)
	if err != nil {
		return err
	}

	report, pipeErr := runPipeline(ctx, pipelineOptions{
		cfg:        cfg,
		projectDir: cwd,
		target:     cfg.ResolvedTarget(),
		profile:    cfg.ResolvedProfile(),
		buildStep:  false,
		stdout:     stdout,
		stderr:     stderr,
	})

	printReport(stdout, report)
	return pipeErr
}

// runCleanContainers removes all espbuild-labeled containers from the
// Docker daemon.
func runCleanContainers(ctx context.Context, stdout io.Writer) error {
	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer cli.Close()

	if err := cli.Ping(ctx); err != nil {
		return err
	}

	removed, err := docker.RemoveBuildContainers(ctx, cli)
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		fmt.Fprintf(stdout, "{\n  \"removedContainers\": %d\n}\n", removed)
	} else {
		fmt.Fprintf(stdout, "Removed %d build container(s)\n", removed)
	}
	return nil
}
