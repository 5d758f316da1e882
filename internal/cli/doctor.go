// Package cli — doctor.go implements the "espbuild doctor" command, a
// health report over the external collaborators: sh, the export script,
// cargo, and (optionally) the Docker daemon.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/espbuild/internal/config"
	"github.com/mmr-tortoise/espbuild/internal/docker"
	"github.com/mmr-tortoise/espbuild/internal/model"
)

// checkResult is one line of the doctor report.
type checkResult struct {
	// Name identifies the check ("sh", "export-script", "cargo", "docker").
	Name string `json:"name"`

	// OK is whether the check passed.
	OK bool `json:"ok"`

	// Detail explains the result: a resolved path on success, the
	// failure reason otherwise.
	Detail string `json:"detail"`

	// Required marks checks whose failure makes host builds impossible.
	// Docker is not required — it only gates --container builds.
	Required bool `json:"required"`
}

// NewDoctorCommand creates the "doctor" cobra command.
func NewDoctorCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that the build environment is usable",
		Long: `Check the external tools espbuild depends on:

  - sh            needed to source the export script
  - export script the configured toolchain export script exists
  - cargo         the configured cargo binary resolves
  - docker        the daemon responds (only needed for --container)

Exits non-zero if any required check fails.`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.Context(), configPath, os.Stdout)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Config file path (default: discover espbuild.yaml/.jsonc)")

	return cmd
}

// runDoctor executes all checks and renders the report. A failed
// required check produces a toolchain error exit code so CI can gate
// on `espbuild doctor`.
func runDoctor(ctx context.Context, configPath string, stdout io.Writer) error {
	cwd, err := os.Getwd()
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to get current directory", err)
	}

	cfg, err := config.Load(cwd, configPath)
	if err != nil {
		return err
	}

	checks := []checkResult{
		checkBinary("sh", "sh", true),
		checkExportScript(cfg.ExportScript),
		checkBinary("cargo", cfg.Cargo, true),
		checkDocker(ctx),
	}

	if IsJSONOutput() {
		data, err := json.MarshalIndent(checks, "", "  ")
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "failed to encode doctor report", err)
		}
		fmt.Fprintln(stdout, string(data))
	} else {
		for _, c := range checks {
			mark := "ok"
			if !c.OK {
				mark = "FAIL"
				if !c.Required {
					mark = "warn"
				}
			}
			fmt.Fprintf(stdout, "%-6s %-14s %s\n", mark, c.Name, c.Detail)
		}
	}

	for _, c := range checks {
		if c.Required && !c.OK {
			return model.NewCLIError(model.ExitToolchainNotFound, "build environment is not usable (see doctor output)")
		}
	}
	return nil
}

// checkBinary resolves a binary via PATH.
func checkBinary(name, binary string, required bool) checkResult {
	path, err := exec.LookPath(binary)
	if err != nil {
		return checkResult{Name: name, OK: false, Detail: fmt.Sprintf("%s not found on PATH", binary), Required: required}
	}
	return checkResult{Name: name, OK: true, Detail: path, Required: required}
}

// checkExportScript verifies the configured export script exists.
// The script is required: without it, host builds cannot bootstrap.
func checkExportScript(path string) checkResult {
	info, err := os.Stat(path)
	switch {
	case err != nil:
		return checkResult{Name: "export-script", OK: false, Detail: fmt.Sprintf("%s does not exist (run espup install)", path), Required: true}
	case info.IsDir():
		return checkResult{Name: "export-script", OK: false, Detail: fmt.Sprintf("%s is a directory", path), Required: true}
	default:
		return checkResult{Name: "export-script", OK: true, Detail: path, Required: true}
	}
}

// checkDocker pings the daemon. Not required: Docker only gates
// --container builds.
func checkDocker(ctx context.Context) checkResult {
	cli, err := docker.NewClient()
	if err != nil {
		return checkResult{Name: "docker", OK: false, Detail: "daemon not reachable (needed only for --container)", Required: false}
	}
	defer cli.Close()

	if err := cli.Ping(ctx); err != nil {
		return checkResult{Name: "docker", OK: false, Detail: "daemon not responding (needed only for --container)", Required: false}
	}
	return checkResult{Name: "docker", OK: true, Detail: "daemon responding", Required: false}
}
