// pipeline.go implements the fixed build sequence shared by the build
// and clean commands:
//
//  1. source the export script and apply its environment (bootstrap)
//  2. print the diagnostic variable
//  3. clear the pre-build conflict variables
//  4. cargo clean, then cargo build
//  5. clear the teardown variables
//  6. print the (now empty) teardown variables
//
// The steps run strictly in this order. Unlike the shell script this
// replaces, every external command's exit status is checked: a failed
// bootstrap aborts before the build, and a failed clean or build aborts
// the run — but teardown still executes first, so the environment is
// clean after every run regardless of the build outcome.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mmr-tortoise/espbuild/internal/config"
	"github.com/mmr-tortoise/espbuild/internal/docker"
	"github.com/mmr-tortoise/espbuild/internal/envset"
	"github.com/mmr-tortoise/espbuild/internal/model"
	"github.com/mmr-tortoise/espbuild/internal/toolchain"
)

// pipelineOptions collects everything one pipeline run needs. The
// writers are parameters (rather than os.Stdout/os.Stderr directly) so
// tests can capture the diagnostic output and verify its ordering.
type pipelineOptions struct {
	cfg        *config.Config
	projectDir string
	target     model.Target
	profile    model.Profile

	// noClean skips the cargo clean step.
	noClean bool

	// buildStep disables the cargo build step; the clean command uses
	// the same pipeline with buildStep=false so that clean also runs
	// under the bootstrapped environment and gets the same teardown.
	buildStep bool

	// container routes clean+build through the toolchain image instead
	// of the host toolchain.
	container bool

	stdout io.Writer
	stderr io.Writer
}

// runPipeline executes the sequence and returns the report. The
// returned error, if any, is the first step failure; the report always
// describes how far the run got and is valid even on error.
func runPipeline(ctx context.Context, opts pipelineOptions) (*model.BuildReport, error) {
	report := &model.BuildReport{
		Project:   opts.cfg.Project,
		Target:    opts.target,
		Profile:   opts.profile,
		Container: opts.container,
	}

	if opts.container {
		return runContainerPipeline(ctx, opts, report)
	}

	// Step 1: bootstrap. The export script is an opaque collaborator;
	// only its effect on the environment is consumed. A failure here
	// means the toolchain is unusable, so the build is never attempted.
	start := time.Now()
	result, err := envset.Bootstrap(ctx, opts.cfg.ExportScript)
	if err != nil {
		report.AddStep("bootstrap", model.StepFailed, time.Since(start), opts.cfg.ExportScript)
		return report, err
	}
	report.AddStep("bootstrap", model.StepOK, time.Since(start),
		fmt.Sprintf("applied %d variables from %s", len(result.Applied), opts.cfg.ExportScript))
	VerboseLog("Bootstrap applied: %s", strings.Join(result.AppliedNames(), ", "))

	// Step 2: diagnostic print, strictly before the build. An empty
	// value here is the classic symptom of a broken export script.
	printVarValues(opts.stdout, envset.Values([]string{opts.cfg.DiagnosticVar}))

	// Step 3: clear the conflict variables so the build tool's own
	// toolchain auto-detection is not overridden by a stale install.
	envset.Clear(opts.cfg.PreBuildUnset)
	VerboseLog("Cleared before build: %s", strings.Join(opts.cfg.PreBuildUnset, ", "))

	// Step 4: clean, then build. buildErr is carried past teardown so
	// the environment is restored before the failure is reported.
	runner := toolchain.NewRunner(opts.cfg.Cargo, opts.projectDir)
	runner.Stdout = opts.stdout
	runner.Stderr = opts.stderr

	buildErr := runToolchainSteps(ctx, runner, opts, report)

	// Step 5: teardown, after the build step whether it succeeded or
	// failed. Order of the unsets is irrelevant; the reported order is
	// the configured one.
	start = time.Now()
	report.ClearedVars = envset.Clear(opts.cfg.TeardownUnset)
	report.AddStep("teardown", model.StepOK, time.Since(start),
		fmt.Sprintf("cleared %d variables", len(report.ClearedVars)))

	// Step 6: confirm the teardown variables are gone.
	printVarValues(opts.stdout, envset.Values(opts.cfg.TeardownUnset))

	return report, buildErr
}

// runToolchainSteps executes the clean and build stages on the host
// toolchain and records them in the report. It returns the first
// failure; a failed clean aborts the build.
func runToolchainSteps(ctx context.Context, runner *toolchain.Runner, opts pipelineOptions, report *model.BuildReport) error {
	if opts.noClean {
		report.AddStep("clean", model.StepSkipped, 0, "--no-clean")
	} else {
		start := time.Now()
		if err := runner.Clean(ctx); err != nil {
			report.AddStep("clean", model.StepFailed, time.Since(start), "")
			if opts.buildStep {
				report.AddStep("build", model.StepSkipped, 0, "clean failed")
			}
			return err
		}
		report.AddStep("clean", model.StepOK, time.Since(start), "")
	}

	if !opts.buildStep {
		return nil
	}

	detail := opts.cfg.Cargo + " " + strings.Join(toolchain.BuildArgs(opts.target, opts.profile), " ")
	start := time.Now()
	if err := runner.Build(ctx, opts.target, opts.profile); err != nil {
		report.AddStep("build", model.StepFailed, time.Since(start), detail)
		return err
	}
	report.AddStep("build", model.StepOK, time.Since(start), detail)
	return nil
}

// runContainerPipeline is the --container variant: no host bootstrap or
// teardown is needed because the toolchain image carries its own
// environment and the container's environment dies with it.
func runContainerPipeline(ctx context.Context, opts pipelineOptions, report *model.BuildReport) (*model.BuildReport, error) {
	report.AddStep("bootstrap", model.StepSkipped, 0, "toolchain image carries the environment")

	cli, err := docker.NewClient()
	if err != nil {
		report.AddStep("build", model.StepFailed, 0, "")
		return report, err
	}
	defer cli.Close()

	if err := cli.Ping(ctx); err != nil {
		report.AddStep("build", model.StepFailed, 0, "")
		return report, err
	}

	command := containerCommand(opts.target, opts.profile, opts.noClean, opts.buildStep)
	detail := strings.Join(command, " ")

	start := time.Now()
	err = docker.RunBuild(ctx, cli, docker.RunOptions{
		Image:      opts.cfg.Container.Image,
		ProjectDir: opts.projectDir,
		Command:    command,
		Meta: docker.BuildMeta{
			Project:   opts.cfg.Project,
			Target:    opts.target,
			CreatedAt: time.Now(),
		},
		Stdout: opts.stdout,
		Stderr: opts.stderr,
	})
	if err != nil {
		report.AddStep("build", model.StepFailed, time.Since(start), detail)
		return report, err
	}
	report.AddStep("build", model.StepOK, time.Since(start), detail)

	report.AddStep("teardown", model.StepSkipped, 0, "container environment is discarded")
	return report, nil
}

// containerCommand builds the argument vector run inside the toolchain
// image. Clean and build are chained in one shell so a single container
// serves the whole run.
func containerCommand(target model.Target, profile model.Profile, noClean, buildStep bool) []string {
	var parts []string
	if !noClean {
		parts = append(parts, "cargo clean")
	}
	if buildStep {
		parts = append(parts, "cargo "+strings.Join(toolchain.BuildArgs(target, profile), " "))
	}
	return []string{"sh", "-c", strings.Join(parts, " && ")}
}

// printVarValues writes NAME=VALUE diagnostic lines. Absent variables
// print with an empty value, the same thing `echo $NAME` shows after
// an unset.
func printVarValues(w io.Writer, values []envset.VarValue) {
	for _, v := range values {
		fmt.Fprintf(w, "%s=%s\n", v.Name, v.Value)
	}
}
