// run.go implements the containerized build path: pulling the toolchain
// image, running one cargo command in a labeled container with the
// project bind-mounted, and cleaning up leftover build containers.
package docker

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/mmr-tortoise/espbuild/internal/model"
)

// workDir is where the project directory is bind-mounted inside the
// toolchain container. The espressif/idf-rust images expect sources
// under a writable mount; /project is their documented convention.
const workDir = "/project"

// cargoRegistryVolume is a named volume shared by all espbuild build
// containers so the crates.io registry cache survives between runs.
// Without it every --container build re-downloads the full dependency
// tree, which for an esp-idf-sys project is several hundred crates.
const cargoRegistryVolume = "espbuild-cargo-registry"

// RunOptions describes one containerized build command.
type RunOptions struct {
	// Image is the toolchain image reference.
	Image string

	// ProjectDir is the host path bind-mounted at /project.
	ProjectDir string

	// Command is the argument vector to run, e.g.
	// ["cargo", "build", "--target", "xtensa-esp32s3-espidf", "--release"].
	Command []string

	// Meta is stamped on the container as espbuild.* labels.
	Meta BuildMeta

	// Stdout and Stderr receive the demultiplexed container output.
	Stdout io.Writer
	Stderr io.Writer
}

// RunBuild executes one build command inside the toolchain image and
// returns once the container has exited. The container is removed
// afterwards whether the command succeeded or not; the registry cache
// volume persists.
//
// A non-zero command exit maps to ExitBuildFailed, every Docker API
// failure to ExitDockerNotRunning.
func RunBuild(ctx context.Context, cli *Client, opts RunOptions) error {
	if err := EnsureImage(ctx, cli, opts.Image, opts.Stderr); err != nil {
		return err
	}

	containerName := fmt.Sprintf("espbuild-%s-%d", sanitizeName(opts.Meta.Project), time.Now().Unix())

	created, err := cli.Inner().ContainerCreate(ctx,
		&container.Config{
			Image:      opts.Image,
			Cmd:        opts.Command,
			WorkingDir: workDir,
			Labels:     BuildLabels(opts.Meta),
		},
		&container.HostConfig{
			Binds: []string{
				opts.ProjectDir + ":" + workDir,
				cargoRegistryVolume + ":/root/.cargo/registry",
			},
		},
		nil, nil, containerName,
	)
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to create build container from %s", opts.Image),
			err,
		)
	}

	// Remove the container on every exit path below. Force covers the
	// case where we bail out while it is still running (e.g. ctx
	// cancelled mid-build).
	defer func() {
		_ = cli.Inner().ContainerRemove(context.WithoutCancel(ctx), created.ID,
			container.RemoveOptions{Force: true})
	}()

	if err := cli.Inner().ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to start build container",
			err,
		)
	}

	// Stream the build output while the container runs. Docker
	// multiplexes stdout/stderr over one connection; stdcopy demuxes
	// them back onto our two writers.
	logs, err := cli.Inner().ContainerLogs(ctx, created.ID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to attach to build container output",
			err,
		)
	}
	defer logs.Close()

	copyDone := make(chan error, 1)
	go func() {
		_, copyErr := stdcopy.StdCopy(opts.Stdout, opts.Stderr, logs)
		copyDone <- copyErr
	}()

	statusCh, errCh := cli.Inner().ContainerWait(ctx, created.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed waiting for build container",
			err,
		)
	case status := <-statusCh:
		// Drain the remaining output before reporting, so compiler
		// errors are fully printed ahead of our own failure message.
		<-copyDone

		if status.StatusCode != 0 {
			return model.NewCLIError(
				model.ExitBuildFailed,
				fmt.Sprintf("containerized build failed (exit code %d)", status.StatusCode),
			)
		}
	}

	return nil
}

// EnsureImage pulls the toolchain image unless it is already present
// locally. Pull progress (a JSON stream) is not rendered; a single
// line on progress is written instead because toolchain images are
// multi-gigabyte and a silent wait looks like a hang.
func EnsureImage(ctx context.Context, cli *Client, ref string, progress io.Writer) error {
	existing, err := cli.Inner().ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", ref)),
	})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to query local images",
			err,
		)
	}
	if len(existing) > 0 {
		return nil
	}

	fmt.Fprintf(progress, "Pulling toolchain image %s (this can take a while)...\n", ref)
	reader, err := cli.Inner().ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to pull image %s", ref),
			err,
		)
	}
	defer reader.Close()

	// The pull stream must be consumed to completion or the pull is
	// aborted when the reader is closed.
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed while pulling image %s", ref),
			err,
		)
	}
	return nil
}

// BuildContainer describes one leftover espbuild container found on the
// daemon.
type BuildContainer struct {
	// ID is the Docker container identifier.
	ID string `json:"id"`

	// Name is the container name without the leading "/" the API
	// returns.
	Name string `json:"name"`

	// Status is the Docker container state (e.g., "exited", "running").
	Status string `json:"status"`

	// Meta is the espbuild metadata parsed from the container's labels.
	Meta BuildMeta `json:"meta"`
}

// ListBuildContainers queries the Docker daemon for all containers with
// the espbuild managed-by label, including stopped ones. Containers
// whose labels fail to parse are skipped rather than failing the whole
// listing — a half-labeled container should not block cleanup of the
// rest.
func ListBuildContainers(ctx context.Context, cli *Client) ([]BuildContainer, error) {
	// Filtering server-side on the label is cheaper than listing all
	// containers and filtering in Go.
	filterArgs := filters.NewArgs(
		filters.Arg("label", LabelManagedBy+"="+ManagedByValue),
	)

	containers, err := cli.Inner().ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filterArgs,
	})
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to list Docker containers",
			err,
		)
	}

	result := make([]BuildContainer, 0, len(containers))
	for _, c := range containers {
		meta, err := ParseLabels(c.Labels)
		if err != nil {
			continue
		}

		name := ""
		if len(c.Names) > 0 {
			// Docker container names always start with "/"; strip it
			// for readability.
			name = trimLeadingSlash(c.Names[0])
		}

		result = append(result, BuildContainer{
			ID:     c.ID,
			Name:   name,
			Status: c.State,
			Meta:   *meta,
		})
	}

	return result, nil
}

// RemoveBuildContainers force-removes every leftover espbuild container
// and returns how many were removed.
func RemoveBuildContainers(ctx context.Context, cli *Client) (int, error) {
	found, err := ListBuildContainers(ctx, cli)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, bc := range found {
		if err := cli.Inner().ContainerRemove(ctx, bc.ID, container.RemoveOptions{Force: true}); err != nil {
			return removed, model.WrapCLIError(
				model.ExitDockerNotRunning,
				fmt.Sprintf("failed to remove container %s", bc.Name),
				err,
			)
		}
		removed++
	}
	return removed, nil
}

func trimLeadingSlash(s string) string {
	if len(s) > 0 && s[0] == '/' {
		return s[1:]
	}
	return s
}

// sanitizeName maps an arbitrary project name onto Docker's container
// name alphabet ([a-zA-Z0-9_.-], with an alphanumeric first character
// guaranteed by the "espbuild-" prefix every caller adds).
func sanitizeName(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '_', c == '.', c == '-':
			out = append(out, c)
		default:
			out = append(out, '-')
		}
	}
	if len(out) == 0 {
		return "project"
	}
	return string(out)
}
