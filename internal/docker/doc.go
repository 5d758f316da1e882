// Package docker runs containerized firmware builds via the Docker
// Engine API.
//
// In --container mode the build does not touch the host toolchain at
// all: the official esp-rs image (espressif/idf-rust) carries cargo,
// the Xtensa rustc fork, and a matching libclang, so the same cargo
// command runs inside a container with the project bind-mounted.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows)
//   - Pulling the toolchain image when it is not present locally
//   - Creating, starting, streaming, and waiting on build containers
//   - espbuild.* container labels, which let `espbuild clean
//     --containers` find and remove leftover build containers
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled for broad compatibility.
package docker
