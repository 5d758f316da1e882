// Package toolchain invokes the cargo build tool for cross-compilation.
//
// This package wraps the cargo CLI (via os/exec) for the two operations
// espbuild performs: cleaning prior build artifacts and building the
// firmware for a target triple. cargo is treated as an opaque
// collaborator; its stdout/stderr stream through to the user unchanged,
// and only its exit status is interpreted.
//
// Design decisions:
//   - We shell out to `cargo` rather than driving rustc directly because
//     the esp-idf-sys build scripts (CMake, ldproxy, embuild) only work
//     under cargo's build orchestration.
//   - All failures are wrapped in model.CLIError so the CLI layer can
//     map a missing toolchain and a failed build to distinct exit codes.
package toolchain
