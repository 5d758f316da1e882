// Package model defines the domain types and value objects for the
// espbuild CLI.
//
// This package contains pure data structures with no external dependencies:
// cross-compilation targets, build profiles, the build report produced by
// a pipeline run, and the names of the toolchain environment variables
// that espbuild manages around a build.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
