// Package envset manages the process environment around a toolchain
// build.
//
// The esp-rs toolchain is activated by sourcing a shell export script
// (~/export-esp.sh). A Go binary cannot source a script into its own
// environment, so Bootstrap runs the script under `sh`, captures the
// environment the shell ends up with (`env -0`), diffs it against the
// current process environment, and applies the added or changed
// variables with os.Setenv. Child processes (cargo) then inherit the
// toolchain configuration exactly as they would from a sourced script.
//
// Clear is the inverse: it removes a set of named variables from the
// process environment so nothing started afterwards inherits stale
// toolchain state.
package envset
