// Package cli — env.go implements the "espbuild env" command, the
// diagnostic view of the managed toolchain variables.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/espbuild/internal/config"
	"github.com/mmr-tortoise/espbuild/internal/envset"
	"github.com/mmr-tortoise/espbuild/internal/model"
)

// envFlags holds the flag values for the env command.
type envFlags struct {
	configPath  string // --config: explicit config file path
	unsetScript bool   // --unset-script: emit `unset` lines for eval
}

// NewEnvCommand creates the "env" cobra command.
func NewEnvCommand() *cobra.Command {
	flags := &envFlags{}

	cmd := &cobra.Command{
		Use:   "env",
		Short: "Show the managed toolchain environment variables",
		Long: `Show the toolchain environment variables espbuild manages and their
current values in this shell's environment.

espbuild clears these variables in its own process around a build, but it
cannot reach into the parent shell. If your interactive shell has stale
toolchain variables (e.g. from sourcing export-esp.sh manually), use:

  eval "$(espbuild env --unset-script)"

which emits plain POSIX unset lines for the managed variables.`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnv(flags, os.Stdout)
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "", "Config file path (default: discover espbuild.yaml/.jsonc)")
	cmd.Flags().BoolVar(&flags.unsetScript, "unset-script", false, "Emit POSIX unset lines for the managed variables")

	return cmd
}

// runEnv prints the managed variable surface in the requested format.
func runEnv(flags *envFlags, stdout io.Writer) error {
	cwd, err := os.Getwd()
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to get current directory", err)
	}

	cfg, err := config.Load(cwd, flags.configPath)
	if err != nil {
		return err
	}

	names := cfg.ManagedVars()

	if flags.unsetScript {
		writeUnsetScript(stdout, names)
		return nil
	}

	values := envset.Values(names)

	if IsJSONOutput() {
		data, err := json.MarshalIndent(values, "", "  ")
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "failed to encode environment values", err)
		}
		fmt.Fprintln(stdout, string(data))
		return nil
	}

	for _, v := range values {
		if v.Set {
			fmt.Fprintf(stdout, "%s=%s\n", v.Name, v.Value)
		} else {
			fmt.Fprintf(stdout, "%s (unset)\n", v.Name)
		}
	}
	return nil
}

// writeUnsetScript emits one `unset NAME` line per managed variable.
// Output is deliberately bare POSIX sh so it works under dash, bash,
// and zsh via eval.
func writeUnsetScript(w io.Writer, names []string) {
	for _, name := range names {
		fmt.Fprintf(w, "unset %s\n", name)
	}
}
