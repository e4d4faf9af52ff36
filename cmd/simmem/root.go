package main

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// envPrefix marks the environment variables that provide flag defaults.
const envPrefix = "SIMMEM_"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "simmem",
		Short: "simmem emulates the timing of a DRAM behind an immediate memory.",
		Long: `simmem delays the responses of an immediate memory as a DRAM ` +
			`with an FR-FCFS scheduler would, while keeping the per-id ` +
			`response order.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return applyEnvDefaults(cmd)
		},
	}

	root.AddCommand(newRunCmd(), newVersionCmd())

	return root
}

// applyEnvDefaults loads .env from the working directory, if any, and uses
// SIMMEM_* variables as values for the flags not given on the command line.
// The flag max-cycles reads SIMMEM_MAX_CYCLES.
func applyEnvDefaults(cmd *cobra.Command) error {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	var setErr error

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if setErr != nil || f.Changed {
			return
		}

		v, ok := os.LookupEnv(envName(f.Name))
		if !ok {
			return
		}

		if err := f.Value.Set(v); err != nil {
			setErr = err
		}
	})

	return setErr
}

func envName(flag string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}
