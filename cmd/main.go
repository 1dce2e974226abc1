package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:   "toy-mor",
		Short: "Symbolic MNA formulation and model-order reduction of linear circuits",
		Long: `toy-mor builds the symbolic modified nodal analysis system of a linear
circuit netlist and simplifies it by removing the matrix terms that matter
least to a chosen transfer function.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(cmd.ErrOrStderr(), verbose)
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every reduction trial")
	root.AddCommand(newFormulateCmd(), newSweepCmd(), newReduceCmd())
	return root
}

func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
