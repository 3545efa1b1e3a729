// Package main provides hamevoctl, a CLI that builds and runs evolution
// experiments from definition files without the API server.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/seantiz/hamevo/internal/backend"
	"github.com/seantiz/hamevo/internal/backend/qasm"
	"github.com/seantiz/hamevo/internal/backend/statevector"
	"github.com/seantiz/hamevo/internal/config"
	"github.com/seantiz/hamevo/internal/model"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "v0.1.0"

var (
	// configFile is set by the --config flag.
	configFile string

	// cfg and registry are initialized by PersistentPreRunE.
	cfg      config.Config
	registry *backend.Registry
	logger   *slog.Logger
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hamevoctl",
		Short: "hamevoctl runs Hamiltonian evolution experiments locally",
		Long: `hamevoctl builds and executes evolution experiments described by JSON or
YAML definition files, using the same simulators as the hamevo server.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: $HAMEVO_CONFIG)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newCircuitCmd())
	root.AddCommand(newBackendsCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hamevoctl %s\n", version)
		},
	}
}

// setup loads configuration and registers the simulator backends.
func setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	c, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg = c
	logger = config.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel)

	registry = backend.NewRegistry()
	registry.Register(model.BackendStatevector, statevector.New(cfg.MaxQubits, logger))
	registry.Register(model.BackendQasm, qasm.New(qasm.Options{
		Shots:     cfg.Shots,
		MaxQubits: cfg.MaxQubits,
		Seed:      cfg.Seed,
	}, logger))
	return nil
}
