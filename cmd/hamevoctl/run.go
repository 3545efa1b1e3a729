package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/seantiz/hamevo/internal/definition"
	"github.com/seantiz/hamevo/internal/evolution"
)

// runOutput is the JSON printed by the run command.
type runOutput struct {
	Backend    string  `json:"backend"`
	NumQubits  int     `json:"num_qubits"`
	Shots      int     `json:"shots,omitempty"`
	MeanReal   float64 `json:"mean_real"`
	MeanImag   float64 `json:"mean_imag"`
	StdDev     float64 `json:"std_dev"`
	DurationMS int64   `json:"duration_ms"`
}

func newRunCmd() *cobra.Command {
	var (
		backendName string
		shots       int
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Run the experiment described by a definition file",
		Long: `Run builds the experiment in the given JSON or YAML definition file,
executes it on the selected backend and prints the expectation value.

Example:
  hamevoctl run ising.yaml
  hamevoctl run ising.yaml --backend qasm --shots 4096`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := definition.Load(args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("backend") {
				doc.Backend = backendName
			}
			if cmd.Flags().Changed("shots") {
				doc.Shots = shots
			}

			exp, built, err := doc.NewExperiment(evolution.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("build experiment: %w", err)
			}
			if err := definition.CheckCircuitSize(exp, cfg.MaxInstructions); err != nil {
				return err
			}
			b, err := registry.Resolve(built.Backend, built.Shots)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			start := time.Now()
			res, err := exp.Run(ctx, b)
			if err != nil {
				return fmt.Errorf("run experiment: %w", err)
			}

			caps := b.Capabilities()
			out := runOutput{
				Backend:    caps.Name,
				NumQubits:  exp.NumQubits(),
				MeanReal:   real(res.Mean),
				MeanImag:   imag(res.Mean),
				StdDev:     res.StdDev,
				DurationMS: time.Since(start).Milliseconds(),
			}
			if !b.IsStatevector() {
				out.Shots = caps.Shots
			}
			return printJSON(cmd, out)
		},
	}

	cmd.Flags().StringVar(&backendName, "backend", "", "backend override (statevector, qasm or auto)")
	cmd.Flags().IntVar(&shots, "shots", 0, "shot count override for sampling backends")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "maximum run duration")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(output))
	return nil
}
