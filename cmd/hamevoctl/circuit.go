package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seantiz/hamevo/internal/definition"
	"github.com/seantiz/hamevo/internal/evolution"
)

func newCircuitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "circuit <file>",
		Short: "Print the circuit a definition file would execute",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := definition.Load(args[0])
			if err != nil {
				return err
			}
			exp, _, err := doc.NewExperiment(evolution.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("build experiment: %w", err)
			}
			if err := definition.CheckCircuitSize(exp, cfg.MaxInstructions); err != nil {
				return err
			}
			qc, err := exp.BuildCircuit()
			if err != nil {
				return fmt.Errorf("build circuit: %w", err)
			}
			return printJSON(cmd, qc)
		},
	}
}
