package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scenecast/internal/narration"
)

type estimate struct {
	Seconds    float64 `json:"seconds"`
	WordBudget int     `json:"word_budget"`
}

func newEstimateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "estimate <file.py>",
		Short: "Estimate the running time of a Manim program and its narration word budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			seconds := narration.EstimateDuration(code)
			out := estimate{Seconds: seconds, WordBudget: narration.WordBudget(seconds)}

			if ctx.jsonOutput() {
				return writeJSON(cmd, out)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Estimated duration: %.1fs\nWord budget: %d\n", out.Seconds, out.WordBudget)
			return nil
		},
	}
}
