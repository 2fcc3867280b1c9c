package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scenecast/internal/codegen"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <reply.txt|->",
		Short: "Extract the python code block and summary from a model reply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			code, err := codegen.ExtractCode(reply)
			if err != nil {
				return err
			}
			summary := codegen.ExtractSummary(reply)

			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]string{"code": code, "summary": summary})
			}
			fmt.Fprintln(cmd.OutOrStdout(), code)
			if summary != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "summary: %s\n", summary)
			}
			return nil
		},
	}
}
