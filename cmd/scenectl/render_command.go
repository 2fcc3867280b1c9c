package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"scenecast/internal/config"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var output string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "render <file.py>",
		Short: "Render a Manim program in the sandbox and write the video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			svc, cleanup, err := ctx.services(cmd.Context(), config.NeedNone)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := svc.Renderer().Render(cmd.Context(), code, timeout)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, res.Video, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{
					"output":           output,
					"scene":            res.SceneName,
					"bytes":            len(res.Video),
					"duration_seconds": res.DurationSeconds,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rendered %s (%d bytes, %.2fs) to %s\n",
				res.SceneName, len(res.Video), res.DurationSeconds, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "out.mp4", "Output video path")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Render timeout (defaults to the configured sandbox timeout)")
	return cmd
}
