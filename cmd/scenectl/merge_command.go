package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"scenecast/internal/config"
	"scenecast/internal/media/merge"
)

func newMergeCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "merge <video-location> <audio>",
		Short: "Merge a narration track into a stored video",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			audio, err := filepath.Abs(args[1])
			if err != nil {
				return fmt.Errorf("resolve audio path: %w", err)
			}
			out, err := filepath.Abs(output)
			if err != nil {
				return fmt.Errorf("resolve output path: %w", err)
			}

			svc, cleanup, err := ctx.services(cmd.Context(), config.NeedStorage)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := svc.Merger().Merge(cmd.Context(), merge.Job{
				VideoLocation: args[0],
				AudioPath:     audio,
				OutputPath:    out,
			})
			if err != nil {
				return err
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{
					"output":         res.OutputPath,
					"strategy":       res.Plan.Strategy.String(),
					"video_duration": res.Plan.VideoDuration,
					"audio_duration": res.Plan.AudioDuration,
					"final_duration": res.Plan.FinalDuration,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Merged (%s, %.2fs) to %s\n",
				res.Plan.Strategy, res.Plan.FinalDuration, res.OutputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "merged.mp4", "Output video path")
	return cmd
}
