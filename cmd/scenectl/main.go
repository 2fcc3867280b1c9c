// Command scenectl runs the scenecast pipeline stages locally: render a
// program, estimate its length, extract code from a reply and merge
// narration into a stored video.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"scenecast/internal/pkg/shutdown"
)

func main() {
	ctx, stop := shutdown.ExitOnSignal(context.Background())
	defer stop()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		stop()
		os.Exit(1)
	}
}
