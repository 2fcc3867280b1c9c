package processor

import (
	"errors"
	"io/fs"
	"os"

	"scenecast/internal/pkg/logger"
)

// Cleanup removes the temporary files of a job. Failures are logged and
// never change the job result.
type Cleanup struct {
	log *logger.Logger
}

func NewCleanup(log *logger.Logger) *Cleanup {
	return &Cleanup{log: log}
}

// Remove deletes each non-empty path, ignoring files that are already gone.
func (c *Cleanup) Remove(jobID string, paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		err := os.Remove(p)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			continue
		}
		c.log.WithJobID(jobID).Warn("temp file cleanup failed", "path", p, "error", err.Error())
	}
}
