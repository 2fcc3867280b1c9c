package storage

import "scenecast/internal/ports"

// Store is the object store contract used by the API, the worker and the CLI.
type Store = ports.ObjectStore
