package embedding

import (
	"fmt"
	"os"
)

// checkModelFile reports a readable error before the runtime tries to load a missing model.
func checkModelFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("embedding model %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("embedding model %s is a directory", path)
	}
	return nil
}
