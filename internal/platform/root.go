package platform

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/aretw0/tandem/pkg/adapters/fs"
	"github.com/aretw0/tandem/pkg/core"
)

// ErrRootNotFound is returned by FindRoot when no ancestor looks like a
// workspace.
var ErrRootNotFound = errors.New("workspace root not found")

// rootMarkers are the paths that identify a workspace root.
func rootMarkers() []string {
	markers := []string{ConfigFile, filepath.Join(fs.HandoffsDir, fs.RegistryFile)}
	for _, t := range core.DocumentTypes {
		if p, ok := fs.DocumentPath(t); ok {
			markers = append(markers, p)
		}
	}
	return markers
}

// FindRoot walks upwards from startDir and returns the first directory that
// holds a tandem.yaml, a handoff registry or one of the canonical documents.
func FindRoot(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	markers := rootMarkers()
	dir := abs
	for {
		for _, m := range markers {
			if hasFile(dir, m) {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", ErrRootNotFound
}

func hasFile(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}
