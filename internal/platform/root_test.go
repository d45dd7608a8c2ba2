package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindRoot(t *testing.T) {
	// base/
	//   ws/ (tandem.yaml)
	//     subdir/nested/
	//   docs/ (context/shared-context.md)
	//   empty/
	baseDir := t.TempDir()
	wsDir := filepath.Join(baseDir, "ws")
	nestedDir := filepath.Join(wsDir, "subdir", "nested")
	docsDir := filepath.Join(baseDir, "docs")
	emptyDir := filepath.Join(baseDir, "empty")

	require.NoError(t, os.MkdirAll(nestedDir, 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(docsDir, "context"), 0755))
	require.NoError(t, os.MkdirAll(emptyDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(wsDir, ConfigFile), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(docsDir, "context", "shared-context.md"), nil, 0644))

	tests := []struct {
		name      string
		startPath string
		wantRoot  string
	}{
		{"start at root", wsDir, wsDir},
		{"start nested deeply", nestedDir, wsDir},
		{"document marker", docsDir, docsDir},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindRoot(tt.startPath)
			require.NoError(t, err)
			assert.Equal(t, filepath.Clean(tt.wantRoot), filepath.Clean(got))
		})
	}

	t.Run("no root found", func(t *testing.T) {
		// The temp dir may itself live under a workspace on odd machines; only
		// assert when nothing above it matches.
		got, err := FindRoot(emptyDir)
		if err != nil {
			assert.ErrorIs(t, err, ErrRootNotFound)
		} else {
			assert.NotEqual(t, emptyDir, got)
		}
	})
}
