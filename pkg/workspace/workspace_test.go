package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureDirCreates(t *testing.T) {
	want := filepath.Join(t.TempDir(), "a", "b")

	got, err := EnsureDir(want)
	require.NoError(t, err)
	require.Equal(t, want, got)

	info, err := os.Stat(got)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestEnsureDirDefault(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	got, err := EnsureDir("")
	require.NoError(t, err)
	require.Equal(t, rootDir, filepath.Base(got))
}
