package state

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sambigeara/lwwdict/pkg/crdt"
)

func TestStoreSaveLoad(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)

	snap, err := s.Load()
	require.NoError(t, err)
	require.Empty(t, snap.Adds)

	d := crdt.New[string, string]()
	d.AddAt("a", "1", 1)
	d.RemoveAt("a", 2)
	d.AddAt("b", "2", 3)
	require.NoError(t, s.Save(d.Snapshot()))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()

	snap, err = s.Load()
	require.NoError(t, err)
	require.Equal(t, d.Snapshot(), snap)
}

func TestStoreExclusive(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)

	_, err = Open(dir)
	require.ErrorIs(t, err, ErrLocked)

	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestStoreLoadCorrupt(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, os.WriteFile(s.Path(), []byte{0x0a, 0xff}, filePerm))

	_, err = s.Load()
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestReadFileMissing(t *testing.T) {
	snap, err := ReadFile(t.TempDir() + "/nope.bin")
	require.NoError(t, err)
	require.Empty(t, snap.Adds)
}

func TestFilePath(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	require.Equal(t, FilePath(dir), s.Path())
}
