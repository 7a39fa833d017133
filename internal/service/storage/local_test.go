package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocalStore(t *testing.T) {
	t.Run("creates directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "warehouse", "staging")
		_, err := NewLocalStore(dir)
		require.NoError(t, err)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("empty dir rejected", func(t *testing.T) {
		_, err := NewLocalStore("")
		assert.Error(t, err)
	})
}

func TestLocalStore_SaveAndRemove(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)

	path, err := store.Save("report.csv", strings.NewReader("a,b\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasSuffix(path, "_report.csv"), "original name kept as suffix")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))

	// Same filename saves to distinct paths.
	other, err := store.Save("report.csv", strings.NewReader("x"))
	require.NoError(t, err)
	assert.NotEqual(t, path, other)

	require.NoError(t, store.Remove(path))
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	t.Run("remove missing is a no-op", func(t *testing.T) {
		assert.NoError(t, store.Remove(filepath.Join(dir, "gone")))
	})

	t.Run("path traversal in filename is flattened", func(t *testing.T) {
		p, err := store.Save("../../etc/passwd", strings.NewReader("nope"))
		require.NoError(t, err)
		assert.Equal(t, dir, filepath.Dir(p))
	})
}
