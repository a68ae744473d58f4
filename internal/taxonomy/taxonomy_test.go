package taxonomy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	tx := Default()
	require.NoError(t, tx.Validate())
	assert.Len(t, tx.Labels, 6)
	assert.Equal(t, "Legal Document", tx.Labels[2])
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("empty path uses default", func(t *testing.T) {
		tx, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, Default(), tx)
	})

	t.Run("yaml labels are trimmed", func(t *testing.T) {
		path := filepath.Join(dir, "ok.yaml")
		require.NoError(t, os.WriteFile(path, []byte("labels:\n  - ' Invoice '\n  - Receipt\n"), 0o644))
		tx, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"Invoice", "Receipt"}, tx.Labels)
	})

	t.Run("duplicates rejected", func(t *testing.T) {
		path := filepath.Join(dir, "dup.yaml")
		require.NoError(t, os.WriteFile(path, []byte("labels: [A, B, A]\n"), 0o644))
		_, err := Load(path)
		assert.ErrorContains(t, err, "duplicate label")
	})

	t.Run("empty list rejected", func(t *testing.T) {
		path := filepath.Join(dir, "empty.yaml")
		require.NoError(t, os.WriteFile(path, []byte("labels: []\n"), 0o644))
		_, err := Load(path)
		assert.ErrorContains(t, err, "no labels")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})
}
