package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "index.html")

	require.NoError(t, WriteFileAtomic(path, []byte("<html></html>")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(got))

	require.NoError(t, WriteFileAtomic(path, []byte("v2")))
	got, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestCopyAtomic_FailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan")

	_, err := CopyAtomic(path, failingReader{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp file must be cleaned up")
}
