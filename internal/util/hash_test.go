package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileSHA256MatchesBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("questions"), 0o644))

	sum, err := FileSHA256(path)
	require.NoError(t, err)
	require.Equal(t, SHA256Hex([]byte("questions")), sum)
	require.Len(t, sum, 64)

	_, err = FileSHA256(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
