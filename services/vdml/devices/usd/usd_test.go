package usd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartport-go/errcode"
	"smartport-go/types"
)

func card(t *testing.T) *Card {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte("b"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "logs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logs", "run1.log"), nil, 0o644))
	return New(dir)
}

func cstr(b []byte) string {
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

func TestIsInstalled(t *testing.T) {
	assert.Equal(t, int32(1), card(t).IsInstalled())
	assert.Equal(t, int32(0), New("").IsInstalled())
	assert.Equal(t, int32(0), New(filepath.Join(t.TempDir(), "missing")).IsInstalled())
}

func TestListFiles(t *testing.T) {
	c := card(t)
	buf := make([]byte, 64)

	rc, err := c.ListFiles("/usd/", buf)
	require.NoError(t, err)
	assert.Equal(t, types.Success, rc)
	assert.Equal(t, "a.txt\nb.csv\nlogs", cstr(buf))

	_, err = c.ListFiles("/usd/logs", buf)
	require.NoError(t, err)
	assert.Equal(t, "run1.log", cstr(buf))

	_, err = c.ListFiles("", buf)
	require.NoError(t, err)
	assert.Equal(t, "a.txt\nb.csv\nlogs", cstr(buf))
}

func TestListFilesErrors(t *testing.T) {
	c := card(t)

	rc, err := c.ListFiles("/usd", make([]byte, 4))
	assert.ErrorIs(t, err, errcode.BufferTooSmall)
	assert.Equal(t, types.ErrInt, rc)

	_, err = c.ListFiles("/usd/nope", make([]byte, 64))
	assert.ErrorIs(t, err, errcode.InvalidParams)

	_, err = c.ListFiles("../..", make([]byte, 64))
	assert.Error(t, err)

	_, err = New("").ListFiles("/usd", make([]byte, 64))
	assert.ErrorIs(t, err, errcode.NotInstalled)
}
