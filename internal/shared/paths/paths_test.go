package paths

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAbsolute(t *testing.T) {
	got, err := Normalize("/var/data//qr/")
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean("/var/data/qr"), got)
}

func TestNormalizeRelative(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)

	got, err := Normalize("output/qr")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "output", "qr"), got)
}

func TestNormalizeTrimsWhitespace(t *testing.T) {
	got, err := Normalize("  /var/data/qr  ")
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean("/var/data/qr"), got)
}

func TestNormalizeEmpty(t *testing.T) {
	_, err := Normalize("")
	assert.Error(t, err)

	_, err = Normalize("   ")
	assert.Error(t, err)
}

func TestNormalizeHomeExpansion(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := Normalize("~/qr_codes")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "qr_codes"), got)

	got, err = Normalize("~")
	require.NoError(t, err)
	assert.Equal(t, home, got)
}

func TestWithin(t *testing.T) {
	root := t.TempDir()

	assert.True(t, Within(root, root))
	assert.True(t, Within(filepath.Join(root, "nested"), root))
	assert.True(t, Within(filepath.Join(root, "a", "b"), root))

	assert.False(t, Within(filepath.Dir(root), root))
	assert.False(t, Within(root+"2", root))
	assert.False(t, Within(root, ""))
}

func TestWithinResolvesSymlinks(t *testing.T) {
	base := t.TempDir()
	real := filepath.Join(base, "real")
	require.NoError(t, os.Mkdir(real, 0o755))

	link := filepath.Join(base, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	assert.True(t, Within(link, real))
}

func TestDefault(t *testing.T) {
	got := Default()
	assert.True(t, filepath.IsAbs(got))
	assert.True(t, strings.HasSuffix(got, DefaultDirName))
}
