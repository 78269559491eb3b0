package installer

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractArchive(t *testing.T) {
	data := buildArchive(t, map[string]string{
		"p/__init__.py": "VERSION = '1.0'\n",
		"p/sub/mod.py":  "x = 1\n",
	})
	dest := t.TempDir()

	digest, err := extractArchive(bytes.NewReader(data), dest)
	require.NoError(t, err)

	sum := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), digest)

	content, err := os.ReadFile(filepath.Join(dest, "p", "sub", "mod.py"))
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", string(content))
}

func TestExtractArchive_RejectsEscape(t *testing.T) {
	for _, name := range []string{"../evil.py", "/etc/evil", "p/../../evil"} {
		t.Run(name, func(t *testing.T) {
			data := buildArchive(t, map[string]string{name: "boom"})
			_, err := extractArchive(bytes.NewReader(data), t.TempDir())
			assert.ErrorContains(t, err, "escapes")
		})
	}
}

func TestExtractArchive_SkipsLinks(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "link", Linkname: "/etc/passwd", Typeflag: tar.TypeSymlink}))
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	dest := t.TempDir()
	_, err := extractArchive(&buf, dest)
	require.NoError(t, err)
	_, err = os.Lstat(filepath.Join(dest, "link"))
	assert.True(t, os.IsNotExist(err))
}

func TestExtractArchive_Corrupt(t *testing.T) {
	_, err := extractArchive(bytes.NewReader([]byte("not gzip")), t.TempDir())
	assert.ErrorContains(t, err, "gzip")
}
