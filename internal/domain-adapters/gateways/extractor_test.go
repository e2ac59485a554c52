package gateways

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tarEntry struct {
	name     string
	body     string
	typeflag byte
	linkname string
}

func writeTarGz(t *testing.T, path string, entries []tarEntry) {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Typeflag: e.typeflag, Linkname: e.linkname, Mode: 0755}
		if e.typeflag == tar.TypeReg {
			hdr.Size = int64(len(e.body))
			hdr.Mode = 0644
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if e.typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0600))
}

func TestArchiveExtractor_TarGz(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "Python-3.7.1.tgz")
	writeTarGz(t, archive, []tarEntry{
		{name: "Python-3.7.1/", typeflag: tar.TypeDir},
		{name: "Python-3.7.1/configure", body: "#!/bin/sh\n", typeflag: tar.TypeReg},
		{name: "Python-3.7.1/Lib/os.py", body: "import sys\n", typeflag: tar.TypeReg},
		{name: "Python-3.7.1/python3", typeflag: tar.TypeSymlink, linkname: "python"},
		{name: "Python-3.7.1/python", body: "bin", typeflag: tar.TypeReg},
	})

	dest := filepath.Join(dir, "build", "python3-3.7.1")
	require.NoError(t, os.MkdirAll(dest, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "stale"), []byte("x"), 0600))

	require.NoError(t, NewArchiveExtractor(nil).Extract(context.Background(), archive, dest))

	data, err := os.ReadFile(filepath.Join(dest, "Python-3.7.1", "Lib", "os.py"))
	require.NoError(t, err)
	assert.Equal(t, "import sys\n", string(data))
	assert.NoFileExists(t, filepath.Join(dest, "stale"))

	link, err := os.Readlink(filepath.Join(dest, "Python-3.7.1", "python3"))
	require.NoError(t, err)
	assert.Equal(t, "python", link)
}

func TestArchiveExtractor_Zip(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "python-windows-3.7.1-amd64.zip")

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range map[string]string{
		"python.exe":   "MZ",
		"Lib/site.py":  "# site",
		"DLLs/_ssl.pyd": "MZ",
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(archive, buf.Bytes(), 0600))

	dest := filepath.Join(dir, "out")
	require.NoError(t, NewArchiveExtractor(nil).Extract(context.Background(), archive, dest))

	assert.FileExists(t, filepath.Join(dest, "python.exe"))
	assert.FileExists(t, filepath.Join(dest, "Lib", "site.py"))
	assert.FileExists(t, filepath.Join(dest, "DLLs", "_ssl.pyd"))
}

func TestArchiveExtractor_PathTraversal(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.tar.gz")
	writeTarGz(t, archive, []tarEntry{
		{name: "../../escaped", body: "x", typeflag: tar.TypeReg},
	})

	err := NewArchiveExtractor(nil).Extract(context.Background(), archive, filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid file path")
	assert.NoFileExists(t, filepath.Join(dir, "escaped"))
}

func TestArchiveExtractor_SymlinkEscape(t *testing.T) {
	tests := []struct {
		name     string
		linkname string
	}{
		{"absolute", "/etc/passwd"},
		{"parent", "../../outside"},
		{"nested parent", "Lib/../../../outside"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			archive := filepath.Join(dir, "evil.tar.gz")
			writeTarGz(t, archive, []tarEntry{
				{name: "Python-3.7.1/", typeflag: tar.TypeDir},
				{name: "Python-3.7.1/link", typeflag: tar.TypeSymlink, linkname: tt.linkname},
			})

			dest := filepath.Join(dir, "out")
			err := NewArchiveExtractor(nil).Extract(context.Background(), archive, dest)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid symlink target")

			_, statErr := os.Lstat(filepath.Join(dest, "Python-3.7.1", "link"))
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

func TestArchiveExtractor_UnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "source.tar.xz")
	require.NoError(t, os.WriteFile(archive, []byte("xz"), 0600))

	err := NewArchiveExtractor(nil).Extract(context.Background(), archive, filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported archive format")
}
