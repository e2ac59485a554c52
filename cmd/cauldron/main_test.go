package main

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/cauldron/internal/external-adapters/yaml"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	state := t.TempDir()
	base := []string{
		"--cache-dir", filepath.Join(state, "cache"),
		"--build-dir", filepath.Join(state, "build"),
		"--state-dir", filepath.Join(state, "state"),
		"--log-level", "error",
	}
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append(base, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_PlanJSON(t *testing.T) {
	code, stdout, stderr := runCLI(t,
		"--platform", "linux/amd64/glibc", "--install-root", "/opt/agent", "-j", "4",
		"plan", "python3", "--json")
	require.Equal(t, 0, code, stderr)

	var report PlanReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, "python3", report.Component)
	assert.Equal(t, "3.7.1", report.Version)
	assert.Equal(t, "linux", report.Category)
	assert.Equal(t, "https://python.org/ftp/python/3.7.1/Python-3.7.1.tgz", report.Source)
	assert.Equal(t, "-I/opt/agent/embedded/include -O2 -g -pipe", report.Env["CFLAGS"])

	var names []string
	for _, s := range report.Steps {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"fetch", "extract", "configure", "compile", "install", "cleanup"}, names)
	assert.Equal(t, "./configure --prefix=/opt/agent/embedded --enable-shared --enable-ipv6 --with-dbmliborder=", report.Steps[2].Detail)
	assert.Equal(t, "make -j 4", report.Steps[3].Detail)
	assert.True(t, report.Steps[5].BestEffort)
}

func TestRun_PlanText(t *testing.T) {
	code, stdout, stderr := runCLI(t, "--platform", "darwin/arm64", "--install-root", "/opt/agent", "plan", "python3", "3.6.7")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Component:    python3 3.6.7")
	assert.Contains(t, stdout, "darwin/arm64 (darwin)")
	assert.Contains(t, stdout, "--with-universal-archs=intel")
	assert.Contains(t, stdout, "(best effort)")
}

func TestRun_PlanUnsupportedPlatform(t *testing.T) {
	code, stdout, stderr := runCLI(t, "--platform", "aix/ppc64", "--install-root", "/opt/agent", "plan", "python3")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "nothing would be built")

	code, _, stderr = runCLI(t, "--platform", "aix/ppc64", "--install-root", "/opt/agent", "--strict", "plan", "python3")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "unsupported platform")
}

func TestRun_List(t *testing.T) {
	code, stdout, stderr := runCLI(t, "list")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "python3")
	assert.Contains(t, stdout, "License: PSFL")
	assert.Contains(t, stdout, "windows-x64")
}

func TestRun_Versions(t *testing.T) {
	code, stdout, stderr := runCLI(t, "versions", "python3")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "* 3.7.1")
	assert.Contains(t, stdout, "  3.6.7")
	assert.Contains(t, stdout, "python3 (windows-x86):")
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"unknown command", []string{"frobnicate"}, 2},
		{"missing recipe argument", []string{"plan"}, 2},
		{"relative install root", []string{"--install-root", "opt", "list"}, 2},
		{"bad platform", []string{"--platform", "linux", "list"}, 2},
		{"bad log level", []string{"--log-level", "loud", "list"}, 2},
		{"keyring without verification", []string{"--keyring", "/nonexistent/keys.asc", "list"}, 2},
		{"unreadable keyring", []string{"--verify-signatures", "--keyring", "/nonexistent/keys.asc", "list"}, 1},
		{"unknown recipe", []string{"--install-root", "/opt/agent", "plan", "perl"}, 1},
		{"unknown version", []string{"--install-root", "/opt/agent", "--platform", "linux/amd64", "plan", "python3", "2.7.15"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, tt.args...)
			assert.Equal(t, tt.want, code)
			assert.Contains(t, stderr, "Error:")
		})
	}
}

func TestRun_Help(t *testing.T) {
	code, stdout, _ := runCLI(t, "--help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "Usage: cauldron")
}

// writeHelloSource packs a tiny autotools-shaped project and returns the
// archive path and its sha256
func writeHelloSource(t *testing.T, dir string) (string, string) {
	t.Helper()
	files := map[string]string{
		"hello-1.0/configure":  "#!/bin/sh\necho \"$@\" > config.args\n",
		"hello-1.0/install.sh": "#!/bin/sh\nset -e\nmkdir -p \"$DEST/bin\" \"$DEST/share/doc\"\ncp config.args \"$DEST/bin/hello\"\necho doc > \"$DEST/share/doc/README\"\n",
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0755, Size: int64(len(body)), Typeflag: tar.TypeReg}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	archive := filepath.Join(dir, "hello-1.0.tar.gz")
	require.NoError(t, os.WriteFile(archive, buf.Bytes(), 0600))
	sum := sha256.Sum256(buf.Bytes())
	return archive, hex.EncodeToString(sum[:])
}

func TestRun_BuildEndToEnd(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	mirror := t.TempDir()
	archive, sum := writeHelloSource(t, mirror)

	recipesDir := t.TempDir()
	recipe := fmt.Sprintf(`name: hello
license: MIT
default_version: "1.0"
source:
  url: file://%s
  versions:
    - version: "1.0"
      checksum: sha256:%s
relative_path: hello-{version}
configure:
  command: [sh, ./configure]
  prefix_args: ["--prefix={install_dir}"]
install: [sh, ./install.sh]
env:
  DEST: "{install_dir}"
cleanup:
  - share/doc
profiles:
  linux:
    configure_args: [--enable-shared]
`, archive, sum)
	require.NoError(t, os.WriteFile(filepath.Join(recipesDir, "hello.yml"), []byte(recipe), 0600))

	installRoot := t.TempDir()
	dist := t.TempDir()
	code, stdout, stderr := runCLI(t,
		"--recipes-dir", recipesDir,
		"--install-root", installRoot,
		"--platform", "linux/amd64",
		"build", "hello", "--package-dir", dist)
	require.Equal(t, 0, code, "stdout: %s\nstderr: %s", stdout, stderr)
	assert.Contains(t, stdout, "Build successful!")
	assert.Contains(t, stdout, "Package: ")
	assert.FileExists(t, filepath.Join(dist, "hello-1.0-linux-amd64.tar.gz"))
	assert.FileExists(t, filepath.Join(dist, "hello-1.0-linux-amd64.tar.gz.sha256"))

	args, err := os.ReadFile(filepath.Join(installRoot, "bin", "hello"))
	require.NoError(t, err)
	assert.Equal(t, "--prefix="+installRoot+" --enable-shared\n", string(args))
	assert.NoDirExists(t, filepath.Join(installRoot, "share", "doc"))

	licenses, err := yaml.ReadLicenseManifest(installRoot)
	require.NoError(t, err)
	assert.Equal(t, yaml.LicenseEntry{Version: "1.0", License: "MIT"}, licenses["hello"])
}

func TestRun_BuildChecksumMismatch(t *testing.T) {
	mirror := t.TempDir()
	archive, _ := writeHelloSource(t, mirror)

	recipesDir := t.TempDir()
	recipe := fmt.Sprintf(`name: hello
license: MIT
default_version: "1.0"
source:
  url: file://%s
  versions:
    - version: "1.0"
      checksum: sha256:%064d
relative_path: hello-{version}
configure:
  command: [sh, ./configure]
install: [sh, ./install.sh]
profiles:
  linux: {}
`, archive, 0)
	require.NoError(t, os.WriteFile(filepath.Join(recipesDir, "hello.yml"), []byte(recipe), 0600))

	installRoot := t.TempDir()
	code, stdout, _ := runCLI(t,
		"--recipes-dir", recipesDir,
		"--install-root", installRoot,
		"--platform", "linux/amd64",
		"build", "hello")
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "Build failed at fetching")

	entries, err := os.ReadDir(installRoot)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_Outdated(t *testing.T) {
	var down atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if down.Load() {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`<a href="1.0/">1.0/</a> <a href="1.1.0/">1.1.0/</a> <a href="2.0.0/">2.0.0/</a>`))
	}))
	defer srv.Close()

	recipesDir := t.TempDir()
	recipe := fmt.Sprintf(`name: hello
license: MIT
default_version: "1.0"
source:
  url: https://example.org/hello-{version}.tar.gz
  versions:
    - version: "1.0"
      checksum: sha256:%064d
upstream:
  url: %s
  pattern: 'href="([0-9.]+)/"'
relative_path: hello-{version}
configure:
  command: [sh, ./configure]
install: [sh, ./install.sh]
profiles:
  linux: {}
`, 0, srv.URL)
	require.NoError(t, os.WriteFile(filepath.Join(recipesDir, "hello.yml"), []byte(recipe), 0600))

	code, stdout, stderr := runCLI(t, "--recipes-dir", recipesDir, "outdated")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "newer: 1.1.0, 2.0.0")

	down.Store(true)
	code, stdout, _ = runCLI(t, "--recipes-dir", recipesDir, "outdated", "hello")
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "✗ hello")
}
