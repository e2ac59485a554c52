package gateways

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"

	"github.com/ochairo/cauldron/internal/domain/interfaces"
)

// Packager archives an installation root into a gzipped tarball
type Packager struct {
	logger interfaces.Logger
}

// NewPackager creates a new packager
func NewPackager(logger interfaces.Logger) *Packager {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &Packager{logger: logger}
}

// Package writes root as a tar.gz at archivePath, with entry names relative
// to root, and a "<hex>  <name>" checksum file next to it. The archive only
// appears at archivePath once it is complete.
func (p *Packager) Package(ctx context.Context, root, archivePath string) (digest.Digest, error) {
	if info, err := os.Stat(root); err != nil {
		return "", fmt.Errorf("failed to stat install root: %w", err)
	} else if !info.IsDir() {
		return "", fmt.Errorf("install root %s is not a directory", root)
	}

	if err := os.MkdirAll(filepath.Dir(archivePath), 0750); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	part := archivePath + ".part"
	dgst, err := p.createTarball(ctx, root, part)
	if err != nil {
		_ = os.Remove(part)
		return "", fmt.Errorf("failed to create tarball: %w", err)
	}
	if err := os.Rename(part, archivePath); err != nil {
		_ = os.Remove(part)
		return "", fmt.Errorf("failed to move tarball into place: %w", err)
	}

	sumLine := fmt.Sprintf("%s  %s\n", dgst.Encoded(), filepath.Base(archivePath))
	//nolint:gosec // G306: checksum files are meant to be world readable
	if err := os.WriteFile(archivePath+".sha256", []byte(sumLine), 0644); err != nil {
		return "", fmt.Errorf("failed to write checksum file: %w", err)
	}

	p.logger.Info("packaged install root",
		interfaces.F("root", root),
		interfaces.F("archive", archivePath),
		interfaces.F("digest", dgst.String()))
	return dgst, nil
}

// createTarball streams root into tarballPath and returns the sha256 of the
// written bytes
func (p *Packager) createTarball(ctx context.Context, root, tarballPath string) (digest.Digest, error) {
	//nolint:gosec // G304: File path tarballPath is constructed for package output
	file, err := os.Create(tarballPath)
	if err != nil {
		return "", fmt.Errorf("failed to create tarball file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer file.Close()

	digester := digest.Canonical.Digester()
	gzipWriter := gzip.NewWriter(io.MultiWriter(file, digester.Hash()))
	tarWriter := tar.NewWriter(gzipWriter)

	// WalkDir visits entries in lexical order, so equal trees give equal archives
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path: %w", err)
		}
		// Skip the root directory itself
		if relPath == "." {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		var linkTarget string
		if info.Mode()&os.ModeSymlink != 0 {
			if linkTarget, err = os.Readlink(path); err != nil {
				return fmt.Errorf("failed to read symlink %s: %w", path, err)
			}
		}

		header, err := tar.FileInfoHeader(info, linkTarget)
		if err != nil {
			return fmt.Errorf("failed to create tar header: %w", err)
		}
		header.Name = filepath.ToSlash(relPath)
		if info.IsDir() {
			header.Name += "/"
		}

		if err := tarWriter.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to write tar header: %w", err)
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		return copyFileInto(tarWriter, path)
	})
	if err != nil {
		return "", err
	}

	if err := tarWriter.Close(); err != nil {
		return "", fmt.Errorf("failed to finish tar stream: %w", err)
	}
	if err := gzipWriter.Close(); err != nil {
		return "", fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	if err := file.Sync(); err != nil {
		return "", fmt.Errorf("failed to flush tarball: %w", err)
	}
	return digester.Digest(), nil
}

func copyFileInto(w io.Writer, path string) error {
	//nolint:gosec // G304: File path from filepath.WalkDir for packaging
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer file.Close()

	if _, err := io.Copy(w, file); err != nil {
		return fmt.Errorf("failed to write file to tar: %w", err)
	}
	return nil
}
