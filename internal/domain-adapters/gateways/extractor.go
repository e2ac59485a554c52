package gateways

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ochairo/cauldron/internal/domain/interfaces"
)

// maxEntrySize caps a single archive entry (decompression bomb guard)
const maxEntrySize = 1 << 30

// ArchiveExtractor unpacks .tar.gz, .tgz and .zip source archives
type ArchiveExtractor struct {
	logger interfaces.Logger
}

// NewArchiveExtractor creates a new extractor
func NewArchiveExtractor(logger interfaces.Logger) *ArchiveExtractor {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &ArchiveExtractor{logger: logger}
}

// Extract unpacks archivePath into destDir. Any previous content of destDir
// is removed first so that every run starts from pristine sources.
func (e *ArchiveExtractor) Extract(ctx context.Context, archivePath, destDir string) error {
	if err := os.RemoveAll(destDir); err != nil {
		return fmt.Errorf("failed to clear extraction directory: %w", err)
	}
	if err := os.MkdirAll(destDir, 0750); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	name := strings.ToLower(archivePath)
	var err error
	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		err = e.extractTarGz(ctx, archivePath, destDir)
	case strings.HasSuffix(name, ".zip"):
		err = e.extractZip(ctx, archivePath, destDir)
	default:
		err = fmt.Errorf("unsupported archive format: %s", filepath.Base(archivePath))
	}
	if err != nil {
		return err
	}

	e.logger.Info("extracted source", interfaces.F("archive", archivePath), interfaces.F("dest", destDir))
	return nil
}

// safeJoin resolves an archive entry name inside destDir
func safeJoin(destDir, name string) (string, error) {
	//nolint:gosec // G305: Path traversal validated below
	target := filepath.Join(destDir, name)
	rel, err := filepath.Rel(destDir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid file path in archive: %s", name)
	}
	return target, nil
}

// checkLinkTarget rejects symlinks that are absolute or resolve outside destDir
func checkLinkTarget(destDir, link, linkname string) error {
	if filepath.IsAbs(linkname) {
		return fmt.Errorf("invalid symlink target in archive: %s -> %s", link, linkname)
	}
	resolved := filepath.Join(filepath.Dir(link), linkname)
	rel, err := filepath.Rel(destDir, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("invalid symlink target in archive: %s -> %s", link, linkname)
	}
	return nil
}

// extractTarGz extracts a .tar.gz file to destination directory
func (e *ArchiveExtractor) extractTarGz(ctx context.Context, tarPath, destDir string) error {
	//nolint:gosec // G304: File path tarPath is function parameter for extraction
	file, err := os.Open(tarPath)
	if err != nil {
		return fmt.Errorf("failed to open tar.gz: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer file.Close()

	gzr, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	//nolint:errcheck // Defer close on gzip reader
	defer gzr.Close()

	tr := tar.NewReader(gzr)

	// Collect symlinks for second pass (to handle cases where target doesn't exist yet)
	type symlinkInfo struct {
		target   string
		linkname string
	}
	var symlinks []symlinkInfo

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("tar read error: %w", err)
		}

		target, err := safeJoin(destDir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0750); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}

		case tar.TypeReg:
			//nolint:gosec // G115: Integer overflow from tar header mode is acceptable
			if err := writeEntry(target, os.FileMode(header.Mode), tr); err != nil {
				return err
			}

		case tar.TypeSymlink:
			if err := checkLinkTarget(destDir, target, header.Linkname); err != nil {
				return err
			}
			symlinks = append(symlinks, symlinkInfo{
				target:   target,
				linkname: header.Linkname,
			})

		default:
			e.logger.Warn("ignoring unsupported tar entry",
				interfaces.F("type", string(header.Typeflag)), interfaces.F("name", header.Name))
		}
	}

	// Second pass: create symlinks after all files exist
	for _, link := range symlinks {
		if err := os.MkdirAll(filepath.Dir(link.target), 0750); err != nil {
			return fmt.Errorf("failed to create directory for symlink: %w", err)
		}
		if err := os.Symlink(link.linkname, link.target); err != nil {
			// Some tarballs ship broken symlinks
			e.logger.Warn("failed to create symlink",
				interfaces.F("link", link.target), interfaces.F("target", link.linkname), interfaces.F("error", err))
		}
	}

	return nil
}

// extractZip extracts a .zip file to destination directory
func (e *ArchiveExtractor) extractZip(ctx context.Context, zipPath, destDir string) error {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("failed to open zip: %w", err)
	}
	//nolint:errcheck // Defer close on read-only archive
	defer zr.Close()

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		target, err := safeJoin(destDir, f.Name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0750); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("failed to open zip entry %s: %w", f.Name, err)
		}
		err = writeEntry(target, f.Mode().Perm()|0600, rc)
		_ = rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func writeEntry(target string, mode os.FileMode, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	//nolint:gosec // G304: target is validated by safeJoin
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.Copy(out, io.LimitReader(r, maxEntrySize)); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}
