package gateways

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/ochairo/cauldron/internal/domain/interfaces"
)

// ArtifactRemover deletes build leftovers matching glob patterns relative to
// an install root. It never touches paths outside that root.
type ArtifactRemover struct {
	mount  func(root string) billy.Filesystem
	logger interfaces.Logger
}

// NewArtifactRemover creates a remover operating on the local disk
func NewArtifactRemover(logger interfaces.Logger) *ArtifactRemover {
	return NewArtifactRemoverFS(func(root string) billy.Filesystem { return osfs.New(root) }, logger)
}

// NewArtifactRemoverFS creates a remover whose install roots are mounted by mount
func NewArtifactRemoverFS(mount func(root string) billy.Filesystem, logger interfaces.Logger) *ArtifactRemover {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &ArtifactRemover{mount: mount, logger: logger}
}

// Remove deletes every entry under root matched by patterns and returns the
// removed paths in sorted order. A pattern matching nothing is not an error.
func (r *ArtifactRemover) Remove(ctx context.Context, root string, patterns []string) ([]string, error) {
	fs := r.mount(root)
	seen := make(map[string]struct{})
	var removed []string

	for _, pattern := range patterns {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		pattern = filepath.ToSlash(filepath.Clean(pattern))
		if filepath.IsAbs(pattern) || pattern == ".." || strings.HasPrefix(pattern, "../") {
			return removed, fmt.Errorf("cleanup pattern %q escapes the install root", pattern)
		}

		matches, err := util.Glob(fs, pattern)
		if err != nil {
			return removed, fmt.Errorf("invalid cleanup pattern %q: %w", pattern, err)
		}

		for _, match := range matches {
			if _, dup := seen[match]; dup {
				continue
			}
			seen[match] = struct{}{}

			if err := util.RemoveAll(fs, match); err != nil {
				return removed, fmt.Errorf("failed to remove %s: %w", match, err)
			}
			removed = append(removed, match)
			r.logger.Debug("removed artifact", interfaces.F("root", root), interfaces.F("path", match))
		}
	}

	sort.Strings(removed)
	return removed, nil
}
