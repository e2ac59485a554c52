// Package gateways defines interfaces for external service adapters.
package gateways

import (
	"context"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/ochairo/cauldron/internal/domain/entities"
)

// SourceFetcher retrieves a version's source archive. Implementations must
// verify the checksum before the archive becomes visible at the returned path.
type SourceFetcher interface {
	Fetch(ctx context.Context, src *entities.VersionSourceDescriptor, dest string) (string, error)
}

// ChecksumVerifier verifies file contents against a published digest
type ChecksumVerifier interface {
	VerifyChecksum(ctx context.Context, filePath string, algorithm digest.Algorithm, expected string) error
}

// SignatureVerifier verifies a detached signature for a fetched archive
type SignatureVerifier interface {
	ImportKeysFromURL(ctx context.Context, keysURL string) error
	VerifySignature(ctx context.Context, filePath, sigURL string) error
}

// Extractor unpacks a source archive into a directory
type Extractor interface {
	Extract(ctx context.Context, archivePath, destDir string) error
}

// CommandSpec describes one external process invocation
type CommandSpec struct {
	Args       []string
	Env        []string // KEY=VALUE pairs layered over the process environment
	WorkingDir string
	Timeout    time.Duration
	Retry      entities.RetryPolicy
}

// CommandResult contains the outcome of a process invocation
type CommandResult struct {
	Success  bool
	ExitCode int
	Attempts int
	Stdout   string
	Stderr   string
	Duration time.Duration
	Error    error
}

// CommandRunner executes external processes
type CommandRunner interface {
	Run(ctx context.Context, spec CommandSpec) *CommandResult
}

// ArtifactRemover deletes post-install artifacts under an installation root
type ArtifactRemover interface {
	Remove(ctx context.Context, root string, patterns []string) ([]string, error)
}

// LicenseShipper records the license a component is distributed under
type LicenseShipper interface {
	ShipLicense(ctx context.Context, installRoot, component, version, licenseID string) error
}

// Packager archives an installation root into a distributable tarball and
// returns the tarball's digest
type Packager interface {
	Package(ctx context.Context, root, archivePath string) (digest.Digest, error)
}

// UpstreamVersionLister lists the versions an upstream release page announces
type UpstreamVersionLister interface {
	ListVersions(ctx context.Context, spec entities.UpstreamSpec) ([]string, error)
}
