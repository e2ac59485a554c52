package entities

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

// PlatformDescriptor identifies the host a build runs on
type PlatformDescriptor struct {
	OS   string // GOOS-style family: linux, darwin, windows, aix, freebsd, ...
	Arch string // amd64, 386, arm64, ...
	Libc string // glibc, musl, msvc, libSystem, or empty when unknown
}

func (p PlatformDescriptor) String() string {
	if p.Libc == "" {
		return p.OS + "/" + p.Arch
	}
	return p.OS + "/" + p.Arch + "/" + p.Libc
}

// ParsePlatform parses "os/arch[/libc]"
func ParsePlatform(s string) (PlatformDescriptor, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return PlatformDescriptor{}, fmt.Errorf("invalid platform %q: expected os/arch[/libc]", s)
	}

	desc := PlatformDescriptor{
		OS:   strings.ToLower(parts[0]),
		Arch: strings.ToLower(parts[1]),
	}
	if len(parts) == 3 {
		desc.Libc = strings.ToLower(parts[2])
	}
	return desc, nil
}

// DetectPlatform describes the running host
func DetectPlatform() PlatformDescriptor {
	desc := PlatformDescriptor{OS: runtime.GOOS, Arch: runtime.GOARCH}

	switch runtime.GOOS {
	case "windows":
		desc.Libc = "msvc"
	case "darwin":
		desc.Libc = "libSystem"
	case "linux":
		desc.Libc = "glibc"
		if hasMuslLoader() {
			desc.Libc = "musl"
		}
	}
	return desc
}

func hasMuslLoader() bool {
	for _, arch := range []string{"x86_64", "aarch64", "armhf", "i386"} {
		if _, err := os.Stat("/lib/ld-musl-" + arch + ".so.1"); err == nil {
			return true
		}
	}
	return false
}

// PlatformCategory is one of the finite set of build variants a recipe may define
type PlatformCategory string

// Platform categories in selection priority order
const (
	CategoryWindowsX86  PlatformCategory = "windows-x86"
	CategoryWindowsX64  PlatformCategory = "windows-x64"
	CategoryWindows     PlatformCategory = "windows"
	CategoryDarwin      PlatformCategory = "darwin"
	CategoryLinux       PlatformCategory = "linux"
	CategoryOtherUnix   PlatformCategory = "other-unix"
	CategoryUnsupported PlatformCategory = "unsupported"
)

// ParseCategory validates a category name as written in recipe files
func ParseCategory(s string) (PlatformCategory, error) {
	c := PlatformCategory(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CategoryWindowsX86, CategoryWindowsX64, CategoryWindows,
		CategoryDarwin, CategoryLinux, CategoryOtherUnix:
		return c, nil
	}
	return "", fmt.Errorf("unknown platform category %q", s)
}

// BuildMode selects how a profile produces the installed tree
type BuildMode string

const (
	// ModeAutotools runs configure, compile and install from source.
	ModeAutotools BuildMode = "autotools"
	// ModePrebuilt copies an already-built distribution into place.
	ModePrebuilt BuildMode = "prebuilt"
)

// PlatformProfile is the platform-specific subset of a recipe
type PlatformProfile struct {
	Category       PlatformCategory
	Dependencies   []string
	ConfigureArgs  []string
	Env            map[string]string
	DefaultVersion string      // overrides the recipe default when set
	Source         *SourceSpec // overrides the recipe source when set
	RelativePath   string
	Mode           BuildMode
	InstallCommand []string // prebuilt mode only
	Cleanup        []string
	ReplaceCleanup bool // profile cleanup replaces the recipe's instead of extending it
	Noop           bool
}

// NoopProfile is the fallback selected in lenient mode when no category
// matches. It carries no dependencies, flags or steps.
func NoopProfile() *PlatformProfile {
	return &PlatformProfile{
		Category: CategoryUnsupported,
		Mode:     ModeAutotools,
		Noop:     true,
	}
}
