// Package platform names the release targets and the artifacts built for them.
package platform

import (
	"fmt"
	"strings"
)

// Windows is the only GOOS whose executables carry a suffix.
const Windows = "windows"

// Platform is a GOOS/GOARCH pair.
type Platform struct {
	OS   string
	Arch string
}

// String returns the pair in go tool dist form, "linux/amd64".
func (p Platform) String() string {
	return p.OS + "/" + p.Arch
}

// all is the release matrix. Three Unix families plus one windows target.
var all = [...]Platform{
	{"linux", "amd64"},
	{"linux", "arm64"},
	{"linux", "386"},
	{"linux", "arm"},
	{"darwin", "amd64"},
	{"darwin", "arm64"},
	{"freebsd", "amd64"},
	{Windows, "amd64"},
}

// All returns a copy of the release matrix, in build order.
func All() []Platform {
	out := make([]Platform, len(all))
	copy(out, all[:])
	return out
}

// Parse reads "os/arch".
func Parse(s string) (Platform, error) {
	osName, arch, ok := strings.Cut(s, "/")
	if !ok || osName == "" || arch == "" || strings.Contains(arch, "/") {
		return Platform{}, fmt.Errorf("invalid platform %q (want os/arch)", s)
	}
	return Platform{OS: osName, Arch: arch}, nil
}

// ExeSuffix returns ".exe" for windows and "" for everything else.
func ExeSuffix(goos string) string {
	if goos == Windows {
		return ".exe"
	}
	return ""
}

// ArtifactName returns <binary>-<version>-<os>-<arch>[.exe]. An empty version
// leaves its segment empty rather than dropping it.
func ArtifactName(binary, version string, p Platform) string {
	return fmt.Sprintf("%s-%s-%s-%s%s", binary, version, p.OS, p.Arch, ExeSuffix(p.OS))
}
