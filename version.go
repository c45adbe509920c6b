// Package toolchanger holds the build metadata of the toolchanger binaries.
package toolchanger

// Version is the release version.
const Version = "0.1.0"

// Build metadata, set with
//
//	-ldflags "-X github.com/felixgeelhaar/toolchanger.GitCommit=... -X github.com/felixgeelhaar/toolchanger.BuildDate=..."
var (
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// GetVersion returns the version, followed by the commit when it is known.
func GetVersion() string {
	if GitCommit == "" || GitCommit == "unknown" {
		return Version
	}
	return Version + "+" + GitCommit
}
