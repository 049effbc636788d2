// Package version provides build-time version information injected via ldflags.
//
//	go build -ldflags "-X github.com/criyle/iexec/pkg/version.Version=1.0.0 \
//	  -X github.com/criyle/iexec/pkg/version.Commit=$(git rev-parse --short HEAD)"
package version

// These variables are set at build time via -ldflags -X.
var (
	Version = "dev"
	Commit  = "unknown"
)

// String returns the package string printed by --version
func String() string {
	if Commit == "" || Commit == "unknown" {
		return "iexec " + Version
	}
	return "iexec " + Version + " (" + Commit + ")"
}
