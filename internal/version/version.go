// Package version holds build information for quotesync binaries.
//
// Set at link time:
//
//	go build -ldflags "-X github.com/rickgao/quotesync/internal/version.Version=1.0.0 \
//	                   -X github.com/rickgao/quotesync/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/rickgao/quotesync/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String is reported by --version and GET /health.
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}

// UserAgent identifies quotesync to the upstream market-data API.
func UserAgent() string {
	return "quotesync/" + Version
}
