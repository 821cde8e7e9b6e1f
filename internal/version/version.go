package version

// Version is set at build time with
// -ldflags "-X spot-arbitrage/internal/version.Version=v1.2.3".
var Version = "dev"

// String returns Version, or "dev" when it was set to an empty value.
func String() string {
	if Version == "" {
		return "dev"
	}
	return Version
}
