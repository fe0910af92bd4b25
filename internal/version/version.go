// Package version holds build version metadata.
package version

// Version is the codesweep release version, overridden at build time via
// -ldflags "-X codesweep/internal/version.Version=...".
var Version = "0.3.0"
