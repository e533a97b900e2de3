// Package version provides build and version information for the service.
package version

import "runtime/debug"

// Version is the service version, overridable at build time with
// -ldflags "-X vitalog.app/version.Version=v1.2.3".
var Version = "v0.1.0"

// Get returns the service version, preferring the module version embedded by
// the Go toolchain when available.
func Get() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return Version
}

// GoVersion returns the Go toolchain version the binary was built with.
func GoVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.GoVersion
	}
	return "unknown"
}
