package version

import (
	"strings"
	"sync"
)

const (
	// name is the service identifier reported in responses and logs.
	name = "zimg"
	// defaultVersion applies when no build metadata is available.
	defaultVersion = "1.0.0"
)

// Version reports the build version. It is overridden via -ldflags.
var Version = defaultVersion

var (
	mu       sync.Mutex
	resolved string
)

// Identifier returns the formatted service/version string for logs.
func Identifier() string {
	return name + "/" + currentVersion()
}

// ServerToken returns the value stamped into the Server response header.
func ServerToken() string {
	return name + "/" + currentVersion() + " (Unix)"
}

// Override substitutes the version string and clears cached values. Intended for tests.
func Override(v string) {
	mu.Lock()
	defer mu.Unlock()
	Version = v
	resolved = ""
}

func currentVersion() string {
	mu.Lock()
	defer mu.Unlock()
	if resolved != "" {
		return resolved
	}

	candidate := strings.TrimSpace(Version)
	if candidate == "" {
		candidate = defaultVersion
	}

	resolved = candidate
	return resolved
}
