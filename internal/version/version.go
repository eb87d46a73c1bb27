package version

import (
	"fmt"
	"runtime"
)

// Set via -ldflags at build time.
var (
	version   = "dev"
	commitSHA = ""
	buildDate = ""
)

func Version() string {
	v := version
	if commitSHA != "" {
		v += "+" + commitSHA
	}
	if buildDate != "" {
		v += " (" + buildDate + ")"
	}
	return v
}

// UserAgent is sent by the HTTP transport and by generated clients.
func UserAgent() string {
	return fmt.Sprintf("oasclient/%s (%s; %s)", version, runtime.GOOS, runtime.GOARCH)
}
