// Package version carries the gateway build identity, stamped at
// build time through -ldflags.
package version

import "fmt"

// Version is the gateway release. Release builds override it with
//
//	go build -ldflags "-X github.com/isecnet-bridge/isecnet-go/pkg/version.Version=v1.4.0"
var Version = "dev"

// Commit is the VCS revision the binary was built from, when stamped.
var Commit = ""

// String returns the version, with the commit appended when stamped.
func String() string {
	if Commit == "" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, Commit)
}
