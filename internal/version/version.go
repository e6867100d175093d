// Package version provides the build version of the tools
package version

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// set by the linker
var (
	version = "v0.0.0"
	commit  = ""
)

// Version of the build
type Version struct {
	Major   uint
	Minor   uint
	Patch   uint
	Commit  string
	Runtime string
}

// Current returns the version of the build
func Current() Version {
	v := parse(version)
	v.Commit = commit
	v.Runtime = runtime.Version()
	return v
}

func parse(s string) Version {
	var v Version
	parts := strings.SplitN(strings.TrimPrefix(s, "v"), ".", 3)
	fields := []*uint{&v.Major, &v.Minor, &v.Patch}
	for i, p := range parts {
		// drop pre-release and build suffix
		if idx := strings.IndexAny(p, "-+"); idx >= 0 {
			p = p[:idx]
		}
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			break
		}
		*fields[i] = uint(n)
	}
	return v
}

// String returns the version in v{major}.{minor}.{patch} format,
// with the commit if present
func (v Version) String() string {
	s := fmt.Sprintf("v%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Commit != "" {
		s += "-" + v.Commit
	}
	return s
}
