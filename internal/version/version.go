// Package version reports build metadata for serverdeck.
package version

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// Set at build time with -ldflags "-X serverdeck/internal/version.Version=...".
var Version = "dev"
var Built = ""
var GitCommit = ""

type Info struct {
	Version   string `json:"version"`
	Major     int    `json:"major"`
	Minor     int    `json:"minor"`
	Patch     int    `json:"patch"`
	Built     string `json:"built,omitempty"`
	GitCommit string `json:"git_commit,omitempty"`
	GoVersion string `json:"go_version"`
}

func Get() Info {
	major, minor, patch := parseSemver(Version)
	return Info{
		Version:   Version,
		Major:     major,
		Minor:     minor,
		Patch:     patch,
		Built:     Built,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
	}
}

func (i Info) String() string {
	text := "serverdeck " + i.Version
	if i.GitCommit != "" {
		text += fmt.Sprintf(" (%s)", i.GitCommit)
	}
	if i.Built != "" {
		text += " built " + i.Built
	}
	return text
}

// parseSemver reads "v1.2.3" or "1.2.3-rc1"; missing parts are zero.
func parseSemver(value string) (int, int, int) {
	value = strings.TrimPrefix(strings.TrimSpace(value), "v")
	if cut := strings.IndexAny(value, "-+"); cut >= 0 {
		value = value[:cut]
	}
	parts := strings.SplitN(value, ".", 3)
	numbers := [3]int{}
	for i, part := range parts {
		parsed, err := strconv.Atoi(part)
		if err != nil {
			return 0, 0, 0
		}
		numbers[i] = parsed
	}
	return numbers[0], numbers[1], numbers[2]
}
