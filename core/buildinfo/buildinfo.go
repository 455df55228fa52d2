// Package buildinfo reports which build of the bot is running.
package buildinfo

import (
	"runtime/debug"
	"strings"
	"sync"
)

// Stamped at link time, for example:
//
//	go build -ldflags "-X github.com/m3rciful/salonbot/core/buildinfo.Version=v1.4.0 \
//	  -X github.com/m3rciful/salonbot/core/buildinfo.Commit=$(git rev-parse HEAD)"
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// Info is the resolved build identity.
type Info struct {
	Version  string
	Commit   string
	Date     string
	Modified bool
}

var (
	readOnce sync.Once
	resolved Info
)

// Read returns the link time values, completed from the VCS stamp the Go
// toolchain embeds when they are missing.
func Read() Info {
	readOnce.Do(func() {
		resolved = resolve(Info{Version: Version, Commit: Commit, Date: Date}, debug.ReadBuildInfo)
	})
	return resolved
}

func resolve(info Info, read func() (*debug.BuildInfo, bool)) Info {
	bi, ok := read()
	if !ok || bi == nil {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.Date == "" {
				info.Date = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

// Short renders "v1.4.0 (1a2b3c4)" with a "+dirty" mark for modified trees.
func (i Info) Short() string {
	var b strings.Builder
	b.WriteString(i.Version)
	if i.Commit != "" {
		b.WriteString(" (")
		b.WriteString(i.Commit[:min(7, len(i.Commit))])
		if i.Modified {
			b.WriteString("+dirty")
		}
		b.WriteString(")")
	}
	return b.String()
}
