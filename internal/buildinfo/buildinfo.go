// Package buildinfo holds build-time metadata injected with -ldflags.
package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// UnknownValue is reported for metadata that was not injected at build time.
const UnknownValue = "unknown"

// Set with -ldflags "-X github.com/brixfix/brixfix-go/internal/buildinfo.Version=..."
var (
	Version   = ""
	BuildDate = ""
	Commit    = ""
)

// Context contains build-time metadata that is not user-configurable.
type Context struct {
	Version   string
	BuildDate string
	Commit    string
	StartTime time.Time
}

// NewContext returns a Context for the given values.
func NewContext(version, buildDate, commit string) *Context {
	return &Context{Version: version, BuildDate: buildDate, Commit: commit, StartTime: time.Now()}
}

// Current returns the metadata of the running binary. A commit missing
// from ldflags is taken from the embedded VCS info when available.
func Current() *Context {
	c := NewContext(Version, BuildDate, Commit)
	if c.Commit == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" && len(s.Value) >= 7 {
					c.Commit = s.Value[:7]
				}
			}
		}
	}
	return c
}

// GetVersion returns the version or UnknownValue.
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return UnknownValue
	}
	return c.Version
}

// GetBuildDate returns the build date or UnknownValue.
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return UnknownValue
	}
	return c.BuildDate
}

// GetCommit returns the short commit hash or UnknownValue.
func (c *Context) GetCommit() string {
	if c == nil || c.Commit == "" {
		return UnknownValue
	}
	return c.Commit
}

// Uptime returns the time since the context was created.
func (c *Context) Uptime() time.Duration {
	if c == nil || c.StartTime.IsZero() {
		return 0
	}
	return time.Since(c.StartTime)
}

// UserAgent returns the User-Agent used for outgoing requests.
func (c *Context) UserAgent() string {
	return "brixfix/" + c.GetVersion()
}

// Release returns the release identifier reported to error tracking.
func (c *Context) Release() string {
	return "brixfix@" + c.GetVersion()
}

func (c *Context) String() string {
	return fmt.Sprintf("brixfix %s (commit %s, built %s, %s %s/%s)",
		c.GetVersion(), c.GetCommit(), c.GetBuildDate(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
