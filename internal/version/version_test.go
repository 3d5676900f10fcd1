package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestUserAgent(t *testing.T) {
	oldVersion, oldCommit := Version, GitCommit
	t.Cleanup(func() { Version, GitCommit = oldVersion, oldCommit })

	Version, GitCommit = "1.2.0", "abc1234def5678"
	want := "bellbridge/1.2.0 (abc1234; " + runtime.GOOS + "/" + runtime.GOARCH + ")"
	if got := UserAgent(); got != want {
		t.Errorf("UserAgent() = %q, want %q", got, want)
	}

	GitCommit = "unknown"
	if got := UserAgent(); !strings.Contains(got, "(unknown;") {
		t.Errorf("UserAgent() = %q", got)
	}
}

func TestGet(t *testing.T) {
	info := Get()
	if info.GoVersion != runtime.Version() || info.Version != Version {
		t.Errorf("Get() = %+v", info)
	}
	if !strings.Contains(info.Platform, "/") {
		t.Errorf("platform = %q", info.Platform)
	}
}
