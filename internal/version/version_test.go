package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func stubBuildInfo(t *testing.T, bi *debug.BuildInfo, ok bool) {
	t.Helper()
	orig := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) { return bi, ok }
	t.Cleanup(func() { readBuildInfo = orig })
}

func TestString(t *testing.T) {
	stubBuildInfo(t, nil, false)
	s := String()
	for _, want := range []string{"cottagebot", Version, Commit, "go"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
}

func TestGet_BuildInfoFallback(t *testing.T) {
	stubBuildInfo(t, &debug.BuildInfo{
		Main: debug.Module{Version: "v0.3.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.time", Value: "2026-03-01T10:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}, true)

	got := Get()
	if got.Version != "v0.3.1" || got.Commit != "0123456" || got.BuildDate != "2026-03-01T10:00:00Z" || !got.Modified {
		t.Errorf("Get() = %+v", got)
	}
	if s := String(); !strings.Contains(s, "0123456-dirty") {
		t.Errorf("String() = %q, want dirty marker", s)
	}
}

func TestGet_LdflagsWin(t *testing.T) {
	stubBuildInfo(t, &debug.BuildInfo{
		Main:     debug.Module{Version: "v0.0.1"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "fffffffffff"}},
	}, true)

	origV, origC := Version, Commit
	Version, Commit = "v9.9.9", "abc1234"
	t.Cleanup(func() { Version, Commit = origV, origC })

	got := Get()
	if got.Version != "v9.9.9" || got.Commit != "abc1234" {
		t.Errorf("Get() = %+v, want ldflags values", got)
	}
}

func TestGet_DevelIgnored(t *testing.T) {
	stubBuildInfo(t, &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, true)
	if got := Get(); got.Version != "dev" {
		t.Errorf("Version = %q, want dev", got.Version)
	}
}
