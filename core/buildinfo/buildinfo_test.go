package buildinfo

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	stamp := func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{
			Main: debug.Module{Version: "v1.4.0"},
			Settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "1a2b3c4d5e6f"},
				{Key: "vcs.time", Value: "2025-05-20T08:00:00Z"},
				{Key: "vcs.modified", Value: "true"},
			},
		}, true
	}

	got := resolve(Info{Version: "dev"}, stamp)
	assert.Equal(t, Info{Version: "v1.4.0", Commit: "1a2b3c4d5e6f", Date: "2025-05-20T08:00:00Z", Modified: true}, got)
	assert.Equal(t, "v1.4.0 (1a2b3c4+dirty)", got.Short())

	linked := resolve(Info{Version: "v2.0.0", Commit: "abc"}, stamp)
	assert.Equal(t, "v2.0.0", linked.Version, "link time values win")
	assert.Equal(t, "abc", linked.Commit)

	none := resolve(Info{Version: "dev"}, func() (*debug.BuildInfo, bool) { return nil, false })
	assert.Equal(t, "dev", none.Short())
}
