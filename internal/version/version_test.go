package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionStrings_ContainParts(t *testing.T) {
	assert.NotEmpty(t, Version)
	assert.NotEmpty(t, Revision)
	assert.Equal(t, "b2mirror", AppName)

	assert.Contains(t, Short(), Version)
	assert.Contains(t, Short(), Revision)
	assert.True(t, strings.HasPrefix(ShortWithApp(), AppName+" "))

	detailed := Detailed()
	assert.Contains(t, detailed, Version)
	assert.Contains(t, detailed, "/")
	assert.True(t, strings.HasPrefix(DetailedWithApp(), AppName+" "))
}

func TestApplyBuildInfo_PopulatesDefaults(t *testing.T) {
	origVersion, origRevision, origBuildDate := Version, Revision, BuildDate
	t.Cleanup(func() {
		Version, Revision, BuildDate = origVersion, origRevision, origBuildDate
	})

	Version = devVersion
	Revision = "HEAD"
	BuildDate = ""

	applyBuildInfo("v1.4.0", map[string]string{
		"vcs.revision": "abcdef1234567890",
		"vcs.modified": "true",
		"vcs.time":     "2025-12-12T01:00:00Z",
	})

	assert.Equal(t, "1.4.0", Version)
	assert.Equal(t, "abcdef1234567890-dirty", Revision)
	assert.Equal(t, "2025-12-12T01:00:00Z", BuildDate)
}

func TestApplyBuildInfo_KeepsLdflags(t *testing.T) {
	origVersion, origRevision, origBuildDate := Version, Revision, BuildDate
	t.Cleanup(func() {
		Version, Revision, BuildDate = origVersion, origRevision, origBuildDate
	})

	Version = "1.2.3"
	Revision = "deadbeef"
	BuildDate = "from-ldflags"

	applyBuildInfo("v9.9.9", map[string]string{
		"vcs.revision": "abcdef",
		"vcs.time":     "2025-12-12T01:00:00Z",
	})

	assert.Equal(t, "1.2.3", Version)
	assert.Equal(t, "deadbeef", Revision)
	assert.Equal(t, "from-ldflags", BuildDate)
}

func TestApplyBuildInfo_IgnoresDevelModule(t *testing.T) {
	origVersion := Version
	t.Cleanup(func() { Version = origVersion })

	Version = devVersion
	applyBuildInfo("(devel)", map[string]string{})
	assert.Equal(t, devVersion, Version)
}
