package buildversion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersionUnknownModule(t *testing.T) {
	assert.Equal(t, "unknown", GetVersion("example.com/not/linked/into/this/binary"))
}

func TestVersionOrDevel(t *testing.T) {
	assert.Equal(t, "(devel)", versionOrDevel(""))
	assert.Equal(t, "v1.2.3", versionOrDevel("v1.2.3"))
}
