package contracts

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionInfo(t *testing.T) {
	info := GetVersionInfo()
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, APIVersion, info.APIVersion)

	assert.Equal(t, "cpicli v"+Version, GetVersionString())
	assert.Contains(t, GetFullVersionString(), "commit: "+GitCommit)
}
