package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionString(t *testing.T) {
	assert.True(t, strings.HasPrefix(VersionString, Version+" (commit "))
	assert.Contains(t, VersionString, CommitHash)
	assert.Equal(t, "piiscan-analyzer/"+Version, UserAgent())
}
