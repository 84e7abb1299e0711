package logger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, json := range []bool{true, false} {
		l, err := New(json, true)
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(-1), "debug level should be enabled")
	}

	l, err := New(false, false)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(-1))
}

func TestTruncateForLog(t *testing.T) {
	assert.Equal(t, "abc", TruncateForLog("  abc  ", 10))
	assert.Equal(t, "ab...", TruncateForLog("abcdef", 2))
	assert.Equal(t, "", TruncateForLog("abc", 0))
	assert.Equal(t, "жж...", TruncateForLog(strings.Repeat("ж", 5), 2))
}
