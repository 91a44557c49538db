package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestFieldSet(t *testing.T) {
	var raw map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(`
chrome:
  debug: false
capture:
  pacing_fps: 0
`), &raw))

	assert.True(t, fieldSet(raw, "chrome", "debug"))
	assert.True(t, fieldSet(raw, "capture", "pacing_fps"))
	assert.False(t, fieldSet(raw, "logging", "enabled"))
	assert.False(t, fieldSet(raw, "chrome", "debug", "deeper"))
	assert.False(t, fieldSet(nil, "chrome"))
	assert.False(t, fieldSet(raw))
}

func TestEnvBool(t *testing.T) {
	tests := []struct {
		value  string
		want   bool
		wantOK bool
	}{
		{"1", true, true},
		{"true", true, true},
		{"YES", true, true},
		{"on", true, true},
		{"0", false, true},
		{"false", false, true},
		{"off", false, true},
		{"", false, false},
		{"maybe", false, false},
	}
	for _, tt := range tests {
		t.Run("value "+tt.value, func(t *testing.T) {
			t.Setenv("GENSTUDIO_TEST_BOOL", tt.value)
			got, ok := envBool("GENSTUDIO_TEST_BOOL")
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
