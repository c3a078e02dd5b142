package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/wasi-runner/runtime"
)

func TestParseDir(t *testing.T) {
	tests := []struct {
		in   string
		want runtime.Preopen
	}{
		{".:/", runtime.Preopen{HostPath: ".", GuestPath: "/"}},
		{"/data", runtime.Preopen{HostPath: "/data", GuestPath: "/data"}},
		{"/srv/www:/www", runtime.Preopen{HostPath: "/srv/www", GuestPath: "/www"}},
		{"/srv/www:www:ro", runtime.Preopen{HostPath: "/srv/www", GuestPath: "/www", ReadOnly: true}},
		{"/etc:ro", runtime.Preopen{HostPath: "/etc", GuestPath: "/etc", ReadOnly: true}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDir(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", ":/", "/a:", "a:b:c", "a:b:c:ro"} {
		_, err := parseDir(bad)
		assert.Error(t, err, bad)
	}
}

func TestDirsFlag(t *testing.T) {
	var d dirs
	require.NoError(t, d.Set("/a"))
	require.NoError(t, d.Set("/b:/c:ro"))
	assert.Error(t, d.Set("x:y:z"))
	assert.Len(t, d.values, 2)
	assert.Equal(t, "/a,/b:/c:ro", d.String())
	assert.Equal(t, "dir", d.Type())
}

func TestEnvFlag(t *testing.T) {
	var e envVars
	require.NoError(t, e.Set("A=1"))
	require.NoError(t, e.Set("B=x=y"))
	require.NoError(t, e.Set("EMPTY="))
	assert.Error(t, e.Set("NOVALUE"))
	assert.Error(t, e.Set("=v"))
	assert.Equal(t, map[string]string{"A": "1", "B": "x=y", "EMPTY": ""}, e.values)
	assert.Equal(t, "env", e.Type())
}

func TestLogLevel(t *testing.T) {
	t.Setenv(logLevelEnv, "debug")
	assert.Equal(t, "debug", resolveLogLevel("warn", false))
	assert.Equal(t, "error", resolveLogLevel("error", true))

	t.Setenv(logLevelEnv, "")
	assert.Equal(t, "warn", resolveLogLevel("warn", false))

	for _, format := range []string{"console", "json"} {
		logger, err := newLogger("info", format)
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
		assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	}

	_, err := newLogger("loud", "console")
	assert.Error(t, err)
	_, err = newLogger("info", "xml")
	assert.Error(t, err)
}
