package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestNew_MapsLevelStrings(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"info":  zerolog.InfoLevel,
		"warn":  zerolog.WarnLevel,
		"error": zerolog.ErrorLevel,
	}
	for levelStr, want := range cases {
		New(Config{Level: levelStr})
		assert.Equal(t, want, zerolog.GlobalLevel(), levelStr)
	}
}

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	New(Config{Level: "bogus"})
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestNew_ProducesAWorkingLogger(t *testing.T) {
	l := New(Config{Level: "info"})
	assert.NotPanics(t, func() {
		l.Info().Str("component", "test").Msg("hello")
	})
}

func TestSetGlobalLogger_InstallsPackageLevelLogger(t *testing.T) {
	var buf bytes.Buffer
	custom := zerolog.New(&buf).With().Str("marker", "installed").Logger()

	SetGlobalLogger(custom)
	zlog.Logger.Info().Msg("via global")

	assert.Contains(t, buf.String(), "installed")
}
