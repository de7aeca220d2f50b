package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"", zerolog.InfoLevel},
		{"info", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.input))
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, zerolog.InfoLevel, false)
	l.Info().Str("guild_id", "g1").Msg("hello")

	assert.Contains(t, buf.String(), `"guild_id":"g1"`)
	assert.Contains(t, buf.String(), `"message":"hello"`)
}

func TestInit_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deejay.log")
	closer, err := Init(Config{Output: path, Level: "info"})
	require.NoError(t, err)

	l := ForGuild("g42")
	l.Info().Msg("written")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"guild_id":"g42"`)

	_, err = Init(Config{Output: "stdout"})
	require.NoError(t, err)
}

func TestShortCaller(t *testing.T) {
	got := shortCaller(0, filepath.Join("a", "b", "c.go"), 7)
	assert.Equal(t, filepath.Join("b", "c.go")+":7", got)
}
