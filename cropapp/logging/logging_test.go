package logging

import (
	"bytes"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"":         zerolog.InfoLevel,
		"debug":    zerolog.DebugLevel,
		"WARNING":  zerolog.WarnLevel,
		" error ":  zerolog.ErrorLevel,
		"disabled": zerolog.Disabled,
		"bogus":    zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestInitJSON(t *testing.T) {
	old := zerolog.GlobalLevel()
	defer func() {
		zerolog.SetGlobalLevel(old)
		Init(Config{})
	}()

	var buf bytes.Buffer
	Init(Config{Level: "info", Output: &buf})

	Debug().Msg("hidden")
	Info().Str("model", "m.onnx").Msg("Model loaded")

	line := bytes.TrimSpace(buf.Bytes())
	require.NotEmpty(t, line)
	assert.Equal(t, 1, bytes.Count(line, []byte("\n"))+1, "debug entry must be filtered")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(line, &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "m.onnx", entry["model"])
	assert.Equal(t, "Model loaded", entry["message"])
}
