package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "app.log")

	l, err := New(Config{Level: "debug", Encoding: "json", OutputPath: out})
	require.NoError(t, err)
	l.Debug("language created", zap.String("language", "en"))
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "language created", entry["msg"])
	assert.Equal(t, "en", entry["language"])
	assert.Contains(t, entry, "timestamp")
	assert.NotContains(t, entry, "caller")
}

func TestNew_Defaults(t *testing.T) {
	out := filepath.Join(t.TempDir(), "app.log")

	l, err := New(Config{Level: "loud", Encoding: "xml", OutputPath: out})
	require.NoError(t, err)
	l.Debug("hidden")
	l.Info("shown")
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), `"msg":"shown"`)
}
