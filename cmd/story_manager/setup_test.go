package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jonathan/story-manager/internal/db"
	"github.com/jonathan/story-manager/internal/media"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_EnvironmentOnly(t *testing.T) {
	t.Setenv("PORT", "9001")
	t.Setenv("MEDIA_DIR", "/srv/media")

	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.Port)
	assert.Equal(t, "/srv/media", cfg.MediaDir)
}

func TestLoadConfig_FileOverridesEnvironment(t *testing.T) {
	t.Setenv("PORT", "9001")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("AUTO_MIGRATE", "false")

	path := writeConfig(t, `{"port": 9100, "api_prefix": "/v1", "auto_migrate": true}`)

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "/v1", cfg.APIPrefix)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.False(t, cfg.AutoMigrate)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := loadConfig(filepath.Join(t.TempDir(), "nope.json"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load config")
	})

	t.Run("invalid file values", func(t *testing.T) {
		_, err := loadConfig(writeConfig(t, `{"api_prefix": "api"}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid config file")
	})

	t.Run("invalid environment", func(t *testing.T) {
		t.Setenv("LOG_ENCODING", "xml")
		_, err := loadConfig("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "log_encoding")
	})
}

func TestParseVersion(t *testing.T) {
	v, err := parseVersion("3")
	require.NoError(t, err)
	assert.Equal(t, uint(3), v)

	for _, bad := range []string{"-1", "one", ""} {
		_, err := parseVersion(bad)
		assert.Error(t, err, bad)
	}
}

func TestCommandTree(t *testing.T) {
	names := func(cmds []*cobra.Command) []string {
		var out []string
		for _, c := range cmds {
			out = append(out, c.Name())
		}
		return out
	}

	top := names(rootCmd.Commands())
	for _, want := range []string{"serve", "migrate", "seed"} {
		assert.Contains(t, top, want)
	}
	assert.ElementsMatch(t, []string{"up", "down", "version", "force"}, names(migrateCmd.Commands()))

	assert.Error(t, migrateForceCmd.Args(migrateForceCmd, nil))
	assert.NoError(t, migrateForceCmd.Args(migrateForceCmd, []string{"1"}))
	assert.Error(t, migrateUpCmd.Args(migrateUpCmd, []string{"extra"}))

	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, serveCmd.Flags().Lookup("port"))
	assert.NotNil(t, seedCmd.Flags().ShorthandLookup("v"))
}

func TestNewServer_Wiring(t *testing.T) {
	t.Setenv("PROJECT_NAME", "Story Manager API")
	t.Setenv("VERSION", "2.0.0")
	cfg, err := loadConfig("")
	require.NoError(t, err)

	mediaStore, err := media.NewStore(t.TempDir())
	require.NoError(t, err)

	srv := newServer(cfg, db.New(nil), mediaStore, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Welcome to Story Manager API")
	assert.Contains(t, w.Body.String(), "2.0.0")
}
