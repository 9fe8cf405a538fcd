package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"Feedlytic/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("VITE_API_BASE_URL", "")
	t.Setenv("FEEDLYTIC_API_BASE_URL", "")
	t.Setenv("FEEDLYTIC_DB", "")
	t.Setenv("FEEDLYTIC_LOG_DIR", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Error(t, cfg.Validate(), "base URL has no default")
}

func TestDefaultConfig_SessionKeyMatchesStore(t *testing.T) {
	assert.Equal(t, session.DefaultKey, DefaultConfig().SessionKey)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("VITE_API_BASE_URL", "")
	t.Setenv("FEEDLYTIC_API_BASE_URL", "")
	t.Setenv("FEEDLYTIC_LOG_DIR", "")
	t.Setenv("FEEDLYTIC_DB", "/tmp/override.db")

	path := filepath.Join(dir, "feedlytic.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_url: http://file.example:8000
db_path: from-file.db
markdown: true
hints: ["one", "two"]
hint_interval: 1s
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://file.example:8000", cfg.BaseURL)
	assert.Equal(t, "/tmp/override.db", cfg.DBPath)
	assert.True(t, cfg.Markdown)
	assert.Equal(t, []string{"one", "two"}, cfg.LoaderHints())
	assert.Equal(t, time.Second, cfg.HintInterval)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("VITE_API_BASE_URL", "")
	// godotenv never overrides a variable that is already set, even to ""
	t.Setenv("FEEDLYTIC_API_BASE_URL", "")
	os.Unsetenv("FEEDLYTIC_API_BASE_URL")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("FEEDLYTIC_API_BASE_URL=https://env.example/api\n"), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://env.example/api", cfg.BaseURL)
}

func TestLoad_ViteVariableIsFallback(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("VITE_API_BASE_URL", "http://vite.example")
	t.Setenv("FEEDLYTIC_API_BASE_URL", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://vite.example", cfg.BaseURL)

	t.Setenv("FEEDLYTIC_API_BASE_URL", "http://feedlytic.example")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://feedlytic.example", cfg.BaseURL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{name: "http", baseURL: "http://localhost:8000"},
		{name: "https with path", baseURL: "https://api.example.com/v1"},
		{name: "empty", baseURL: "", wantErr: true},
		{name: "no scheme", baseURL: "localhost:8000", wantErr: true},
		{name: "ftp", baseURL: "ftp://example.com", wantErr: true},
		{name: "no host", baseURL: "http://", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.BaseURL = tt.baseURL
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoaderHints_FallsBackToDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Hints = nil
	assert.Equal(t, DefaultHints, cfg.LoaderHints())
}
