package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, key := range []string{"FEEDLYTIC_API_BASE_URL", "VITE_API_BASE_URL", "FEEDLYTIC_DB", "FEEDLYTIC_LOG_DIR"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSessionCommand_PrintsStableID(t *testing.T) {
	dir := isolate(t)
	args := []string{"session", "--base-url", "http://localhost:8000", "--db", filepath.Join(dir, "s.db")}

	first, err := execute(t, args...)
	require.NoError(t, err)
	second, err := execute(t, args...)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	_, err = uuid.Parse(strings.TrimSpace(first))
	assert.NoError(t, err)
}

func TestResetCommand_RotatesID(t *testing.T) {
	dir := isolate(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()
	args := []string{"--base-url", server.URL, "--db", filepath.Join(dir, "s.db")}

	before, err := execute(t, append([]string{"session"}, args...)...)
	require.NoError(t, err)
	rotated, err := execute(t, append([]string{"reset"}, args...)...)
	require.NoError(t, err)
	after, err := execute(t, append([]string{"session"}, args...)...)
	require.NoError(t, err)

	assert.NotEqual(t, before, rotated)
	assert.Equal(t, rotated, after)
}

func TestHistoryCommand(t *testing.T) {
	isolate(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"history":[{"query":"hi","answer":"hello"},{"query":"again","answer":" "}]}`)
	}))
	defer server.Close()

	out, err := execute(t, "history", "--ephemeral", "--base-url", server.URL)
	require.NoError(t, err)
	assert.Equal(t, "You: hi\nBot: hello\n\nYou: again\n", out)
}

func TestMissingBaseURL(t *testing.T) {
	isolate(t)

	_, err := execute(t, "session", "--ephemeral")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base URL is not set")
}

func TestResolveConfig_FlagsOverrideEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("FEEDLYTIC_API_BASE_URL", "http://from-env:8000")
	t.Setenv("FEEDLYTIC_DB", "env.db")

	opts := &rootOptions{}
	cmd := newRootCmdWithOptions(opts)
	require.NoError(t, cmd.ParseFlags([]string{"--db", "flag.db", "--plain"}))

	cfg, err := resolveConfig(cmd, opts)
	require.NoError(t, err)
	assert.Equal(t, "http://from-env:8000", cfg.BaseURL)
	assert.Equal(t, "flag.db", cfg.DBPath)
	assert.Equal(t, "logs", cfg.LogDir)
	assert.True(t, cfg.Plain)
	assert.False(t, cfg.Markdown)
}
