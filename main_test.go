package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"auto_note_article_publisher/publisher"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "log:\n  level: info\n  file: " + filepath.Join(dir, "poster.log") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCommandsRequireCredentials(t *testing.T) {
	t.Setenv("NOTE_EMAIL", "")
	t.Setenv("NOTE_PASSWORD", "")
	cfgPath := writeTestConfig(t)
	md := filepath.Join(t.TempDir(), "a.md")
	require.NoError(t, os.WriteFile(md, []byte("# a"), 0o644))

	for _, args := range [][]string{
		{"post", "--title", "t", "--md", md},
		{"github", "--repo", "https://github.com/a/b", "--path", "x.md"},
		{"schedule", "--at", "09:00"},
		{"serve", "--addr", "127.0.0.1:0"},
	} {
		t.Run(args[0], func(t *testing.T) {
			rootCmd.SetArgs(append([]string{"--config", cfgPath}, args...))
			rootCmd.SetOut(&bytes.Buffer{})
			rootCmd.SetErr(&bytes.Buffer{})
			err := rootCmd.Execute()
			assert.ErrorIs(t, err, publisher.ErrMissingIdentity)
		})
	}
}

func TestInvalidConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  max_attempts: -1\n"), 0o644))

	rootCmd.SetArgs([]string{"--config", path, "post", "--title", "t", "--md", "x.md"})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	err := rootCmd.Execute()
	assert.ErrorContains(t, err, "max_attempts")
}

func TestBuildLogger(t *testing.T) {
	file := filepath.Join(t.TempDir(), "out.log")
	l, err := buildLogger(publisher.LogConfig{Level: "warn", File: file}, false)
	require.NoError(t, err)
	l.Warn("to file")
	_ = l.Sync()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"to file"`)

	l, err = buildLogger(publisher.LogConfig{Level: "warn"}, true)
	require.NoError(t, err)
	assert.NotNil(t, l.Check(zapcore.DebugLevel, "debug"))

	_, err = buildLogger(publisher.LogConfig{Level: "loud"}, false)
	assert.Error(t, err)
}

func TestReport(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	err := report(cmd, &publisher.Result{URL: "https://note.com/a/n/k", ImageErr: errors.New("too large")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://note.com/a/n/k\n", out.String())
	assert.Contains(t, errOut.String(), "too large")

	boom := &publisher.PostError{Kind: publisher.KindAuth, Reason: "login failed"}
	assert.ErrorIs(t, report(cmd, &publisher.Result{}, boom), publisher.ErrAuthFailure)
}
