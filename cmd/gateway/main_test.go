package main

import (
	"bytes"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", "testdata-missing.env"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func setTestEnv(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("MAGIC_LINK_SECRET", "cli-test-secret")
	t.Setenv("MAGIC_LINK_BASE_URL", "http://localhost:5173/verify")
	t.Setenv("LOG_LEVEL", "error")
}

func TestMagicLinkCommands(t *testing.T) {
	setTestEnv(t)

	out, err := runCLI(t, "magic-link", "issue", "ada@example.com")
	require.NoError(t, err, out)

	link, err := url.Parse(strings.SplitN(out, "\n", 2)[0])
	require.NoError(t, err)
	token := link.Query().Get("token")
	require.NotEmpty(t, token)

	out, err = runCLI(t, "magic-link", "verify", token)
	require.NoError(t, err, out)
	assert.Equal(t, "ada@example.com", strings.TrimSpace(out))
}

func TestMagicLinkCommands_RequireSecret(t *testing.T) {
	setTestEnv(t)
	t.Setenv("MAGIC_LINK_SECRET", "")
	t.Setenv("JWT_SECRET_KEY", "")

	_, err := runCLI(t, "magic-link", "issue", "ada@example.com")
	assert.Error(t, err)
}

func TestKeysIssue(t *testing.T) {
	setTestEnv(t)

	out, err := runCLI(t, "keys", "issue", "alice", "ci")
	require.NoError(t, err, out)
	assert.Contains(t, out, "UFK_")
}

func TestKeysList_Empty(t *testing.T) {
	setTestEnv(t)

	out, err := runCLI(t, "keys", "list", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "No API keys for alice")
}

func TestInvalidConfig(t *testing.T) {
	setTestEnv(t)
	t.Setenv("STORE_BACKEND", "etcd")

	_, err := runCLI(t, "keys", "list", "alice")
	assert.ErrorContains(t, err, "STORE_BACKEND")
}
