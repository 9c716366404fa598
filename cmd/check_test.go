package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	configs "go_request_guard/internal/infra/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadDescriptor(t *testing.T) {
	desc, err := readDescriptor(strings.NewReader(`{
		"method": "post",
		"path": "/payments",
		"headers": {"Content-Type": "application/json", "User-Agent": "sdk/2.1"},
		"origin": "https://shop.example.com",
		"ip": "10.1.2.3",
		"query": {"expand": "charges"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "POST", desc.Method)
	assert.Equal(t, "application/json", desc.Headers["content-type"])
	assert.Equal(t, "sdk/2.1", desc.UserAgent)
	assert.Equal(t, "https://shop.example.com", desc.Origin)
	assert.Equal(t, "https://shop.example.com", desc.Headers["origin"])
	assert.Equal(t, "10.1.2.3", desc.IP)
	assert.Equal(t, "charges", desc.Query["expand"])

	_, err = readDescriptor(strings.NewReader(`{"method": "GET", "path": "relative"}`))
	assert.Error(t, err)
	_, err = readDescriptor(strings.NewReader(`{`))
	assert.Error(t, err)
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// loadConfig exports the flags as environment variables
	t.Setenv(configs.EnvConfigPath, "")
	t.Setenv(configs.EnvGuardEnv, "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCheckCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "guard.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("environment: test\nlog:\n  level: error\n"), 0o600))
	descPath := filepath.Join(dir, "request.json")
	require.NoError(t, os.WriteFile(descPath, []byte(`{"method":"GET","path":"/api/refunds","headers":{"origin":"https://any.example.com"}}`), 0o600))

	out, err := runCLI(t, "check", "--config", cfgPath, descPath)
	require.NoError(t, err)

	var report checkReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Cors.Allowed)
	assert.True(t, report.Headers.Valid)

	_, err = runCLI(t, "check", "--config", cfgPath, filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "request-guard v"+Version+"\n", out)
}
