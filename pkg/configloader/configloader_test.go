// pkg/configloader/configloader_test.go
package configloader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name    string        `mapstructure:"name"`
	Timeout time.Duration `mapstructure:"timeout"`
	Symbols []string      `mapstructure:"symbols"`
	Nested  struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"nested"`
}

type validated struct {
	Name string `mapstructure:"name"`
}

func (v *validated) Validate() error {
	if v.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"name":           "default",
		"timeout":        "1s",
		"symbols":        []string{"AAPL"},
		"nested.enabled": false,
	}
}

func TestLoad_DefaultsOnly(t *testing.T) {
	var cfg sample
	require.NoError(t, Load(Options{EnvPrefix: "CFGTEST_A", Defaults: defaults()}, &cfg))
	assert.Equal(t, "default", cfg.Name)
	assert.Equal(t, time.Second, cfg.Timeout)
	assert.Equal(t, []string{"AAPL"}, cfg.Symbols)
	assert.False(t, cfg.Nested.Enabled)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: from-file\ntimeout: 3s\n"), 0o600))

	t.Setenv("CFGTEST_B_SYMBOLS", "MSFT,TSLA")
	t.Setenv("CFGTEST_B_NESTED_ENABLED", "true")

	var cfg sample
	require.NoError(t, Load(Options{Path: path, EnvPrefix: "CFGTEST_B", Defaults: defaults()}, &cfg))
	assert.Equal(t, "from-file", cfg.Name)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, []string{"MSFT", "TSLA"}, cfg.Symbols)
	assert.True(t, cfg.Nested.Enabled)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("CFGTEST_C_NAME=from-dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("CFGTEST_C_NAME") })

	var cfg sample
	require.NoError(t, Load(Options{EnvPrefix: "CFGTEST_C", EnvFile: envPath, Defaults: defaults()}, &cfg))
	assert.Equal(t, "from-dotenv", cfg.Name)
}

func TestLoad_MissingEnvFileIgnored(t *testing.T) {
	var cfg sample
	err := Load(Options{EnvPrefix: "CFGTEST_D", EnvFile: filepath.Join(t.TempDir(), "nope.env"), Defaults: defaults()}, &cfg)
	require.NoError(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	var cfg sample
	err := Load(Options{Path: "/does/not/exist.yaml", EnvPrefix: "CFGTEST_E", Defaults: defaults()}, &cfg)
	require.Error(t, err)
}

func TestLoad_Validate(t *testing.T) {
	var cfg validated
	err := Load(Options{EnvPrefix: "CFGTEST_F", Defaults: map[string]interface{}{"name": ""}}, &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}
