package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Target.LoginURL = "https://example.com/login"
	cfg.Target.Username = "alice"
	cfg.Target.Password = "hunter2"
	cfg.Output.ConfigPath = "/tmp/tokens.json"
	return cfg
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_MissingCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.Target.Username = ""
	cfg.Target.Password = ""

	err := cfg.Validate()
	require.Error(t, err)

	var cerr *ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Reason, "Username")
	assert.Contains(t, cerr.Reason, "Password")
}

func TestValidate_BadURL(t *testing.T) {
	cfg := validConfig()
	cfg.Target.LoginURL = "not a url"

	var cerr *ConfigurationError
	require.ErrorAs(t, cfg.Validate(), &cerr)
}

func TestWaitKind(t *testing.T) {
	tests := []struct {
		afterLogin string
		want       WaitKind
	}{
		{"", WaitNetworkIdle},
		{"https://example.com/dashboard", WaitURLPattern},
		{"/dashboard", WaitURLPattern},
		{"#main-nav", WaitSelector},
		{`[data-testid="home"]`, WaitSelector},
	}

	for _, tt := range tests {
		w := WaitConfig{AfterLogin: tt.afterLogin}
		assert.Equal(t, tt.want, w.Kind(), "after_login=%q", tt.afterLogin)
	}
}

func TestLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := validConfig()
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, toml.NewEncoder(f).Encode(cfg))
	require.NoError(t, f.Close())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Target.LoginURL, loaded.Target.LoginURL)
	assert.Equal(t, cfg.Selectors.Submit, loaded.Selectors.Submit)
	assert.Equal(t, cfg.Wait.SelectorTimeoutSec, loaded.Wait.SelectorTimeoutSec)
}

func TestDefault_HasUsableSelectors(t *testing.T) {
	cfg := Default()
	assert.NotEmpty(t, cfg.Selectors.Username)
	assert.NotEmpty(t, cfg.Selectors.Password)
	assert.NotEmpty(t, cfg.Selectors.Submit)
	assert.True(t, cfg.Target.Headless)
	assert.Equal(t, "session_token", cfg.Output.TokenKey)
}
