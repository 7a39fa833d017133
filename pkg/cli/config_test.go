package cli

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setTestHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}
	return home
}

func TestUserConfig_ActiveProfile(t *testing.T) {
	cfg := &UserConfig{
		CurrentProfile: "staging",
		Profiles: map[string]Profile{
			"staging": {Host: "https://staging.example.com"},
			"prod":    {Host: "https://prod.example.com"},
		},
	}

	assert.Equal(t, "https://staging.example.com", cfg.ActiveProfile("").Host)
	assert.Equal(t, "https://prod.example.com", cfg.ActiveProfile("prod").Host)
	assert.Equal(t, Profile{}, cfg.ActiveProfile("missing"))
}

func TestSaveAndLoadUserConfig(t *testing.T) {
	home := setTestHome(t)

	cfg := &UserConfig{
		CurrentProfile: "default",
		Profiles: map[string]Profile{
			"default": {Host: "http://localhost:8080", APIKey: "dfk_abc", Output: "json"},
		},
	}
	require.NoError(t, SaveUserConfig(cfg))

	// Tokens can live here, so the file must not be group or world readable.
	info, err := os.Stat(filepath.Join(home, ".dataforge", "config.yaml"))
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	loaded, err := LoadUserConfig()
	require.NoError(t, err)
	assert.Equal(t, "default", loaded.CurrentProfile)
	assert.Equal(t, "dfk_abc", loaded.Profiles["default"].APIKey)
	assert.Equal(t, "json", loaded.Profiles["default"].Output)
}

func TestLoadUserConfig_Missing(t *testing.T) {
	setTestHome(t)
	_, err := LoadUserConfig()
	assert.Error(t, err)
}

func TestSaveProfileToken(t *testing.T) {
	setTestHome(t)

	t.Run("bootstraps default profile", func(t *testing.T) {
		require.NoError(t, saveProfileToken("", "tok-1"))

		cfg, err := LoadUserConfig()
		require.NoError(t, err)
		assert.Equal(t, "default", cfg.CurrentProfile)
		assert.Equal(t, "tok-1", cfg.Profiles["default"].Token)
	})

	t.Run("named profile keeps other fields", func(t *testing.T) {
		cfg, err := LoadUserConfig()
		require.NoError(t, err)
		cfg.Profiles["staging"] = Profile{Host: "https://staging.example.com"}
		require.NoError(t, SaveUserConfig(cfg))

		require.NoError(t, saveProfileToken("staging", "tok-2"))

		cfg, err = LoadUserConfig()
		require.NoError(t, err)
		assert.Equal(t, "tok-2", cfg.Profiles["staging"].Token)
		assert.Equal(t, "https://staging.example.com", cfg.Profiles["staging"].Host)
		assert.Equal(t, "default", cfg.CurrentProfile, "current profile untouched")
	})
}
