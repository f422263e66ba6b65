package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, contents := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0644))
	}
	return dir
}

func TestNewConfig(t *testing.T) {
	tests := []struct {
		name        string
		files       map[string]string
		environment string
		expectError bool
		wantName    string
	}{
		{
			name: "loads listed files",
			files: map[string]string{
				"meta.yaml": "files:\n  - base.yaml\n",
				"base.yaml": "service:\n  name: arena\n",
			},
			wantName: "arena",
		},
		{
			name: "skips listed files that do not exist",
			files: map[string]string{
				"meta.yaml": "files:\n  - base.yaml\n  - local.yaml\n",
				"base.yaml": "service:\n  name: arena\n",
			},
			wantName: "arena",
		},
		{
			name: "environment overlay wins",
			files: map[string]string{
				"meta.yaml":        "files:\n  - base.yaml\n",
				"base.yaml":        "service:\n  name: arena\n",
				"development.yaml": "service:\n  name: arena-dev\n",
			},
			environment: "development",
			wantName:    "arena-dev",
		},
		{
			name: "no files found",
			files: map[string]string{
				"meta.yaml": "files:\n  - base.yaml\n",
			},
			expectError: true,
		},
		{
			name:        "missing meta file",
			files:       map[string]string{},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(_envConfigDir, writeConfigDir(t, tt.files))
			t.Setenv(_envEnvironment, tt.environment)

			provider, err := NewConfig()
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, provider)
				return
			}

			require.NoError(t, err)
			cfg := provider.(Config)
			assert.Equal(t, "config", cfg.Name())
			assert.Equal(t, tt.wantName, cfg.Get("service.name").String())
		})
	}
}

func TestConfigWithEnvironmentVariables(t *testing.T) {
	dir := writeConfigDir(t, map[string]string{
		"meta.yaml": "files:\n  - base.yaml\n",
		"base.yaml": "http:\n  address: \":${ARENA_PORT_HTTP:8080}\"\n",
	})
	t.Setenv(_envConfigDir, dir)
	t.Setenv(_envEnvironment, "")

	t.Run("default value", func(t *testing.T) {
		provider, err := NewConfig()
		require.NoError(t, err)
		assert.Equal(t, ":8080", provider.Get("http.address").String())
	})

	t.Run("substituted value", func(t *testing.T) {
		t.Setenv("ARENA_PORT_HTTP", "9999")
		provider, err := NewConfig()
		require.NoError(t, err)
		assert.Equal(t, ":9999", provider.Get("http.address").String())
	})
}

func TestGetConfigDir(t *testing.T) {
	tests := []struct {
		name           string
		envValue       string
		expectedResult string
	}{
		{
			name:           "returns environment variable when set",
			envValue:       "/custom/config/path",
			expectedResult: "/custom/config/path",
		},
		{
			name:           "returns default path when environment variable not set",
			envValue:       "",
			expectedResult: "src/arena/config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(_envConfigDir, tt.envValue)
			assert.Equal(t, tt.expectedResult, getConfigDir())
		})
	}
}
