package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/pagelift/internal/pkg/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"platform": {"database": "cms", "file_store": {"type": "local", "dir": "/tmp/files"}}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"en"}, cfg.Locales)
	require.Equal(t, "en", cfg.BaseLocale)
	require.Equal(t, "cache", cfg.CacheDir)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, 82, cfg.Media.JPEGQuality)
	require.Equal(t, 30, cfg.Media.DownloadTimeoutSec)
}

func TestLoadS3Defaults(t *testing.T) {
	path := writeConfig(t, `{
		"platform": {
			"database": "cms",
			"file_store": {
				"type": "s3",
				"s3": {"endpoint": "s3.local", "bucket": "media", "secret_id": "id", "secret_key": "key"}
			}
		}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "cn", cfg.Platform.FileStore.S3.Region)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing database",
			body: `{"platform": {"file_store": {"type": "local", "dir": "/tmp/files"}}}`,
			want: "platform.database",
		},
		{
			name: "base locale not listed",
			body: `{"locales": ["en", "de"], "base_locale": "fr", "platform": {"database": "cms", "file_store": {"type": "local", "dir": "/tmp/files"}}}`,
			want: "base_locale",
		},
		{
			name: "jpeg quality out of range",
			body: `{"media": {"jpeg_quality": 101}, "platform": {"database": "cms", "file_store": {"type": "local", "dir": "/tmp/files"}}}`,
			want: "jpeg_quality",
		},
		{
			name: "local store without dir",
			body: `{"platform": {"database": "cms", "file_store": {"type": "local"}}}`,
			want: "file_store.dir",
		},
		{
			name: "s3 store without secrets",
			body: `{"platform": {"database": "cms", "file_store": {"type": "s3", "s3": {"endpoint": "s3.local"}}}}`,
			want: "s3",
		},
		{
			name: "unknown store type",
			body: `{"platform": {"database": "cms", "file_store": {"type": "ftp"}}}`,
			want: "local or s3",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("PLATFORM_MONGO_URI", "mongodb://localhost/cms")
	t.Setenv("LEGACY_DATABASE_URL", "postgres://localhost/legacy")
	env, err := LoadEnv()
	require.NoError(t, err)
	require.Equal(t, "mongodb://localhost/cms", env.PlatformMongoURI)
	require.Equal(t, "postgres://localhost/legacy", env.LegacyDatabaseURL)
}

func TestLoadEnvMissingIsFatal(t *testing.T) {
	t.Setenv("PLATFORM_MONGO_URI", "")
	t.Setenv("LEGACY_DATABASE_URL", "postgres://localhost/legacy")
	_, err := LoadEnv()
	require.ErrorIs(t, err, appErr.ErrMissingConfig)

	t.Setenv("PLATFORM_MONGO_URI", "mongodb://localhost/cms")
	t.Setenv("LEGACY_DATABASE_URL", "")
	_, err = LoadEnv()
	require.ErrorIs(t, err, appErr.ErrMissingConfig)
}
