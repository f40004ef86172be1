package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"

	appErr "github.com/xxxsen/pagelift/internal/pkg/errors"
)

type Config struct {
	Locales      []string          `json:"locales"`
	BaseLocale   string            `json:"base_locale"`
	CacheDir     string            `json:"cache_dir"`
	LogConfig    logger.LogConfig  `json:"log_config"`
	Platform     PlatformConfig    `json:"platform"`
	Media        MediaConfig       `json:"media"`
	TitleAliases map[string]string `json:"title_aliases"`
}

type PlatformConfig struct {
	Database  string          `json:"database"`
	FileStore FileStoreConfig `json:"file_store"`
}

type FileStoreConfig struct {
	Type      string   `json:"type"`
	Dir       string   `json:"dir"`
	PublicURL string   `json:"public_url"`
	S3        S3Config `json:"s3"`
}

type S3Config struct {
	Endpoint  string `json:"endpoint"`
	SecretID  string `json:"secret_id"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Prefix    string `json:"prefix"`
	PublicURL string `json:"public_url"`
	UseSSL    bool   `json:"use_ssl"`
}

type MediaConfig struct {
	JPEGQuality        int `json:"jpeg_quality"`
	DownloadTimeoutSec int `json:"download_timeout_sec"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if len(cfg.Locales) == 0 {
		cfg.Locales = []string{"en"}
	}
	if cfg.BaseLocale == "" {
		cfg.BaseLocale = cfg.Locales[0]
	}
	if !containsLocale(cfg.Locales, cfg.BaseLocale) {
		return nil, fmt.Errorf("base_locale %q is not in locales", cfg.BaseLocale)
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = "cache"
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Platform.Database == "" {
		return nil, fmt.Errorf("platform.database is required")
	}
	if cfg.Media.JPEGQuality == 0 {
		cfg.Media.JPEGQuality = 82
	}
	if cfg.Media.JPEGQuality < 1 || cfg.Media.JPEGQuality > 100 {
		return nil, fmt.Errorf("media.jpeg_quality must be between 1 and 100")
	}
	if cfg.Media.DownloadTimeoutSec == 0 {
		cfg.Media.DownloadTimeoutSec = 30
	}
	if cfg.Platform.FileStore.Type == "" {
		cfg.Platform.FileStore.Type = "local"
	}
	switch cfg.Platform.FileStore.Type {
	case "local":
		if cfg.Platform.FileStore.Dir == "" {
			return nil, fmt.Errorf("platform.file_store.dir is required for local store")
		}
	case "s3":
		s3 := cfg.Platform.FileStore.S3
		if s3.Endpoint == "" || s3.Bucket == "" || s3.SecretID == "" || s3.SecretKey == "" {
			return nil, fmt.Errorf("platform.file_store.s3 endpoint/bucket/secret_id/secret_key are required for s3 store")
		}
		if cfg.Platform.FileStore.S3.Region == "" {
			cfg.Platform.FileStore.S3.Region = "cn"
		}
	default:
		return nil, fmt.Errorf("platform.file_store.type must be local or s3")
	}
	return &cfg, nil
}

// Env holds the two required connection secrets. They never live in the
// config file; a missing value is a startup-time fatal.
type Env struct {
	PlatformMongoURI  string
	LegacyDatabaseURL string
}

func LoadEnv() (*Env, error) {
	mongoURI := os.Getenv("PLATFORM_MONGO_URI")
	if mongoURI == "" {
		return nil, fmt.Errorf("%w: PLATFORM_MONGO_URI is not set", appErr.ErrMissingConfig)
	}
	legacyURL := os.Getenv("LEGACY_DATABASE_URL")
	if legacyURL == "" {
		return nil, fmt.Errorf("%w: LEGACY_DATABASE_URL is not set", appErr.ErrMissingConfig)
	}
	return &Env{
		PlatformMongoURI:  mongoURI,
		LegacyDatabaseURL: legacyURL,
	}, nil
}

func containsLocale(locales []string, locale string) bool {
	for _, l := range locales {
		if l == locale {
			return true
		}
	}
	return false
}
