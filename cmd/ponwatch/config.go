package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tinytelemetry/ponwatch/internal/model"
)

const (
	defaultAPIAddr         = "0.0.0.0:8080"
	defaultRefreshInterval = model.DefaultRefreshInterval
	defaultFetchTimeout    = model.DefaultFetchTimeout
	defaultStatusTimeout   = 15 * time.Second
	defaultCacheTTL        = 5 * time.Minute
	defaultQueryTimeout    = 30 * time.Second
	defaultArchiveInterval = time.Hour
	defaultArchiveKeepLast = 48
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	HuaweiURL         string        `mapstructure:"huawei-url"`
	ZTEURL            string        `mapstructure:"zte-url"`
	ClientsPath       string        `mapstructure:"clients-path"`
	FaultNamesPath    string        `mapstructure:"fault-names-path"`
	FetchTimeout      time.Duration `mapstructure:"fetch-timeout"`
	RefreshInterval   time.Duration `mapstructure:"refresh-interval"`
	BackgroundRefresh bool          `mapstructure:"background-refresh"`

	StatusURL     string        `mapstructure:"status-url"`
	StatusTimeout time.Duration `mapstructure:"status-timeout"`

	RedisAddr     string        `mapstructure:"redis-addr"`
	RedisPassword string        `mapstructure:"redis-password"`
	RedisDB       int           `mapstructure:"redis-db"`
	CacheTTL      time.Duration `mapstructure:"cache-ttl"`

	APIAddr      string        `mapstructure:"api-addr"`
	DBPath       string        `mapstructure:"db-path"`
	QueryTimeout time.Duration `mapstructure:"query-timeout"`

	ArchiveEnabled        bool          `mapstructure:"archive-enabled"`
	ArchiveInterval       time.Duration `mapstructure:"archive-interval"`
	ArchiveDir            string        `mapstructure:"archive-dir"`
	ArchiveKeepLast       int           `mapstructure:"archive-keep-last"`
	ArchiveBucketURL      string        `mapstructure:"archive-bucket-url"`
	ArchiveS3Endpoint     string        `mapstructure:"archive-s3-endpoint"`
	ArchiveS3Region       string        `mapstructure:"archive-s3-region"`
	ArchiveS3AccessKey    string        `mapstructure:"archive-s3-access-key"`
	ArchiveS3SecretKey    string        `mapstructure:"archive-s3-secret-key"`
	ArchiveS3SessionToken string        `mapstructure:"archive-s3-session-token"`
	ArchiveS3UseSSL       bool          `mapstructure:"archive-s3-use-ssl"`

	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"`
	LogFile   string `mapstructure:"log-file"`

	ConfigPath string `mapstructure:"-"` // not from config file
}

func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("huawei-url", model.DefaultHuaweiURL)
	v.SetDefault("zte-url", model.DefaultZTEURL)
	v.SetDefault("clients-path", model.DefaultClientsPath)
	v.SetDefault("fault-names-path", "")
	v.SetDefault("fetch-timeout", defaultFetchTimeout)
	v.SetDefault("refresh-interval", defaultRefreshInterval)
	v.SetDefault("background-refresh", false)
	v.SetDefault("status-url", "")
	v.SetDefault("status-timeout", defaultStatusTimeout)
	v.SetDefault("redis-addr", "")
	v.SetDefault("redis-password", "")
	v.SetDefault("redis-db", 0)
	v.SetDefault("cache-ttl", defaultCacheTTL)
	v.SetDefault("api-addr", defaultAPIAddr)
	v.SetDefault("db-path", "")
	v.SetDefault("query-timeout", defaultQueryTimeout)
	v.SetDefault("archive-enabled", false)
	v.SetDefault("archive-interval", defaultArchiveInterval)
	v.SetDefault("archive-dir", filepath.Join(home, ".local", "share", "ponwatch", "reports"))
	v.SetDefault("archive-keep-last", defaultArchiveKeepLast)
	v.SetDefault("archive-bucket-url", "")
	v.SetDefault("archive-s3-endpoint", "")
	v.SetDefault("archive-s3-region", "")
	v.SetDefault("archive-s3-access-key", "")
	v.SetDefault("archive-s3-secret-key", "")
	v.SetDefault("archive-s3-session-token", "")
	v.SetDefault("archive-s3-use-ssl", true)
	v.SetDefault("log-level", defaultLogLevel)
	v.SetDefault("log-format", defaultLogFormat)
	v.SetDefault("log-file", "")
}

// newViper returns a viper instance reading PONWATCH_* environment variables.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("PONWATCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	return v
}

func loadConfig(v *viper.Viper, configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}
	setDefaults(v, home)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "ponwatch", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	if _, err := os.Stat(v.ConfigFileUsed()); err == nil {
		cfg.ConfigPath = v.ConfigFileUsed()
	}

	if strings.TrimSpace(cfg.HuaweiURL) == "" && strings.TrimSpace(cfg.ZTEURL) == "" {
		return cfg, fmt.Errorf("at least one of huawei-url and zte-url is required")
	}
	if cfg.FetchTimeout <= 0 {
		return cfg, fmt.Errorf("invalid fetch-timeout: %s", cfg.FetchTimeout)
	}
	if cfg.RefreshInterval <= 0 {
		return cfg, fmt.Errorf("invalid refresh-interval: %s", cfg.RefreshInterval)
	}
	if cfg.RedisDB < 0 {
		return cfg, fmt.Errorf("invalid redis-db: %d", cfg.RedisDB)
	}
	switch cfg.LogFormat {
	case "json", "console":
	default:
		return cfg, fmt.Errorf("invalid log-format %q: want json or console", cfg.LogFormat)
	}

	// Expand ~ in paths
	cfg.ClientsPath = expandHome(cfg.ClientsPath, home)
	cfg.FaultNamesPath = expandHome(cfg.FaultNamesPath, home)
	cfg.DBPath = expandHome(cfg.DBPath, home)
	cfg.ArchiveDir = expandHome(cfg.ArchiveDir, home)
	cfg.LogFile = expandHome(cfg.LogFile, home)

	return cfg, nil
}

func expandHome(path, home string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
