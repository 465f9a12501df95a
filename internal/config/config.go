package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the process configuration. Values come from an optional TOML
// file named by CMS_CONFIG_FILE; environment variables override the file.
type Config struct {
	DatabaseURL   string        // CMS_DATABASE_URL (empty = in-memory store)
	NATSURL       string        // CMS_NATS_URL (optional, empty = no events, in-process queue)
	ProjectFile   string        // CMS_PROJECT_FILE (default "config/project.yaml")
	LogLevel      slog.Level    // CMS_LOG_LEVEL (default "info")
	WatchDebounce time.Duration // CMS_WATCH_DEBOUNCE (default 250ms)

	// Sync settings
	SyncInterval   time.Duration // CMS_SYNC_INTERVAL (default 3m; 0 = disabled)
	SyncS3Bucket   string        // CMS_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        // CMS_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region   string        // CMS_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key      string        // CMS_SYNC_S3_KEY (default "cms/project.jsonl")
	SyncGitRepo    string        // CMS_SYNC_GIT_REPO (enables git when set; path to clone)
	SyncGitFile    string        // CMS_SYNC_GIT_FILE (default "project.jsonl")
	SyncGitBranch  string        // CMS_SYNC_GIT_BRANCH (default "main")
}

// fileConfig is the layout of the CMS_CONFIG_FILE TOML file.
type fileConfig struct {
	DatabaseURL   string `toml:"database_url"`
	NATSURL       string `toml:"nats_url"`
	ProjectFile   string `toml:"project_file"`
	LogLevel      string `toml:"log_level"`
	WatchDebounce string `toml:"watch_debounce"`
	Sync          struct {
		Interval   string `toml:"interval"`
		S3Bucket   string `toml:"s3_bucket"`
		S3Endpoint string `toml:"s3_endpoint"`
		S3Region   string `toml:"s3_region"`
		S3Key      string `toml:"s3_key"`
		GitRepo    string `toml:"git_repo"`
		GitFile    string `toml:"git_file"`
		GitBranch  string `toml:"git_branch"`
	} `toml:"sync"`
}

func Load() (*Config, error) {
	var f fileConfig
	if path := os.Getenv("CMS_CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, &f); err != nil {
			return nil, fmt.Errorf("CMS_CONFIG_FILE: %w", err)
		}
	}

	c := &Config{
		DatabaseURL:    setting("CMS_DATABASE_URL", f.DatabaseURL, ""),
		NATSURL:        setting("CMS_NATS_URL", f.NATSURL, ""),
		ProjectFile:    setting("CMS_PROJECT_FILE", f.ProjectFile, "config/project.yaml"),
		SyncS3Bucket:   setting("CMS_SYNC_S3_BUCKET", f.Sync.S3Bucket, ""),
		SyncS3Endpoint: setting("CMS_SYNC_S3_ENDPOINT", f.Sync.S3Endpoint, ""),
		SyncS3Region:   setting("CMS_SYNC_S3_REGION", f.Sync.S3Region, "us-east-1"),
		SyncS3Key:      setting("CMS_SYNC_S3_KEY", f.Sync.S3Key, "cms/project.jsonl"),
		SyncGitRepo:    setting("CMS_SYNC_GIT_REPO", f.Sync.GitRepo, ""),
		SyncGitFile:    setting("CMS_SYNC_GIT_FILE", f.Sync.GitFile, "project.jsonl"),
		SyncGitBranch:  setting("CMS_SYNC_GIT_BRANCH", f.Sync.GitBranch, "main"),
	}

	level := setting("CMS_LOG_LEVEL", f.LogLevel, "info")
	if err := c.LogLevel.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("CMS_LOG_LEVEL: %w", err)
	}

	var err error
	if c.WatchDebounce, err = duration("CMS_WATCH_DEBOUNCE", f.WatchDebounce, "250ms"); err != nil {
		return nil, err
	}
	if c.SyncInterval, err = duration("CMS_SYNC_INTERVAL", f.Sync.Interval, "3m"); err != nil {
		return nil, err
	}
	return c, nil
}

// SyncEnabled reports whether any sync destination is configured.
func (c *Config) SyncEnabled() bool {
	return c.SyncInterval > 0 && (c.SyncS3Bucket != "" || c.SyncGitRepo != "")
}

// setting returns the env var when set, else the file value, else fallback.
func setting(key, fileValue, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if fileValue != "" {
		return fileValue
	}
	return fallback
}

func duration(key, fileValue, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(setting(key, fileValue, fallback))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
