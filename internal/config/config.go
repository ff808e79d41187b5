package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sunovault/sunovault/internal/constants"
)

// Config holds all application configuration
type Config struct {
	Port       string
	DBPath     string
	OutputDir  string
	APIBaseURL string
	Token      string
	LogLevel   string
	LogFormat  string

	StartPage     int
	MaxPages      int
	Workers       int
	DownloadDelay time.Duration

	PreferWAV       bool
	EmbedMetadata   bool
	SaveLyrics      bool
	OrganizeByMonth bool
	StemSubfolders  bool
	AdaptiveStop    bool

	LikedOnly       bool
	HideDisliked    bool
	HideStems       bool
	StemsOnly       bool
	HideStudioClips bool
	IncludeTrashed  bool
	SourceType      string
	SearchText      string
	CollectionID    string
	CollectionKind  string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	home, _ := os.UserHomeDir()
	defaultOutput := filepath.Join(home, "Music/sunovault")

	return &Config{
		Port:       getEnv("PORT", constants.DefaultPort),
		DBPath:     getEnv("DB_PATH", constants.DefaultDBPath),
		OutputDir:  getEnv("OUTPUT_DIR", defaultOutput),
		APIBaseURL: getEnv("API_BASE_URL", constants.DefaultAPIBaseURL),
		Token:      getEnv("SUNO_TOKEN", ""),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFormat:  getEnv("LOG_FORMAT", "text"),

		StartPage:     getEnvInt("START_PAGE", constants.DefaultStartPage),
		MaxPages:      getEnvInt("MAX_PAGES", 0),
		Workers:       getEnvInt("WORKERS", constants.DefaultWorkers),
		DownloadDelay: getEnvDuration("DOWNLOAD_DELAY", 0),

		PreferWAV:       getEnvBool("PREFER_WAV", false),
		EmbedMetadata:   getEnvBool("EMBED_METADATA", true),
		SaveLyrics:      getEnvBool("SAVE_LYRICS", false),
		OrganizeByMonth: getEnvBool("ORGANIZE_BY_MONTH", false),
		StemSubfolders:  getEnvBool("STEM_SUBFOLDERS", false),
		AdaptiveStop:    getEnvBool("ADAPTIVE_STOP", true),

		LikedOnly:       getEnvBool("LIKED_ONLY", false),
		HideDisliked:    getEnvBool("HIDE_DISLIKED", false),
		HideStems:       getEnvBool("HIDE_STEMS", false),
		StemsOnly:       getEnvBool("STEMS_ONLY", false),
		HideStudioClips: getEnvBool("HIDE_STUDIO_CLIPS", false),
		IncludeTrashed:  getEnvBool("INCLUDE_TRASHED", false),
		SourceType:      getEnv("SOURCE_TYPE", constants.SourceTypeAll),
		SearchText:      getEnv("SEARCH_TEXT", ""),
		CollectionID:    getEnv("COLLECTION_ID", ""),
		CollectionKind:  getEnv("COLLECTION_KIND", ""),
	}
}

// Validate validates the configuration and returns detailed errors
func (c *Config) Validate() error {
	var errors []string

	if c.Port == "" {
		errors = append(errors, "PORT cannot be empty")
	} else {
		port, err := strconv.Atoi(c.Port)
		if err != nil {
			errors = append(errors, fmt.Sprintf("PORT must be a valid number, got: %s", c.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("PORT must be between 1 and 65535, got: %d", port))
		}
	}

	if c.DBPath == "" {
		errors = append(errors, "DB_PATH cannot be empty")
	}

	if c.OutputDir == "" {
		errors = append(errors, "OUTPUT_DIR cannot be empty")
	}

	if c.APIBaseURL == "" {
		errors = append(errors, "API_BASE_URL cannot be empty")
	} else if _, err := url.Parse(c.APIBaseURL); err != nil {
		errors = append(errors, fmt.Sprintf("API_BASE_URL is not a valid URL: %s", c.APIBaseURL))
	}

	if c.Token == "" {
		errors = append(errors, "SUNO_TOKEN cannot be empty")
	}

	if c.StartPage < 0 {
		errors = append(errors, fmt.Sprintf("START_PAGE cannot be negative, got: %d", c.StartPage))
	}
	if c.MaxPages < 0 {
		errors = append(errors, fmt.Sprintf("MAX_PAGES cannot be negative, got: %d", c.MaxPages))
	}
	if c.Workers < 1 {
		errors = append(errors, fmt.Sprintf("WORKERS must be at least 1, got: %d", c.Workers))
	}
	if c.DownloadDelay < 0 {
		errors = append(errors, fmt.Sprintf("DOWNLOAD_DELAY cannot be negative, got: %s", c.DownloadDelay))
	}

	if c.StemsOnly && c.HideStems {
		errors = append(errors, "STEMS_ONLY and HIDE_STEMS cannot both be set")
	}

	validSourceTypes := map[string]bool{
		constants.SourceTypeAll:     true,
		constants.SourceTypeUploads: true,
	}
	if !validSourceTypes[c.SourceType] {
		errors = append(errors, fmt.Sprintf("SOURCE_TYPE must be one of: all, uploads, got: %s", c.SourceType))
	}

	if c.CollectionKind != "" && c.CollectionKind != "project" && c.CollectionKind != "playlist" {
		errors = append(errors, fmt.Sprintf("COLLECTION_KIND must be one of: project, playlist, got: %s", c.CollectionKind))
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: debug, info, warn, error, got: %s", c.LogLevel))
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.LogFormat] {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: text, json, got: %s", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
