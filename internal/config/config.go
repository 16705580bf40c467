package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBambooBaseURL     = "https://api.bamboohr.com/api/gateway.php"
	DefaultLookaheadDays     = 30
	DefaultTokenPath         = "token.json"
	DefaultRequestsPerSecond = 5
	DefaultEnvFile           = ".env"
)

// GoogleCredentials represents the structure of Google OAuth credentials JSON file.
type GoogleCredentials struct {
	Installed struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"installed"`
	Web struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"web"`
}

// LoadGoogleCredentials loads Google OAuth credentials from a JSON file.
func LoadGoogleCredentials(path string) (clientID, clientSecret string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read credentials file: %w", err)
	}
	return ParseGoogleCredentials(data)
}

// ParseGoogleCredentials extracts the OAuth client from credentials JSON.
func ParseGoogleCredentials(data []byte) (clientID, clientSecret string, err error) {
	var creds GoogleCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", "", fmt.Errorf("failed to parse credentials file: %w", err)
	}

	// Try "installed" first (for desktop apps), then "web"
	if creds.Installed.ClientID != "" {
		return creds.Installed.ClientID, creds.Installed.ClientSecret, nil
	}
	if creds.Web.ClientID != "" {
		return creds.Web.ClientID, creds.Web.ClientSecret, nil
	}

	return "", "", fmt.Errorf("no client_id found in credentials file (expected 'installed' or 'web' section)")
}

// Config holds the configuration for the BambooHR calendar sync.
// The first three keys match the BambooHR secret names used by earlier deployments.
type Config struct {
	BambooAPIKey          string  `json:"bambooApiKey,omitempty" yaml:"bambooApiKey,omitempty"`
	BambooCompanyDomain   string  `json:"bambooCompanyDomain,omitempty" yaml:"bambooCompanyDomain,omitempty"`
	GoogleCalendarID      string  `json:"googleCalendarId,omitempty" yaml:"googleCalendarId,omitempty"`
	GoogleCredentialsPath string  `json:"google_credentials_path,omitempty" yaml:"google_credentials_path,omitempty"`
	TokenPath             string  `json:"token_path,omitempty" yaml:"token_path,omitempty"`
	BambooBaseURL         string  `json:"bamboo_base_url,omitempty" yaml:"bamboo_base_url,omitempty"`
	LookaheadDays         int     `json:"lookahead_days,omitempty" yaml:"lookahead_days,omitempty"` // 0 in a file means unset
	RequestsPerSecond     float64 `json:"requests_per_second,omitempty" yaml:"requests_per_second,omitempty"`
	Schedule              string  `json:"schedule,omitempty" yaml:"schedule,omitempty"` // cron expression; empty runs once
}

// Flags carries command-line values. Empty fields do not override.
type Flags struct {
	CalendarID            string
	GoogleCredentialsPath string
	TokenPath             string
	Schedule              string
}

// LoadConfigFromFile loads configuration from a JSON or YAML file, chosen by
// extension.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return &config, nil
}

// LoadEnvFile loads KEY=value pairs from path into the environment without
// overriding variables that are already set. An empty path loads .env from
// the working directory if there is one.
func LoadEnvFile(path string) error {
	if path == "" {
		if err := godotenv.Load(DefaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", DefaultEnvFile, err)
		}
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// LoadConfig loads configuration with the following precedence (highest to lowest):
// 1. Command-line flags
// 2. Environment variables
// 3. Config file
// 4. Defaults
// Returns an error if any required value is missing.
func LoadConfig(configFile string, flags Flags) (*Config, error) {
	config, err := LoadBambooConfig(configFile, flags)
	if err != nil {
		return nil, err
	}

	if config.GoogleCalendarID == "" {
		return nil, fmt.Errorf("googleCalendarId must be provided via --calendar-id flag, GOOGLE_CALENDAR_ID environment variable, or config file")
	}

	if config.GoogleCredentialsPath == "" {
		return nil, fmt.Errorf("google_credentials_path must be provided via --google-credentials-path flag, GOOGLE_CREDENTIALS_PATH environment variable, or config file")
	}

	return config, nil
}

// LoadBambooConfig resolves configuration like LoadConfig but only requires
// the BambooHR settings. The Google fields are filled in when present.
func LoadBambooConfig(configFile string, flags Flags) (*Config, error) {
	var config Config

	// Step 1: Load from config file if provided
	if configFile != "" {
		fileConfig, err := LoadConfigFromFile(configFile)
		if err != nil {
			return nil, err
		}
		config = *fileConfig
	}

	// Step 2: Override with environment variables
	if apiKey := os.Getenv("BAMBOO_API_KEY"); apiKey != "" {
		config.BambooAPIKey = apiKey
	}
	if companyDomain := os.Getenv("BAMBOO_COMPANY_DOMAIN"); companyDomain != "" {
		config.BambooCompanyDomain = companyDomain
	}
	if calendarID := os.Getenv("GOOGLE_CALENDAR_ID"); calendarID != "" {
		config.GoogleCalendarID = calendarID
	}
	if googleCredentialsPath := os.Getenv("GOOGLE_CREDENTIALS_PATH"); googleCredentialsPath != "" {
		config.GoogleCredentialsPath = googleCredentialsPath
	}
	if tokenPath := os.Getenv("GOOGLE_TOKEN_PATH"); tokenPath != "" {
		config.TokenPath = tokenPath
	}
	if baseURL := os.Getenv("BAMBOO_BASE_URL"); baseURL != "" {
		config.BambooBaseURL = baseURL
	}
	if lookahead := os.Getenv("LOOKAHEAD_DAYS"); lookahead != "" {
		days, err := strconv.Atoi(lookahead)
		if err != nil {
			return nil, fmt.Errorf("invalid LOOKAHEAD_DAYS value: %w", err)
		}
		if days < 1 {
			return nil, fmt.Errorf("LOOKAHEAD_DAYS must be at least 1, got %d", days)
		}
		config.LookaheadDays = days
	}
	if rps := os.Getenv("REQUESTS_PER_SECOND"); rps != "" {
		value, err := strconv.ParseFloat(rps, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid REQUESTS_PER_SECOND value: %w", err)
		}
		config.RequestsPerSecond = value
	}
	if schedule := os.Getenv("SYNC_SCHEDULE"); schedule != "" {
		config.Schedule = schedule
	}

	// Step 3: Override with command-line flags (highest priority)
	if flags.CalendarID != "" {
		config.GoogleCalendarID = flags.CalendarID
	}
	if flags.GoogleCredentialsPath != "" {
		config.GoogleCredentialsPath = flags.GoogleCredentialsPath
	}
	if flags.TokenPath != "" {
		config.TokenPath = flags.TokenPath
	}
	if flags.Schedule != "" {
		config.Schedule = flags.Schedule
	}

	// Step 4: Apply defaults and validate required fields
	if config.BambooAPIKey == "" {
		return nil, fmt.Errorf("bambooApiKey must be provided via BAMBOO_API_KEY environment variable or config file")
	}

	if config.BambooCompanyDomain == "" {
		return nil, fmt.Errorf("bambooCompanyDomain must be provided via BAMBOO_COMPANY_DOMAIN environment variable or config file")
	}

	if config.LookaheadDays < 0 {
		return nil, fmt.Errorf("lookahead_days must not be negative, got %d", config.LookaheadDays)
	}
	if config.LookaheadDays == 0 {
		config.LookaheadDays = DefaultLookaheadDays
	}

	if config.RequestsPerSecond < 0 {
		return nil, fmt.Errorf("requests_per_second must not be negative, got %v", config.RequestsPerSecond)
	}
	if config.RequestsPerSecond == 0 {
		config.RequestsPerSecond = DefaultRequestsPerSecond
	}

	if config.TokenPath == "" {
		config.TokenPath = DefaultTokenPath
	}

	if config.BambooBaseURL == "" {
		config.BambooBaseURL = DefaultBambooBaseURL
	}

	return &config, nil
}
