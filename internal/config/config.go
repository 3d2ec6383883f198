package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Credential is one client key/secret pair used to obtain UPS access tokens.
// Pairs are tried in configuration order; the first is active by default.
type Credential struct {
	Label        string `toml:"label"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// UPS contains endpoints and token lifecycle settings for the UPS APIs.
type UPS struct {
	AuthURL               string `toml:"auth_url"`
	TrackingURL           string `toml:"tracking_url"`
	TransactionSrc        string `toml:"transaction_src"`
	TokenValidityMinutes  int    `toml:"token_validity_minutes"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	AuthRetryAttempts     int    `toml:"auth_retry_attempts"`
	AuthRetryBackoffMS    int    `toml:"auth_retry_backoff_ms"`
}

// Filter holds the external contract constants the label-only classifier
// matches against. These mirror the UPS tracking response shape and must not
// be hardcoded anywhere else.
type Filter struct {
	ActivityPath      string `toml:"activity_path"`
	StatusDescription string `toml:"status_description"`
	StatusCode        string `toml:"status_code"`
	StatusType        string `toml:"status_type"`
	DescriptionField  string `toml:"description_field"`
	CodeField         string `toml:"code_field"`
	TypeField         string `toml:"type_field"`
}

// Batch contains pacing settings for the scan loop.
type Batch struct {
	RequestDelayMS int `toml:"request_delay_ms"`
}

// Source describes the historical invoice store identifiers are extracted from.
type Source struct {
	DBPath         string `toml:"db_path"`
	Table          string `toml:"table"`
	TrackingColumn string `toml:"tracking_column"`
	AccountColumn  string `toml:"account_column"`
	DateColumn     string `toml:"date_column"`
	TrackingPrefix string `toml:"tracking_prefix"`
	StartDate      string `toml:"start_date"`
	EndDate        string `toml:"end_date"`
	Limit          int    `toml:"limit"`
}

// Output contains result file destinations.
type Output struct {
	Dir string `toml:"dir"`
}

// Logging contains log output settings. An empty format selects console when
// stdout is a terminal and json otherwise.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	Dir    string `toml:"dir"`
}

// Config encapsulates all configuration values for labelscan.
//
// Sections by subsystem:
//   - Credentials: ordered UPS client key/secret pairs (failover order)
//   - UPS: auth + tracking endpoints and token lifecycle
//   - Filter: label-only match constants and response field names
//   - Batch: inter-request pacing
//   - Source: historical store the tracking numbers are extracted from
//   - Output: result file directory
//   - Logging: log format, level, and directory
type Config struct {
	Credentials []Credential `toml:"credentials"`
	UPS         UPS          `toml:"ups"`
	Filter      Filter       `toml:"filter"`
	Batch       Batch        `toml:"batch"`
	Source      Source       `toml:"source"`
	Output      Output       `toml:"output"`
	Logging     Logging      `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/labelscan/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("labelscan.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the output and log directories for a scan run.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Output.Dir, c.Logging.Dir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
