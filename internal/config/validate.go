package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoCredentials is returned when no usable credential pairs are configured.
// This aborts a scan before any processing starts.
var ErrNoCredentials = errors.New("no UPS credential pairs configured")

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCredentials(); err != nil {
		return err
	}
	if err := c.validateUPS(); err != nil {
		return err
	}
	if err := c.validateFilter(); err != nil {
		return err
	}
	if err := c.validateSource(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCredentials() error {
	if len(c.Credentials) == 0 {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/labelscan/config.toml"
		}
		return fmt.Errorf("%w: add [[credentials]] entries to %s (create with 'labelscan config init') or set UPS_CLIENT_ID/UPS_CLIENT_SECRET", ErrNoCredentials, defaultPath)
	}
	seen := make(map[string]struct{}, len(c.Credentials))
	for i, cred := range c.Credentials {
		if cred.ClientID == "" {
			return fmt.Errorf("credentials[%d] (%s): client_id must be set", i, cred.Label)
		}
		if cred.ClientSecret == "" {
			return fmt.Errorf("credentials[%d] (%s): client_secret must be set", i, cred.Label)
		}
		if _, ok := seen[cred.Label]; ok {
			return fmt.Errorf("credentials[%d]: duplicate label %q", i, cred.Label)
		}
		seen[cred.Label] = struct{}{}
	}
	return nil
}

func (c *Config) validateUPS() error {
	if !strings.HasPrefix(c.UPS.AuthURL, "http://") && !strings.HasPrefix(c.UPS.AuthURL, "https://") {
		return fmt.Errorf("ups.auth_url must be an http(s) URL, got %q", c.UPS.AuthURL)
	}
	if !strings.HasPrefix(c.UPS.TrackingURL, "http://") && !strings.HasPrefix(c.UPS.TrackingURL, "https://") {
		return fmt.Errorf("ups.tracking_url must be an http(s) URL, got %q", c.UPS.TrackingURL)
	}
	return nil
}

func (c *Config) validateFilter() error {
	if c.Filter.ActivityPath == "" {
		return errors.New("filter.activity_path must be set")
	}
	if c.Filter.StatusDescription == "" {
		return errors.New("filter.status_description must be set")
	}
	return nil
}

func (c *Config) validateSource() error {
	for name, value := range map[string]string{
		"source.start_date": c.Source.StartDate,
		"source.end_date":   c.Source.EndDate,
	} {
		if value == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", value); err != nil {
			return fmt.Errorf("%s must be YYYY-MM-DD, got %q", name, value)
		}
	}
	return nil
}

// TokenValidity returns the configured token validity window.
func (c *Config) TokenValidity() time.Duration {
	return time.Duration(c.UPS.TokenValidityMinutes) * time.Minute
}

// RequestTimeout returns the per-request HTTP timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.UPS.RequestTimeoutSeconds) * time.Second
}

// RequestDelay returns the fixed inter-request delay for the scan loop.
func (c *Config) RequestDelay() time.Duration {
	return time.Duration(c.Batch.RequestDelayMS) * time.Millisecond
}

// AuthRetryBackoff returns the fixed backoff between token issue attempts.
func (c *Config) AuthRetryBackoff() time.Duration {
	return time.Duration(c.UPS.AuthRetryBackoffMS) * time.Millisecond
}
