package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeCredentials(); err != nil {
		return err
	}
	c.normalizeUPS()
	c.normalizeFilter()
	if err := c.normalizeSource(); err != nil {
		return err
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeCredentials() error {
	trimmed := make([]Credential, 0, len(c.Credentials))
	for i, cred := range c.Credentials {
		cred.Label = strings.TrimSpace(cred.Label)
		cred.ClientID = strings.TrimSpace(cred.ClientID)
		cred.ClientSecret = strings.TrimSpace(cred.ClientSecret)
		if cred.ClientID == "" && cred.ClientSecret == "" {
			continue
		}
		if cred.Label == "" {
			cred.Label = fmt.Sprintf("pair-%d", i+1)
		}
		trimmed = append(trimmed, cred)
	}
	c.Credentials = trimmed

	// Environment fallback mirrors the single-pair setup the UPS developer
	// portal hands out.
	if len(c.Credentials) == 0 {
		id, okID := os.LookupEnv("UPS_CLIENT_ID")
		secret, okSecret := os.LookupEnv("UPS_CLIENT_SECRET")
		if okID && okSecret && strings.TrimSpace(id) != "" && strings.TrimSpace(secret) != "" {
			c.Credentials = []Credential{{
				Label:        "env",
				ClientID:     strings.TrimSpace(id),
				ClientSecret: strings.TrimSpace(secret),
			}}
		}
	}
	return nil
}

func (c *Config) normalizeUPS() {
	c.UPS.AuthURL = strings.TrimSpace(c.UPS.AuthURL)
	if c.UPS.AuthURL == "" {
		c.UPS.AuthURL = defaultAuthURL
	}
	c.UPS.TrackingURL = strings.TrimSpace(c.UPS.TrackingURL)
	if c.UPS.TrackingURL == "" {
		c.UPS.TrackingURL = defaultTrackingURL
	}
	c.UPS.TransactionSrc = strings.TrimSpace(c.UPS.TransactionSrc)
	if c.UPS.TransactionSrc == "" {
		c.UPS.TransactionSrc = defaultTransactionSrc
	}
	if c.UPS.TokenValidityMinutes <= 0 {
		c.UPS.TokenValidityMinutes = defaultTokenValidityMinutes
	}
	if c.UPS.RequestTimeoutSeconds <= 0 {
		c.UPS.RequestTimeoutSeconds = defaultRequestTimeoutSeconds
	}
	if c.UPS.AuthRetryAttempts <= 0 {
		c.UPS.AuthRetryAttempts = defaultAuthRetryAttempts
	}
	if c.UPS.AuthRetryBackoffMS <= 0 {
		c.UPS.AuthRetryBackoffMS = defaultAuthRetryBackoffMS
	}
}

func (c *Config) normalizeFilter() {
	// The expected description keeps trailing punctuation; only the
	// surrounding field names are trimmed.
	c.Filter.ActivityPath = strings.TrimSpace(c.Filter.ActivityPath)
	if c.Filter.ActivityPath == "" {
		c.Filter.ActivityPath = defaultActivityPath
	}
	if c.Filter.StatusDescription == "" {
		c.Filter.StatusDescription = defaultStatusDescription
	}
	c.Filter.StatusCode = strings.TrimSpace(c.Filter.StatusCode)
	if c.Filter.StatusCode == "" {
		c.Filter.StatusCode = defaultStatusCode
	}
	c.Filter.StatusType = strings.TrimSpace(c.Filter.StatusType)
	if c.Filter.StatusType == "" {
		c.Filter.StatusType = defaultStatusType
	}
	c.Filter.DescriptionField = strings.TrimSpace(c.Filter.DescriptionField)
	if c.Filter.DescriptionField == "" {
		c.Filter.DescriptionField = defaultDescriptionField
	}
	c.Filter.CodeField = strings.TrimSpace(c.Filter.CodeField)
	if c.Filter.CodeField == "" {
		c.Filter.CodeField = defaultCodeField
	}
	c.Filter.TypeField = strings.TrimSpace(c.Filter.TypeField)
	if c.Filter.TypeField == "" {
		c.Filter.TypeField = defaultTypeField
	}
	if c.Batch.RequestDelayMS < 0 {
		c.Batch.RequestDelayMS = defaultRequestDelayMS
	}
}

func (c *Config) normalizeSource() error {
	var err error
	c.Source.DBPath = strings.TrimSpace(c.Source.DBPath)
	if c.Source.DBPath != "" {
		if c.Source.DBPath, err = expandPath(c.Source.DBPath); err != nil {
			return fmt.Errorf("source.db_path: %w", err)
		}
	}
	c.Source.Table = strings.TrimSpace(c.Source.Table)
	if c.Source.Table == "" {
		c.Source.Table = defaultSourceTable
	}
	c.Source.TrackingColumn = strings.TrimSpace(c.Source.TrackingColumn)
	if c.Source.TrackingColumn == "" {
		c.Source.TrackingColumn = defaultTrackingColumn
	}
	c.Source.AccountColumn = strings.TrimSpace(c.Source.AccountColumn)
	if c.Source.AccountColumn == "" {
		c.Source.AccountColumn = defaultAccountColumn
	}
	c.Source.DateColumn = strings.TrimSpace(c.Source.DateColumn)
	if c.Source.DateColumn == "" {
		c.Source.DateColumn = defaultDateColumn
	}
	c.Source.TrackingPrefix = strings.TrimSpace(c.Source.TrackingPrefix)
	c.Source.StartDate = strings.TrimSpace(c.Source.StartDate)
	c.Source.EndDate = strings.TrimSpace(c.Source.EndDate)
	if c.Source.Limit < 0 {
		c.Source.Limit = 0
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Output.Dir) == "" {
		c.Output.Dir = defaultOutputDir
	}
	if c.Output.Dir, err = expandPath(c.Output.Dir); err != nil {
		return fmt.Errorf("output.dir: %w", err)
	}
	if strings.TrimSpace(c.Logging.Dir) == "" {
		c.Logging.Dir = defaultLogDir
	}
	if c.Logging.Dir, err = expandPath(c.Logging.Dir); err != nil {
		return fmt.Errorf("logging.dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
