package config

const (
	defaultAuthURL               = "https://onlinetools.ups.com/security/v1/oauth/token"
	defaultTrackingURL           = "https://onlinetools.ups.com/api/track/v1/details/"
	defaultTransactionSrc        = "labelscan"
	defaultTokenValidityMinutes  = 50
	defaultRequestTimeoutSeconds = 20
	defaultAuthRetryAttempts     = 3
	defaultAuthRetryBackoffMS    = 500

	defaultActivityPath      = "trackResponse.shipment.0.package.0.activity"
	defaultStatusDescription = "Shipper created a label, UPS has not received the package yet. "
	defaultStatusCode        = "MP"
	defaultStatusType        = "M"
	defaultDescriptionField  = "status.description"
	defaultCodeField         = "status.code"
	defaultTypeField         = "status.type"

	defaultRequestDelayMS = 500

	defaultSourceTable    = "carrier_invoice_data"
	defaultTrackingColumn = "tracking_number"
	defaultAccountColumn  = "account_number"
	defaultDateColumn     = "invoice_date"
	defaultTrackingPrefix = "1Z"

	defaultOutputDir = "~/.local/share/labelscan/output"
	defaultLogDir    = "~/.local/share/labelscan/logs"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		UPS: UPS{
			AuthURL:               defaultAuthURL,
			TrackingURL:           defaultTrackingURL,
			TransactionSrc:        defaultTransactionSrc,
			TokenValidityMinutes:  defaultTokenValidityMinutes,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
			AuthRetryAttempts:     defaultAuthRetryAttempts,
			AuthRetryBackoffMS:    defaultAuthRetryBackoffMS,
		},
		Filter: Filter{
			ActivityPath:      defaultActivityPath,
			StatusDescription: defaultStatusDescription,
			StatusCode:        defaultStatusCode,
			StatusType:        defaultStatusType,
			DescriptionField:  defaultDescriptionField,
			CodeField:         defaultCodeField,
			TypeField:         defaultTypeField,
		},
		Batch: Batch{
			RequestDelayMS: defaultRequestDelayMS,
		},
		Source: Source{
			Table:          defaultSourceTable,
			TrackingColumn: defaultTrackingColumn,
			AccountColumn:  defaultAccountColumn,
			DateColumn:     defaultDateColumn,
			TrackingPrefix: defaultTrackingPrefix,
		},
		Output: Output{
			Dir: defaultOutputDir,
		},
		Logging: Logging{
			Level: defaultLogLevel,
			Dir:   defaultLogDir,
		},
	}
}
