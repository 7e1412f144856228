// Package config defines leadflow configuration and how it is loaded.
package config

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// ImportWorkers sets how many background imports run at once.
	ImportWorkers int `koanf:"import_workers" validate:"min=1"`

	// ImportQueueSize bounds the number of submitted imports waiting for a worker.
	ImportQueueSize int `koanf:"import_queue_size" validate:"min=1"`

	// MaxImportBytes caps the size of a single import file.
	MaxImportBytes int64 `koanf:"max_import_bytes" validate:"min=1"`

	// RowsPerSecond paces row processing during an import. Zero disables pacing.
	RowsPerSecond float64 `koanf:"rows_per_second" validate:"min=0"`

	// PhoneRegion is the ISO 3166 region used to read phone numbers without a country code.
	PhoneRegion string `koanf:"phone_region" validate:"len=2,uppercase"`

	// DateFormat is the Go time layout used for a lead's DateAdded.
	DateFormat string `koanf:"date_format" validate:"required"`

	// TopConvertingLimit is the default size of the top converting list.
	TopConvertingLimit int `koanf:"top_converting_limit" validate:"min=1"`

	// SourcePoints, TimelinePoints and EngagementPoints override entries of the
	// built-in scoring tables. Keys are matched case-insensitively.
	SourcePoints     map[string]int `koanf:"source_points" validate:"dive,min=0"`
	TimelinePoints   map[string]int `koanf:"timeline_points" validate:"dive,min=0"`
	EngagementPoints map[string]int `koanf:"engagement_points" validate:"dive,min=0"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		ImportWorkers:      1,
		ImportQueueSize:    64,
		MaxImportBytes:     32 << 20,
		RowsPerSecond:      0,
		PhoneRegion:        "US",
		DateFormat:         "1/2/2006",
		TopConvertingLimit: 5,
	}
}
