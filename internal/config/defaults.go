package config

// Default configuration values.
const (
	DefaultMaxConcurrency = 4
	DefaultSinkFormat     = "json"
	DefaultStateFile      = ".leapmeta/state.db"
	DefaultS3Region       = "us-east-1"
)

// Sink formats.
const (
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatYAML  = "yaml"
)

// ApplyDefaults fills unset values.
func (c *Config) ApplyDefaults() {
	if c == nil {
		return
	}
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.Sink.Format == "" {
		c.Sink.Format = DefaultSinkFormat
	}
	if c.Storage.S3.Region == "" {
		c.Storage.S3.Region = DefaultS3Region
	}
}
