// Package config provides the run configuration of an extraction.
// It is decoupled from CLI concerns; internal/cli/config layers flags and
// environment variables on top of it.
package config

// Config holds everything an extraction run needs.
type Config struct {
	// Artifact locations: local paths or s3://, gs://, az:// URIs
	Manifest   string `koanf:"manifest"`
	Catalog    string `koanf:"catalog"`
	RunResults string `koanf:"run_results"`

	// Platform overrides metadata.adapter_type of the manifest
	Platform string `koanf:"platform"`
	// Account qualifies dataset identities (e.g. Snowflake account)
	Account string `koanf:"account"`

	DocsBaseURL      string `koanf:"docs_base_url"`
	ProjectSourceURL string `koanf:"project_source_url"`

	MetaOwnerships []MetaOwnership `koanf:"meta_ownerships"`
	MetaTags       []MetaTag       `koanf:"meta_tags"`

	// MaxConcurrency bounds parallel artifact fetches
	MaxConcurrency int `koanf:"max_concurrency"`

	Sink      SinkConfig    `koanf:"sink"`
	StatePath string        `koanf:"state_path"`
	Storage   StorageConfig `koanf:"storage"`
}

// MetaOwnership maps a meta key holding emails or user names to an ownership.
type MetaOwnership struct {
	MetaKey       string `koanf:"meta_key"`
	OwnershipType string `koanf:"ownership_type"`
	// EmailDomain is appended to bare user names ("jane" -> "jane@acme.com")
	EmailDomain string `koanf:"email_domain"`
}

// MetaTag maps a meta key to a governance tag when its value matches.
type MetaTag struct {
	MetaKey string `koanf:"meta_key"`
	// MetaValueMatcher is a regular expression the whole value must match;
	// empty matches any value
	MetaValueMatcher string `koanf:"meta_value_matcher"`
	TagType          string `koanf:"tag_type"`
}

// SinkConfig selects where and how events are written.
type SinkConfig struct {
	URI    string `koanf:"uri"`
	Format string `koanf:"format"`
}

// StorageConfig holds object store credentials.
type StorageConfig struct {
	S3    S3Config    `koanf:"s3"`
	GCS   GCSConfig   `koanf:"gcs"`
	Azure AzureConfig `koanf:"azure"`
}

// S3Config configures the S3 (or S3-compatible) client.
type S3Config struct {
	Region          string `koanf:"region"`
	Endpoint        string `koanf:"endpoint"`
	AccessKeyID     string `koanf:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key"`
	UsePathStyle    bool   `koanf:"use_path_style"`
}

// GCSConfig configures the Google Cloud Storage client.
type GCSConfig struct {
	CredentialsFile string `koanf:"credentials_file"`
}

// AzureConfig configures the Azure Blob Storage client.
type AzureConfig struct {
	AccountName string `koanf:"account_name"`
	AccountKey  string `koanf:"account_key"`
	Endpoint    string `koanf:"endpoint"`
}
