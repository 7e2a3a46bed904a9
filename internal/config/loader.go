package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ConfigFileName is the name of the config file.
const ConfigFileName = "leapmeta.yaml"

// ConfigFileNameAlt is the alternate name of the config file.
const ConfigFileNameAlt = "leapmeta.yml"

// LoadFile loads a Config from a YAML file, applies defaults and expands
// ${VAR} references in credential fields. It does not validate.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ApplyDefaults()
	cfg.ExpandEnv()
	return &cfg, nil
}

// FindConfigFile returns the config file in dir, or "" when there is none.
func FindConfigFile(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// ExpandEnvVars expands ${VAR} patterns with environment variable values.
// Unset variables are left as-is.
func ExpandEnvVars(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})
}

// ExpandEnv expands environment references in locations and credentials.
func (c *Config) ExpandEnv() {
	c.Manifest = ExpandEnvVars(c.Manifest)
	c.Catalog = ExpandEnvVars(c.Catalog)
	c.RunResults = ExpandEnvVars(c.RunResults)
	c.Account = ExpandEnvVars(c.Account)
	c.Sink.URI = ExpandEnvVars(c.Sink.URI)
	c.Storage.S3.AccessKeyID = ExpandEnvVars(c.Storage.S3.AccessKeyID)
	c.Storage.S3.SecretAccessKey = ExpandEnvVars(c.Storage.S3.SecretAccessKey)
	c.Storage.GCS.CredentialsFile = ExpandEnvVars(c.Storage.GCS.CredentialsFile)
	c.Storage.Azure.AccountName = ExpandEnvVars(c.Storage.Azure.AccountName)
	c.Storage.Azure.AccountKey = ExpandEnvVars(c.Storage.Azure.AccountKey)
}
