// Package config handles configuration loading for the Peppol support
// services.
//
// Configuration is loaded from a YAML file with support for environment
// variable expansion (${VAR} or $VAR syntax), so that credentials such as
// database URIs can be injected at runtime.
//
// # Configuration Sections
//
//   - network: Peppol network, production or test
//   - supportCache: support cache lifetime and entry backend (memory, redis)
//   - discovery: SML/SMP lookup settings
//   - redis: Redis connection for shared cache entries
//   - storage: report storage backend (file, mongodb or sql)
//   - reporting: optional business rule file
//   - observability: Prometheus metrics textfile
//
// # Example Configuration
//
//	network: production
//
//	supportCache:
//	  maxDuration: 6h
//	  backend: redis
//
//	discovery:
//	  caFile: /etc/peppol/smp-ca.pem
//
//	redis:
//	  address: localhost:6379
//
//	storage:
//	  type: sql
//	  sql:
//	    dialect: postgres
//	    dsn: ${PEPPOL_REPORTING_DSN}
//	    schema: reporting
//
// See [Load] for loading configuration from a file.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure
type Config struct {
	Network       string              `yaml:"network" validate:"oneof=production test"`
	SupportCache  SupportCacheConfig  `yaml:"supportCache"`
	Discovery     DiscoveryConfig     `yaml:"discovery"`
	Redis         RedisConfig         `yaml:"redis"`
	Storage       StorageConfig       `yaml:"storage"`
	Reporting     ReportingConfig     `yaml:"reporting"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// SupportCacheConfig holds support cache settings
type SupportCacheConfig struct {
	// MaxDuration is the lifetime of new cache entries
	MaxDuration time.Duration `yaml:"maxDuration" validate:"gt=0"`
	// Backend keeps entries in process ("memory") or in Redis ("redis")
	Backend   string `yaml:"backend" validate:"oneof=memory redis"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// DiscoveryConfig holds SML and SMP lookup settings
type DiscoveryConfig struct {
	// DNSServer as host:port; the system resolver when empty
	DNSServer string `yaml:"dnsServer"`
	// Zone overrides the SML zone of the network
	Zone string `yaml:"zone"`
	// CAFile holds extra trust anchors for HTTPS SMPs
	CAFile string `yaml:"caFile"`

	Timeout          time.Duration `yaml:"timeout" validate:"gt=0"`
	UserAgent        string        `yaml:"userAgent"`
	TransportProfile string        `yaml:"transportProfile" validate:"required"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
}

// StorageConfig selects and configures the report storage
type StorageConfig struct {
	Type    string        `yaml:"type" validate:"oneof=file mongodb sql"`
	File    FileConfig    `yaml:"file"`
	MongoDB MongoDBConfig `yaml:"mongodb"`
	SQL     SQLConfig     `yaml:"sql"`
}

// FileConfig holds file storage settings
type FileConfig struct {
	Dir string `yaml:"dir"`
}

// MongoDBConfig holds MongoDB connection settings
type MongoDBConfig struct {
	URI                      string `yaml:"uri"`
	Database                 string `yaml:"database"`
	ReportsCollection        string `yaml:"reportsCollection"`
	SendingReportsCollection string `yaml:"sendingReportsCollection"`
}

// SQLConfig holds relational database settings
type SQLConfig struct {
	Dialect string `yaml:"dialect" validate:"omitempty,oneof=postgres sqlite"`
	// DSN is a connection string for postgres and a file path for sqlite
	DSN          string `yaml:"dsn"`
	Schema       string `yaml:"schema"`
	MaxOpenConns int    `yaml:"maxOpenConns" validate:"gte=0"`
}

// ReportingConfig holds report validation settings
type ReportingConfig struct {
	// RulesFile replaces the built-in business rules
	RulesFile string `yaml:"rulesFile"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Textfile is written in the node exporter textfile format after each
	// command
	Textfile string `yaml:"textfile"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return parse(data)
}

// Default returns the configuration of an empty file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Network == "" {
		c.Network = "production"
	}
	if c.SupportCache.MaxDuration == 0 {
		c.SupportCache.MaxDuration = 6 * time.Hour
	}
	if c.SupportCache.Backend == "" {
		c.SupportCache.Backend = "memory"
	}
	if c.Discovery.Timeout == 0 {
		c.Discovery.Timeout = 10 * time.Second
	}
	if c.Discovery.TransportProfile == "" {
		c.Discovery.TransportProfile = "peppol-transport-as4-v2_0"
	}
	if c.Redis.Address == "" {
		c.Redis.Address = "localhost:6379"
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "file"
	}
	if c.Storage.File.Dir == "" {
		c.Storage.File.Dir = "./peppol-reporting"
	}
	if c.Storage.MongoDB.Database == "" {
		c.Storage.MongoDB.Database = "peppol"
	}
	if c.Storage.SQL.Dialect == "" {
		c.Storage.SQL.Dialect = "postgres"
	}
	if c.Observability.Metrics.Textfile == "" {
		c.Observability.Metrics.Textfile = "peppol-support.prom"
	}
}

var validate = newValidator()

// newValidator reports fields by their YAML names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed '%s' (value %v)", fieldPath(fe), fe.Tag(), fe.Value()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	switch c.Storage.Type {
	case "mongodb":
		if c.Storage.MongoDB.URI == "" {
			return fmt.Errorf("storage.mongodb.uri is required when type is 'mongodb'")
		}
	case "sql":
		if c.Storage.SQL.DSN == "" {
			return fmt.Errorf("storage.sql.dsn is required when type is 'sql'")
		}
	}
	return nil
}

// fieldPath drops the root type from the namespace: storage.type.
func fieldPath(fe validator.FieldError) string {
	_, path, _ := strings.Cut(fe.Namespace(), ".")
	return path
}
