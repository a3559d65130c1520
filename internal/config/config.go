package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jgoulah/punchsync/pkg/models"
)

const (
	DefaultTimezone = "America/Los_Angeles"

	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"
	StoreNone   = "none"

	CredentialsFromConfig = "config"
	CredentialsFromEnv    = "env"

	// EnvPrefix prefixes environment lookups, e.g. PUNCHSYNC_JESUS_PASSWORD
	EnvPrefix = "PUNCHSYNC"
)

// Config holds the application configuration
type Config struct {
	Employees         []Employee     `yaml:"employees"`
	Timezone          string         `yaml:"timezone,omitempty"`           // Fallback: America/Los_Angeles
	PortalURL         string         `yaml:"portal_url,omitempty"`         // Fallback: the public Acumen portal
	CredentialsSource string         `yaml:"credentials_source,omitempty"` // "config" (default) or "env"
	Store             StoreConfig    `yaml:"store"`
	Calendar          CalendarConfig `yaml:"calendar"`
	Email             EmailConfig    `yaml:"email,omitempty"`
	MQTT              MQTTConfig     `yaml:"mqtt,omitempty"`
}

// Employee is one portal account
type Employee struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email,omitempty"`
	Password string `yaml:"password,omitempty"`
	Color    string `yaml:"color,omitempty"` // Google Calendar color id, "1" to "11"
}

// StoreConfig selects the persistence backend
type StoreConfig struct {
	Backend         string `yaml:"backend,omitempty"` // sqlite (default), mongo or none
	Path            string `yaml:"path,omitempty"`    // SQLite file, fallback: punchsync.db
	MongoURI        string `yaml:"mongo_uri,omitempty"`
	MongoDatabase   string `yaml:"mongo_database,omitempty"`
	MongoCollection string `yaml:"mongo_collection,omitempty"`
}

// CalendarConfig holds Google Calendar settings
type CalendarConfig struct {
	Enabled         bool   `yaml:"enabled"`
	CalendarID      string `yaml:"calendar_id"`
	CredentialsFile string `yaml:"credentials_file,omitempty"` // OAuth client secret, fallback: credentials.json
	TokenFile       string `yaml:"token_file,omitempty"`       // Fallback: token.json
	DefaultColor    string `yaml:"default_color,omitempty"`
}

// EmailConfig holds SES settings for summary emails
type EmailConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Sender     string   `yaml:"sender"`
	Recipients []string `yaml:"recipients"`
	Region     string   `yaml:"region,omitempty"` // Fallback: us-east-1
}

// MQTTConfig holds MQTT broker settings for publishing summaries
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // host:port
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"`
	ClientID    string `yaml:"client_id,omitempty"`
}

// Load reads the config file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty config if file doesn't exist
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the config to file
func Save(configPath string, cfg *Config) error {
	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default config file path (local directory)
func DefaultConfigPath() string {
	return "config.yaml"
}

// Location loads the configured timezone
func (c *Config) Location() (*time.Location, error) {
	name := c.Timezone
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", name, err)
	}
	return loc, nil
}

// GetStoreBackend returns the store backend, defaulting to sqlite
func (c *Config) GetStoreBackend() string {
	if c.Store.Backend == "" {
		return StoreSQLite
	}
	return strings.ToLower(c.Store.Backend)
}

// GetDBPath returns the SQLite path, defaulting to punchsync.db
func (c *Config) GetDBPath() string {
	if c.Store.Path == "" {
		return "punchsync.db"
	}
	return c.Store.Path
}

// GetMongoDatabase returns the Mongo database name, defaulting to punchsync
func (c *Config) GetMongoDatabase() string {
	if c.Store.MongoDatabase == "" {
		return "punchsync"
	}
	return c.Store.MongoDatabase
}

// GetMongoCollection returns the Mongo collection, defaulting to punches
func (c *Config) GetMongoCollection() string {
	if c.Store.MongoCollection == "" {
		return "punches"
	}
	return c.Store.MongoCollection
}

// GetCredentialsFile returns the OAuth client secret path
func (c *Config) GetCredentialsFile() string {
	if c.Calendar.CredentialsFile == "" {
		return "credentials.json"
	}
	return c.Calendar.CredentialsFile
}

// GetTokenFile returns the OAuth token path
func (c *Config) GetTokenFile() string {
	if c.Calendar.TokenFile == "" {
		return "token.json"
	}
	return c.Calendar.TokenFile
}

// GetEmailRegion returns the SES region, defaulting to us-east-1
func (c *Config) GetEmailRegion() string {
	if c.Email.Region == "" {
		return "us-east-1"
	}
	return c.Email.Region
}

// Colors maps employee names to their calendar color
func (c *Config) Colors() map[string]string {
	colors := make(map[string]string, len(c.Employees))
	for _, e := range c.Employees {
		if e.Color != "" {
			colors[e.Name] = e.Color
		}
	}
	return colors
}

// EmployeeNames lists configured employees in file order
func (c *Config) EmployeeNames() []string {
	names := make([]string, 0, len(c.Employees))
	for _, e := range c.Employees {
		names = append(names, e.Name)
	}
	return names
}

// Employee finds an employee by name, case-insensitively
func (c *Config) Employee(name string) (Employee, bool) {
	for _, e := range c.Employees {
		if strings.EqualFold(e.Name, name) {
			return e, true
		}
	}
	return Employee{}, false
}

// Credentials returns the portal login for an employee. With the "env"
// source, PUNCHSYNC_<NAME>_EMAIL and PUNCHSYNC_<NAME>_PASSWORD override the
// file values.
func (c *Config) Credentials(name string) (models.Credentials, error) {
	e, ok := c.Employee(name)
	if !ok {
		return models.Credentials{}, fmt.Errorf("unknown employee %q", name)
	}

	creds := models.Credentials{Employee: e.Name, Email: e.Email, Password: e.Password}

	switch strings.ToLower(c.CredentialsSource) {
	case "", CredentialsFromConfig:
	case CredentialsFromEnv:
		v := viper.New()
		v.SetEnvPrefix(EnvPrefix)
		v.AutomaticEnv()

		key := envKey(e.Name)
		if email := v.GetString(key + "_email"); email != "" {
			creds.Email = email
		}
		if password := v.GetString(key + "_password"); password != "" {
			creds.Password = password
		}
	default:
		return models.Credentials{}, fmt.Errorf("unknown credentials source %q", c.CredentialsSource)
	}

	if creds.Email == "" || creds.Password == "" {
		return models.Credentials{}, fmt.Errorf("missing email or password for %s", e.Name)
	}
	return creds, nil
}

// envKey turns "Maria Jose" into "maria_jose"
func envKey(name string) string {
	return strings.ToLower(strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, name))
}
