package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EngineNative    = "native"
	EnginePhotoshop = "photoshop"
)

type Config struct {
	Application ApplicationConfig `mapstructure:"application"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Poster      PosterConfig      `mapstructure:"poster"`
	Photoshop   PhotoshopConfig   `mapstructure:"photoshop"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Log         LogConfig         `mapstructure:"log"`
}

type ApplicationConfig struct {
	Name     string `mapstructure:"name"`
	Version  string `mapstructure:"version"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Engine   string `mapstructure:"engine"`
	Language string `mapstructure:"language"`
}

func (c *ApplicationConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type StorageConfig struct {
	Template string `mapstructure:"template"`
	Output   string `mapstructure:"output"`
}

// PosterConfig holds the field values used by the template watcher.
type PosterConfig struct {
	City  string `mapstructure:"city"`
	Venue string `mapstructure:"venue"`
	Date  string `mapstructure:"date"`
}

type PhotoshopConfig struct {
	Path         string        `mapstructure:"path"`
	Timeout      time.Duration `mapstructure:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	Options  string `mapstructure:"options"`
}

// Enabled reports whether run history should be written to Postgres.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != "" || c.Host != ""
}

func (c *DatabaseConfig) GetConnectStr() string {
	if c.URL != "" {
		return c.URL
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, sslmode)

	if c.Options != "" {
		// Basic URL encoding for the options value: space -> %20
		encodedOptions := strings.ReplaceAll(c.Options, " ", "%20")
		connStr += fmt.Sprintf("&options=%s", encodedOptions)
	}

	return connStr
}

// LoadConfig reads .env, the optional config file and the environment.
// An empty configFile means config.yaml in the working directory.
func LoadConfig(configFile string) (*Config, error) {
	_ = godotenv.Load()

	if configFile == "" {
		configFile = "config.yaml"
	}

	v := viper.New()
	v.SetConfigFile(configFile)

	// Environment variable mappings
	mappings := []struct {
		key, env string
	}{
		{"application.host", "HOST"},
		{"application.port", "PORT"},
		{"application.engine", "POSTER_ENGINE"},
		{"application.language", "POSTER_LANG"},

		// Storage
		{"storage.template", "POSTER_TEMPLATE"},
		{"storage.output", "POSTER_OUTPUT"},

		// Watched poster values
		{"poster.city", "POSTER_CITY"},
		{"poster.venue", "POSTER_VENUE"},
		{"poster.date", "POSTER_DATE"},

		// Photoshop
		{"photoshop.path", "PHOTOSHOP_PATH"},
		{"photoshop.timeout", "PHOTOSHOP_TIMEOUT"},
		{"photoshop.poll_interval", "PHOTOSHOP_POLL_INTERVAL"},

		{"database.url", "DB_URL"},
		{"database.host", "PG_HOST"},
		{"database.port", "PG_PORT"},
		{"database.user", "PG_USER"},
		{"database.password", "PG_PASSWORD"},
		{"database.dbname", "PG_DB"},
		{"database.sslmode", "PG_SSLMODE"},
		{"database.options", "PG_OPTIONS"},

		{"log.level", "LOG_LEVEL"},
	}

	for _, m := range mappings {
		v.BindEnv(m.key, m.env)
	}

	// Defaults
	v.SetDefault("application.name", "PosterForge")
	v.SetDefault("application.version", "0.1.0")
	v.SetDefault("application.host", "")
	v.SetDefault("application.port", 8080)
	v.SetDefault("application.engine", EngineNative)
	v.SetDefault("application.language", "en")
	v.SetDefault("photoshop.timeout", 3*time.Minute)
	v.SetDefault("photoshop.poll_interval", 2*time.Second)
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		// Ignore if the config file is missing
		if !isNotFound(err) {
			return nil, fmt.Errorf("failed to read %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	switch cfg.Application.Engine {
	case EngineNative, EnginePhotoshop:
	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Application.Engine)
	}

	return &cfg, nil
}

func isNotFound(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf) || errors.Is(err, fs.ErrNotExist)
}

// SavePhotoshopPath stores the Photoshop executable path in configFile,
// keeping the other settings already in it.
func SavePhotoshopPath(configFile, path string) error {
	if configFile == "" {
		configFile = "config.yaml"
	}
	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to read %s: %w", configFile, err)
	}
	v.Set("photoshop.path", path)
	if err := v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write %s: %w", configFile, err)
	}
	return nil
}
