package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"

	RecordSourceDatabase = "database"
	RecordSourceFixture  = "fixture"

	SnapshotStoreEnt = "ent"
	SnapshotStorePgx = "pgx"

	defaultSQLiteDSN = "file:masteryctx.db?_fk=1"
)

// Config holds all configuration for our application
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Records  RecordsConfig  `mapstructure:"records"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Engine   EngineConfig   `mapstructure:"engine"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host        string `mapstructure:"host"`
	GRPCPort    int    `mapstructure:"grpc_port"`
	HTTPPort    int    `mapstructure:"http_port"`
	CORSOrigins string `mapstructure:"cors_origins"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
	LogSQL   bool   `mapstructure:"log_sql"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RecordsConfig selects where raw academic records come from.
type RecordsConfig struct {
	Source  string `mapstructure:"source"`
	Fixture string `mapstructure:"fixture"`
}

// SnapshotConfig controls persistence of assembled contexts.
type SnapshotConfig struct {
	Persist bool   `mapstructure:"persist"`
	Store   string `mapstructure:"store"`
}

// EngineConfig tunes context assembly.
type EngineConfig struct {
	ContextVersion string `mapstructure:"context_version"`
	AgendaHorizon  int    `mapstructure:"agenda_horizon"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.grpc_port", 9090)
	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("server.cors_origins", "*")

	viper.SetDefault("database.driver", DriverSQLite)
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "masteryctx")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.log_sql", false)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")

	viper.SetDefault("records.source", RecordSourceDatabase)
	viper.SetDefault("records.fixture", "")

	viper.SetDefault("snapshot.persist", true)
	viper.SetDefault("snapshot.store", SnapshotStoreEnt)

	viper.SetDefault("engine.context_version", "1.0")
	viper.SetDefault("engine.agenda_horizon", 14)
}

// DatabaseDriver returns the normalised driver name.
func (c *Config) DatabaseDriver() (string, error) {
	switch strings.ToLower(strings.TrimSpace(c.Database.Driver)) {
	case "", "sqlite", DriverSQLite:
		return DriverSQLite, nil
	case DriverPostgres, "postgresql", "pgx":
		return DriverPostgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
}

// DatabaseURL returns the connection string for the configured driver. An
// explicit database.dsn always wins.
func (c *Config) DatabaseURL() (string, error) {
	driver, err := c.DatabaseDriver()
	if err != nil {
		return "", err
	}
	if dsn := strings.TrimSpace(c.Database.DSN); dsn != "" {
		return dsn, nil
	}
	if driver == DriverSQLite {
		return defaultSQLiteDSN, nil
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.Name,
		RawQuery: url.Values{"sslmode": []string{c.Database.SSLMode}}.Encode(),
	}
	return u.String(), nil
}

// RecordSource returns the configured record source.
func (c *Config) RecordSource() (string, error) {
	switch strings.ToLower(strings.TrimSpace(c.Records.Source)) {
	case "", RecordSourceDatabase:
		return RecordSourceDatabase, nil
	case RecordSourceFixture:
		return RecordSourceFixture, nil
	default:
		return "", fmt.Errorf("unsupported records source %q", c.Records.Source)
	}
}

// CORSOrigins splits the comma separated origin list.
func (c *Config) CORSOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.Server.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
