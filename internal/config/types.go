// Package config loads configuration from files, env vars, and flags, and validates it.
package config

import (
	"time"

	"lookupsql/internal/naming"
	"lookupsql/internal/schemafilter"
)

// Config holds the application configuration.
type Config struct {
	Database      DatabaseConfig      `mapstructure:"database"`
	Query         QueryConfig         `mapstructure:"query"`
	SchemaFilters schemafilter.Config `mapstructure:"schema_filters"`
	Naming        naming.Config       `mapstructure:"naming"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// PoolConfig holds connection pool parameters.
type PoolConfig struct {
	MaxOpen     int           `mapstructure:"max_open"`
	MaxIdle     int           `mapstructure:"max_idle"`
	MaxLifetime time.Duration `mapstructure:"max_lifetime"`
}

// DatabaseTLSConfig holds TLS/SSL configuration for MySQL and PostgreSQL
// connections. SQLite ignores it.
type DatabaseTLSConfig struct {
	// Mode controls TLS behavior:
	//   - "off": No TLS (plaintext connection)
	//   - "skip-verify": TLS without server certificate verification (insecure)
	//   - "verify-ca": TLS with CA verification but no hostname check
	//   - "verify-full": TLS with full verification including hostname
	Mode string `mapstructure:"mode"`

	// CAFile is the path to the CA certificate for server verification.
	CAFile string `mapstructure:"ca_file"`
	// CAFileEnv is an environment variable name containing the CA file path.
	CAFileEnv string `mapstructure:"ca_file_env"`

	// CertFile and KeyFile enable client certificate authentication.
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`

	// ServerName overrides the server name used for TLS verification.
	ServerName string `mapstructure:"server_name"`
}

// DatabaseConfig holds database connection parameters.
type DatabaseConfig struct {
	// Dialect selects the SQL dialect and driver: mysql, postgres or sqlite.
	// Aliases such as mariadb, tidb, postgresql and sqlite3 are accepted.
	Dialect string `mapstructure:"dialect"`

	// ConnectionString is a complete driver DSN. When set it overrides the
	// discrete fields. Configured via "dsn" in YAML or LOOKUPSQL_DATABASE_DSN.
	ConnectionString string `mapstructure:"dsn"`
	// ConnectionStringFile is a path to a file containing the DSN.
	// Supports "@-" to read from stdin.
	ConnectionStringFile string `mapstructure:"dsn_file"`
	// MyCnfFile is a MySQL defaults file whose [client] section supplies
	// the discrete fields. Mutually exclusive with dsn/dsn_file.
	MyCnfFile string `mapstructure:"mycnf_file"`

	// Discrete connection fields (used when DSN is not set). For SQLite,
	// Database is the database file path.
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	PasswordFile   string `mapstructure:"password_file"`
	PasswordPrompt bool   `mapstructure:"password_prompt"`
	Database       string `mapstructure:"database"`

	TLS  DatabaseTLSConfig `mapstructure:"tls"`
	Pool PoolConfig        `mapstructure:"pool"`

	// ConnectionTimeout bounds the initial ping; zero waits for the driver's own timeout.
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout"`
}

// QueryConfig controls how lookups are parsed and joins are emitted.
type QueryConfig struct {
	// LookupSeparator splits lookup keys into path segments and operator.
	LookupSeparator string `mapstructure:"lookup_separator"`
	// JoinKind is the join keyword used for relation joins: LEFT, INNER or RIGHT.
	JoinKind string `mapstructure:"join_kind"`
	// Introspect loads the live schema so lookup paths can follow foreign keys.
	Introspect bool `mapstructure:"introspect"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ObservabilityConfig holds metrics, tracing and logging configuration.
type ObservabilityConfig struct {
	ServiceName      string        `mapstructure:"service_name"`
	ServiceVersion   string        `mapstructure:"service_version"`
	MetricsEnabled   bool          `mapstructure:"metrics_enabled"`
	TracingEnabled   bool          `mapstructure:"tracing_enabled"`
	TraceSampleRatio float64       `mapstructure:"trace_sample_ratio"`
	Logging          LoggingConfig `mapstructure:"logging"`
	// LogExportEnabled ships log records to the OTLP endpoint as well as stderr.
	LogExportEnabled bool          `mapstructure:"log_export_enabled"`
	OTLP             OTLPConfig    `mapstructure:"otlp"`
}

// OTLPConfig points traces and exported logs at a collector. Without an
// endpoint spans are written to the log instead.
type OTLPConfig struct {
	Endpoint    string            `mapstructure:"endpoint"`
	Protocol    string            `mapstructure:"protocol"`
	Insecure    bool              `mapstructure:"insecure"`
	CAFile      string            `mapstructure:"ca_file"`
	Headers     map[string]string `mapstructure:"headers"`
	Timeout     time.Duration     `mapstructure:"timeout"`
	Compression string            `mapstructure:"compression"`
}
