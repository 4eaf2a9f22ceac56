package config

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"syscall"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// EnvPrefix is prepended to every environment variable override,
// e.g. LOOKUPSQL_DATABASE_DSN.
const EnvPrefix = "LOOKUPSQL"

// RegisterFlags defines the configuration flags on fs using canonical
// snake_case keys. Command flags without a dot are left to the caller.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to a YAML config file")

	// Database connection flags
	fs.String("database.dialect", "", "SQL dialect (mysql, postgres, sqlite)")
	fs.String("database.dsn", "", "Complete driver DSN")
	fs.String("database.dsn_file", "", "Path to file containing database DSN (use @- for stdin)")
	fs.String("database.mycnf_file", "", "Path to MySQL defaults file (.my.cnf format)")

	// Database discrete connection flags (used when DSN is not set)
	fs.String("database.host", "", "Database host")
	fs.Int("database.port", 0, "Database port")
	fs.String("database.user", "", "Database user")
	fs.String("database.password", "", "Database password")
	fs.String("database.password_file", "", "Path to file containing database password (use @- for stdin)")
	fs.Bool("database.password_prompt", false, "Prompt for database password securely")
	fs.String("database.database", "", "Database name, or the file path for sqlite")

	// Database TLS flags
	fs.String("database.tls.mode", "", "TLS mode (off, skip-verify, verify-ca, verify-full)")
	fs.String("database.tls.ca_file", "", "Path to CA certificate for server verification")
	fs.String("database.tls.cert_file", "", "Path to client certificate")
	fs.String("database.tls.key_file", "", "Path to client private key")
	fs.String("database.tls.server_name", "", "Override server name for TLS verification")

	// Pool and timeouts
	fs.Int("database.pool.max_open", 0, "Maximum open connections")
	fs.Int("database.pool.max_idle", 0, "Maximum idle connections")
	fs.Duration("database.pool.max_lifetime", 0, "Maximum connection lifetime")
	fs.Duration("database.connection_timeout", 0, "Timeout for the initial connection ping")

	// Query flags
	fs.String("query.lookup_separator", "", "Separator between lookup path segments")
	fs.String("query.join_kind", "", "Join keyword for relation joins (LEFT, INNER, RIGHT)")
	fs.Bool("query.introspect", false, "Introspect the schema to resolve relation paths")

	// Schema filter flags
	fs.StringSlice("schema_filters.allow_tables", nil, "Table glob patterns to expose")
	fs.StringSlice("schema_filters.deny_tables", nil, "Table glob patterns to hide")

	// Observability flags
	fs.Bool("observability.metrics_enabled", false, "Collect Prometheus metrics")
	fs.Bool("observability.tracing_enabled", false, "Record OpenTelemetry spans")
	fs.Float64("observability.trace_sample_ratio", 0, "Trace sample ratio (0.0-1.0)")
	fs.String("observability.logging.level", "", "Log level (debug, info, warn, error)")
	fs.String("observability.logging.format", "", "Log format (json, text)")
	fs.Bool("observability.log_export_enabled", false, "Export logs to the OTLP endpoint")
	fs.String("observability.otlp.endpoint", "", "OTLP collector endpoint for traces and logs")
	fs.String("observability.otlp.protocol", "", "OTLP protocol (grpc, http/protobuf)")
	fs.Bool("observability.otlp.insecure", false, "Disable TLS for the OTLP connection")
}

// Load loads configuration from multiple sources with the following precedence:
// 1. Explicit overrides (v.Set) – used only for file and prompt secrets
// 2. Command line flags
// 3. Environment variables
// 4. Config file
// 5. Default values
//
// fs must already be parsed. A nil fs loads from env, file and defaults only.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Defaults (lowest priority)
	setDefaults(v)

	// --- Config file ---
	cfgPath := ""
	if fs != nil {
		cfgPath, _ = fs.GetString("config")
	}
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("lookupsql")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/lookupsql/")
		v.AddConfigPath("$HOME/.lookupsql")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if cfgPath != "" {
			return nil, fmt.Errorf("failed to read config file %q: %w", cfgPath, err)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// --- Environment variables ---
	// Canonical keys: dot + snake_case
	// Env vars: LOOKUPSQL_DATABASE_POOL_MAX_OPEN
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// --- Flags binding (highest normal priority) ---
	if fs != nil {
		bindChangedFlagsToViper(fs, v)
	}
	if err := validateSingleStdinFileSource(v); err != nil {
		return nil, err
	}

	// --- DSN from file (explicit override) ---
	if v.GetString("database.dsn") == "" && v.GetString("database.dsn_file") != "" {
		dsn, err := readSecretFile(v.GetString("database.dsn_file"))
		if err != nil {
			return nil, fmt.Errorf("failed to read database DSN file: %w", err)
		}
		v.Set("database.dsn", dsn)
	}

	// --- MySQL defaults file (explicit override) ---
	if myCnfPath := strings.TrimSpace(v.GetString("database.mycnf_file")); myCnfPath != "" {
		settings, err := parseMyCnfFile(myCnfPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load database my.cnf file: %w", err)
		}
		settings.apply(v)
	}

	// --- Secure password input (explicit override) ---
	if v.GetString("database.password") == "" && v.GetString("database.password_file") != "" {
		pwd, err := readSecretFile(v.GetString("database.password_file"))
		if err != nil {
			return nil, fmt.Errorf("failed to read database password file: %w", err)
		}
		v.Set("database.password", pwd)
	}
	if v.GetString("database.password") == "" && v.GetBool("database.password_prompt") {
		pwd, err := promptPassword()
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		v.Set("database.password", pwd)
	}

	// --- Unmarshal (strict) ---
	var cfg Config
	if err := v.UnmarshalExact(
		&cfg,
		viper.DecodeHook(
			mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				stringToStringSliceHookFunc(","),
			),
		),
	); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// bindChangedFlagsToViper copies only explicitly-set config flags into Viper,
// preserving precedence: flags > env > file > defaults.
func bindChangedFlagsToViper(fs *pflag.FlagSet, v *viper.Viper) {
	fs.Visit(func(f *pflag.Flag) {
		if !strings.Contains(f.Name, ".") {
			return
		}

		switch f.Value.Type() {
		case "string":
			val, _ := fs.GetString(f.Name)
			v.Set(f.Name, val)
		case "int":
			val, _ := fs.GetInt(f.Name)
			v.Set(f.Name, val)
		case "bool":
			val, _ := fs.GetBool(f.Name)
			v.Set(f.Name, val)
		case "float64":
			val, _ := fs.GetFloat64(f.Name)
			v.Set(f.Name, val)
		case "duration":
			val, _ := fs.GetDuration(f.Name)
			v.Set(f.Name, val)
		case "stringSlice":
			val, _ := fs.GetStringSlice(f.Name)
			v.Set(f.Name, val)
		default:
			v.Set(f.Name, f.Value.String())
		}
	})
}

func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.dialect", "sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.dsn_file", "")
	v.SetDefault("database.mycnf_file", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.password_file", "")
	v.SetDefault("database.password_prompt", false)
	v.SetDefault("database.database", "")
	v.SetDefault("database.tls.mode", "")
	v.SetDefault("database.tls.ca_file", "")
	v.SetDefault("database.tls.ca_file_env", "")
	v.SetDefault("database.tls.cert_file", "")
	v.SetDefault("database.tls.key_file", "")
	v.SetDefault("database.tls.server_name", "")
	v.SetDefault("database.pool.max_open", 10)
	v.SetDefault("database.pool.max_idle", 5)
	v.SetDefault("database.pool.max_lifetime", "30m")
	v.SetDefault("database.connection_timeout", "10s")

	// Query defaults
	v.SetDefault("query.lookup_separator", "__")
	v.SetDefault("query.join_kind", "LEFT")
	v.SetDefault("query.introspect", false)

	// Schema filter defaults
	v.SetDefault("schema_filters.allow_tables", []string{})
	v.SetDefault("schema_filters.deny_tables", []string{})
	v.SetDefault("schema_filters.allow_columns", map[string][]string{})
	v.SetDefault("schema_filters.deny_columns", map[string][]string{})

	// Naming defaults
	v.SetDefault("naming.plural_overrides", map[string]string{})
	v.SetDefault("naming.singular_overrides", map[string]string{})
	v.SetDefault("naming.reserved", []string{})

	// Observability defaults
	v.SetDefault("observability.service_name", "lookupsql")
	v.SetDefault("observability.service_version", "dev")
	v.SetDefault("observability.metrics_enabled", false)
	v.SetDefault("observability.tracing_enabled", false)
	v.SetDefault("observability.trace_sample_ratio", 1.0)
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "text")
	v.SetDefault("observability.log_export_enabled", false)
	v.SetDefault("observability.otlp.endpoint", "")
	v.SetDefault("observability.otlp.protocol", "grpc")
	v.SetDefault("observability.otlp.insecure", false)
	v.SetDefault("observability.otlp.ca_file", "")
	v.SetDefault("observability.otlp.timeout", "10s")
	v.SetDefault("observability.otlp.compression", "")
}

// promptPassword prompts on stderr for a password without echoing to terminal.
func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Enter database password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(bytePassword), nil
}

func readSecretFile(path string) (string, error) {
	raw, err := readRawFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}

func readRawFile(path string) (string, error) {
	var data []byte
	var err error

	if path == "@-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func validateSingleStdinFileSource(v *viper.Viper) error {
	stdinBackedKeys := []string{
		"database.dsn_file",
		"database.mycnf_file",
		"database.password_file",
	}

	var configured []string
	for _, key := range stdinBackedKeys {
		if strings.TrimSpace(v.GetString(key)) == "@-" {
			configured = append(configured, key)
		}
	}

	if len(configured) > 1 {
		return fmt.Errorf(
			"multiple stdin-backed file settings use @- (%s); only one @- source is allowed",
			strings.Join(configured, ", "),
		)
	}

	return nil
}

func stringToStringSliceHookFunc(sep string) mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf([]string{}) {
			return data, nil
		}

		raw := strings.TrimSpace(data.(string))
		if raw == "" {
			return []string{}, nil
		}

		parts := strings.Split(raw, sep)
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	}
}
