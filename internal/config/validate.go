package config

import (
	"fmt"
	"path"
	"strings"

	"lookupsql/internal/dialect"
	"lookupsql/internal/naming"
	"lookupsql/internal/observability"
	"lookupsql/internal/query"
	"lookupsql/internal/schemafilter"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	var msgs []string
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors and returns validation results.
// It returns both errors (fatal) and warnings (non-fatal issues).
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	c.Database.validate(result)
	c.Query.validate(result)
	c.Observability.validate(result)
	validateSchemaFilters(result, c.SchemaFilters)
	validateNamingConfig(result, c.Naming)

	return result
}

func (d *DatabaseConfig) validate(result *ValidationResult) {
	name, err := d.CanonicalDialect()
	if err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.dialect",
			Message: err.Error(),
			Hint:    "valid values are: " + strings.Join(dialect.Names(), ", "),
		})
		return
	}

	if strings.TrimSpace(d.MyCnfFile) != "" {
		if strings.TrimSpace(d.ConnectionString) != "" || strings.TrimSpace(d.ConnectionStringFile) != "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "database.mycnf_file",
				Message: "mycnf_file is mutually exclusive with dsn/dsn_file",
				Hint:    "set either mycnf_file or dsn/dsn_file, not both",
			})
		}
		if name != "mysql" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "database.mycnf_file",
				Message: fmt.Sprintf("mycnf_file is only supported for mysql, dialect is %q", name),
			})
		}
	}

	if name == "sqlite" {
		if d.TLS.Mode != "" && d.TLS.Mode != "off" {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   "database.tls.mode",
				Message: "TLS settings are ignored for sqlite",
			})
		}
	} else {
		// Port range validation (only if not using connection string)
		if d.ConnectionString == "" && (d.Port < 0 || d.Port > 65535) {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "database.port",
				Message: fmt.Sprintf("port %d is out of valid range (1-65535)", d.Port),
			})
		}
		d.TLS.validate(result)
	}

	// Connection pool validation
	if d.Pool.MaxOpen < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.pool.max_open",
			Message: "max_open cannot be negative",
		})
	}
	if d.Pool.MaxIdle < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.pool.max_idle",
			Message: "max_idle cannot be negative",
		})
	}
	if d.Pool.MaxIdle > d.Pool.MaxOpen && d.Pool.MaxOpen > 0 {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "database.pool.max_idle",
			Message: "max_idle is greater than max_open",
			Hint:    "idle connections will be limited to max_open",
		})
	}
	if d.Pool.MaxLifetime < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.pool.max_lifetime",
			Message: "max_lifetime cannot be negative",
		})
	}
	if d.ConnectionTimeout < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.connection_timeout",
			Message: "connection_timeout cannot be negative",
		})
	}
}

func (t *DatabaseTLSConfig) validate(result *ValidationResult) {
	validModes := map[string]bool{"": true, "off": true, "skip-verify": true, "verify-ca": true, "verify-full": true}
	if !validModes[t.Mode] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.tls.mode",
			Message: fmt.Sprintf("invalid TLS mode %q", t.Mode),
			Hint:    "valid values are: off, skip-verify, verify-ca, verify-full",
		})
	}

	// CA file is required for verify-ca and verify-full
	if (t.Mode == "verify-ca" || t.Mode == "verify-full") && t.resolveCAFile() == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.tls.ca_file",
			Message: "CA file is required for verify-ca and verify-full modes",
			Hint:    "set ca_file or ca_file_env to specify the CA certificate",
		})
	}

	// Client cert and key must both be specified or neither
	if (t.CertFile != "") != (t.KeyFile != "") {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.tls.cert_file",
			Message: "both cert_file and key_file must be specified for client certificate authentication",
			Hint:    "provide both cert_file and key_file, or neither",
		})
	}

	if t.Mode == "skip-verify" {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "database.tls.mode",
			Message: "skip-verify mode does not verify server certificates",
			Hint:    "use verify-ca or verify-full in production",
		})
	}
}

func (q *QueryConfig) validate(result *ValidationResult) {
	sep := q.LookupSeparator
	if sep == "" || strings.TrimSpace(sep) != sep {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "query.lookup_separator",
			Message: fmt.Sprintf("invalid lookup separator %q", sep),
			Hint:    "use a non-empty separator without whitespace, such as __",
		})
	} else if sep == "_" {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "query.lookup_separator",
			Message: "a single underscore splits snake_case column names",
		})
	}

	if _, err := query.ParseJoinKind(q.JoinKind); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "query.join_kind",
			Message: err.Error(),
			Hint:    "valid values are: LEFT, INNER, RIGHT",
		})
	}
}

func validateSchemaFilters(result *ValidationResult, filters schemafilter.Config) {
	validateGlobList(result, "schema_filters.allow_tables", filters.AllowTables)
	validateGlobList(result, "schema_filters.deny_tables", filters.DenyTables)
	validatePatternMap(result, "schema_filters.allow_columns", filters.AllowColumns)
	validatePatternMap(result, "schema_filters.deny_columns", filters.DenyColumns)
}

func validateNamingConfig(result *ValidationResult, cfg naming.Config) {
	for _, word := range cfg.Reserved {
		if strings.TrimSpace(word) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "naming.reserved",
				Message: "reserved name cannot be empty",
			})
		}
	}
	validateOverrides(result, "naming.plural_overrides", cfg.PluralOverrides)
	validateOverrides(result, "naming.singular_overrides", cfg.SingularOverrides)
}

func validateOverrides(result *ValidationResult, field string, overrides map[string]string) {
	for from, to := range overrides {
		if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("override %q -> %q cannot have an empty side", from, to),
			})
		}
	}
}

func validatePatternMap(result *ValidationResult, field string, patternMap map[string][]string) {
	for tablePattern, columnPatterns := range patternMap {
		if strings.TrimSpace(tablePattern) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field,
				Message: "table pattern cannot be empty",
			})
			continue
		}
		if _, err := path.Match(strings.ToLower(tablePattern), "probe"); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("invalid table glob pattern %q: %v", tablePattern, err),
			})
		}
		for _, columnPattern := range columnPatterns {
			if strings.TrimSpace(columnPattern) == "" {
				result.Errors = append(result.Errors, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("column pattern for table pattern %q cannot be empty", tablePattern),
				})
				continue
			}
			if _, err := path.Match(strings.ToLower(columnPattern), "probe"); err != nil {
				result.Errors = append(result.Errors, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("invalid column glob pattern %q for table pattern %q: %v", columnPattern, tablePattern, err),
				})
			}
		}
	}
}

func validateGlobList(result *ValidationResult, field string, patterns []string) {
	for _, pattern := range patterns {
		if strings.TrimSpace(pattern) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field,
				Message: "glob pattern cannot be empty",
			})
			continue
		}
		if _, err := path.Match(strings.ToLower(pattern), "probe"); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("invalid glob pattern %q: %v", pattern, err),
			})
		}
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[o.Logging.Level] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.logging.level",
			Message: fmt.Sprintf("invalid log level %q", o.Logging.Level),
			Hint:    "valid values are: debug, info, warn, error",
		})
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[o.Logging.Format] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.logging.format",
			Message: fmt.Sprintf("invalid log format %q", o.Logging.Format),
			Hint:    "valid values are: json, text",
		})
	}

	if _, err := observability.ParseOTLPProtocol(o.OTLP.Protocol); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.otlp.protocol",
			Message: err.Error(),
		})
	}
	if o.OTLP.Compression != "" && o.OTLP.Compression != "gzip" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.otlp.compression",
			Message: fmt.Sprintf("unsupported compression %q", o.OTLP.Compression),
			Hint:    "use gzip or leave empty",
		})
	}
	if o.OTLP.Timeout < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.otlp.timeout",
			Message: "timeout cannot be negative",
		})
	}
	if o.LogExportEnabled && strings.TrimSpace(o.OTLP.Endpoint) == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.log_export_enabled",
			Message: "log export requires observability.otlp.endpoint",
		})
	}
	if o.OTLP.Endpoint != "" && !o.TracingEnabled && !o.LogExportEnabled {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "observability.otlp.endpoint",
			Message: "endpoint is set but neither tracing nor log export is enabled",
		})
	}

	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.trace_sample_ratio",
			Message: fmt.Sprintf("trace_sample_ratio %v is outside 0.0-1.0", o.TraceSampleRatio),
		})
	}
}
