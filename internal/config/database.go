package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"lookupsql/internal/dialect"
)

// tlsConfigName is the name used to register custom TLS configs with the MySQL driver.
const tlsConfigName = "lookupsql-custom"

// CanonicalDialect resolves the configured dialect alias to its canonical name.
func (d *DatabaseConfig) CanonicalDialect() (string, error) {
	adapter, err := dialect.New(d.Dialect)
	if err != nil {
		return "", err
	}
	return adapter.Name(), nil
}

// EffectivePort returns the configured port, or the dialect's well-known
// port when unset.
func (d *DatabaseConfig) EffectivePort() int {
	if d.Port != 0 {
		return d.Port
	}
	name, _ := d.CanonicalDialect()
	switch name {
	case "mysql":
		return 3306
	case "postgres":
		return 5432
	}
	return 0
}

// DSN returns the data source name for the configured driver. A configured
// connection string wins over the discrete fields.
func (d *DatabaseConfig) DSN() (string, error) {
	name, err := d.CanonicalDialect()
	if err != nil {
		return "", err
	}
	switch name {
	case "mysql":
		return d.mysqlDSN()
	case "postgres":
		return d.postgresDSN(), nil
	default:
		if d.ConnectionString != "" {
			return d.ConnectionString, nil
		}
		if d.Database == "" {
			return ":memory:", nil
		}
		return d.Database, nil
	}
}

// mysqlDSN normalizes through mysql.Config so parseTime and the TLS
// parameter are applied to user-supplied DSNs too.
func (d *DatabaseConfig) mysqlDSN() (string, error) {
	cfg := mysql.NewConfig()
	if d.ConnectionString != "" {
		parsed, err := mysql.ParseDSN(d.ConnectionString)
		if err != nil {
			return "", fmt.Errorf("invalid MySQL DSN: %w", err)
		}
		cfg = parsed
	} else {
		cfg.User = d.User
		cfg.Passwd = d.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(d.Host, strconv.Itoa(d.EffectivePort()))
		cfg.DBName = d.Database
	}
	cfg.ParseTime = true
	if cfg.Loc == nil || cfg.Loc == time.Local {
		cfg.Loc = time.UTC
	}
	if param := d.effectiveTLSParam(); param != "" && cfg.TLSConfig == "" {
		cfg.TLSConfig = param
	}
	return cfg.FormatDSN(), nil
}

func (d *DatabaseConfig) postgresDSN() string {
	if d.ConnectionString != "" {
		return d.ConnectionString
	}
	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.EffectivePort())),
		Path:   "/" + d.Database,
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	} else if d.User != "" {
		u.User = url.User(d.User)
	}
	q := url.Values{}
	switch d.TLS.Mode {
	case "off":
		q.Set("sslmode", "disable")
	case "skip-verify":
		q.Set("sslmode", "require")
	case "verify-ca", "verify-full":
		q.Set("sslmode", d.TLS.Mode)
	}
	if ca := d.TLS.resolveCAFile(); ca != "" {
		q.Set("sslrootcert", ca)
	}
	if d.TLS.CertFile != "" && d.TLS.KeyFile != "" {
		q.Set("sslcert", d.TLS.CertFile)
		q.Set("sslkey", d.TLS.KeyFile)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// effectiveTLSParam returns the MySQL tls parameter value, or empty string
// if no TLS is configured.
func (d *DatabaseConfig) effectiveTLSParam() string {
	switch d.TLS.Mode {
	case "":
		return ""
	case "off":
		return "false"
	case "skip-verify":
		return "skip-verify"
	case "verify-ca", "verify-full":
		return tlsConfigName
	default:
		return d.TLS.Mode
	}
}

// RegisterTLS registers a custom TLS configuration with the MySQL driver.
// Must be called before opening a MySQL connection in verify-ca or
// verify-full mode; it is a no-op otherwise.
func (d *DatabaseConfig) RegisterTLS() error {
	if name, err := d.CanonicalDialect(); err != nil || name != "mysql" {
		return err
	}
	if d.TLS.Mode != "verify-ca" && d.TLS.Mode != "verify-full" {
		return nil
	}

	tlsCfg, err := d.buildTLSConfig()
	if err != nil {
		return fmt.Errorf("failed to build TLS config: %w", err)
	}
	if err := mysql.RegisterTLSConfig(tlsConfigName, tlsCfg); err != nil {
		return fmt.Errorf("failed to register TLS config: %w", err)
	}
	return nil
}

// buildTLSConfig creates a tls.Config based on the DatabaseTLSConfig settings.
func (d *DatabaseConfig) buildTLSConfig() (*tls.Config, error) {
	tlsCfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if caFile := d.TLS.resolveCAFile(); caFile != "" {
		caCert, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file %q: %w", caFile, err)
		}
		certPool := x509.NewCertPool()
		if !certPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate from %q", caFile)
		}
		tlsCfg.RootCAs = certPool
	}

	certFile, keyFile := d.TLS.CertFile, d.TLS.KeyFile
	if certFile != "" && keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	} else if certFile != "" || keyFile != "" {
		return nil, fmt.Errorf("both cert_file and key_file must be specified for client certificate authentication")
	}

	if d.TLS.Mode == "verify-full" && d.TLS.ServerName != "" {
		tlsCfg.ServerName = d.TLS.ServerName
	}
	return tlsCfg, nil
}

// resolveCAFile returns the effective CA file path, checking env var indirection.
func (t *DatabaseTLSConfig) resolveCAFile() string {
	if t.CAFileEnv != "" {
		if path := os.Getenv(t.CAFileEnv); path != "" {
			return path
		}
	}
	return t.CAFile
}
