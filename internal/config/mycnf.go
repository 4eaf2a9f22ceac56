package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// myCnfSettings holds the connection fields read from a MySQL defaults file.
type myCnfSettings struct {
	Host      string
	Port      int
	HasPort   bool
	User      string
	Password  string
	Database  string
	HasDBName bool
	TLSMode   string
}

// apply copies the settings into v as explicit overrides. A database name
// set by a flag, env var or config file wins over the defaults file.
func (s myCnfSettings) apply(v *viper.Viper) {
	if s.Host != "" {
		v.Set("database.host", s.Host)
	}
	if s.HasPort {
		v.Set("database.port", s.Port)
	}
	if s.User != "" {
		v.Set("database.user", s.User)
	}
	if s.Password != "" {
		v.Set("database.password", s.Password)
	}
	if s.TLSMode != "" {
		v.Set("database.tls.mode", s.TLSMode)
	}
	if s.HasDBName && strings.TrimSpace(v.GetString("database.database")) == "" {
		v.Set("database.database", s.Database)
	}
}

func parseMyCnfFile(path string) (myCnfSettings, error) {
	raw, err := readRawFile(path)
	if err != nil {
		return myCnfSettings{}, err
	}
	return parseMyCnf(raw)
}

func parseMyCnf(raw string) (myCnfSettings, error) {
	settings := myCnfSettings{}
	section := ""

	for i, line := range strings.Split(raw, "\n") {
		lineno := i + 1
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.ToLower(strings.TrimSpace(line[1 : len(line)-1]))
			continue
		}

		key, value, ok := parseMyCnfKeyValue(line)
		if !ok {
			return myCnfSettings{}, fmt.Errorf("invalid my.cnf syntax on line %d", lineno)
		}

		key = strings.ToLower(key)
		switch section {
		case "client":
			switch key {
			case "host":
				settings.Host = value
			case "port":
				port, err := parsePort(value)
				if err != nil {
					return myCnfSettings{}, fmt.Errorf("invalid my.cnf port on line %d: %w", lineno, err)
				}
				settings.Port = port
				settings.HasPort = true
			case "user":
				settings.User = value
			case "password":
				settings.Password = value
			case "database":
				settings.Database = value
				settings.HasDBName = true
			case "ssl-mode":
				tlsMode, err := mapMyCnfSSLMode(value)
				if err != nil {
					return myCnfSettings{}, fmt.Errorf("invalid my.cnf ssl-mode on line %d: %w", lineno, err)
				}
				settings.TLSMode = tlsMode
			}
		case "mysql":
			if key == "database" && !settings.HasDBName {
				settings.Database = value
				settings.HasDBName = true
			}
		}
	}

	return settings, nil
}

func parseMyCnfKeyValue(line string) (key string, value string, ok bool) {
	if parts := strings.SplitN(line, "=", 2); len(parts) == 2 {
		key = strings.TrimSpace(parts[0])
		value = stripOptionalQuotes(strings.TrimSpace(parts[1]))
		return key, value, key != ""
	}

	parts := strings.Fields(line)
	if len(parts) < 2 {
		return "", "", false
	}
	return parts[0], stripOptionalQuotes(strings.Join(parts[1:], " ")), true
}

func stripOptionalQuotes(value string) string {
	if len(value) >= 2 {
		if (value[0] == '\'' && value[len(value)-1] == '\'') || (value[0] == '"' && value[len(value)-1] == '"') {
			return value[1 : len(value)-1]
		}
	}
	return value
}

func parsePort(raw string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d is out of valid range (1-65535)", port)
	}
	return port, nil
}

func mapMyCnfSSLMode(value string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "":
		return "", nil
	case "DISABLED":
		return "off", nil
	case "REQUIRED", "PREFERRED":
		return "skip-verify", nil
	case "VERIFY_CA":
		return "verify-ca", nil
	case "VERIFY_IDENTITY":
		return "verify-full", nil
	default:
		return "", fmt.Errorf("unsupported ssl-mode %q", value)
	}
}
