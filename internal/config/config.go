// Package config loads process configuration from the environment, with
// optional .env injection discovered upward from the working directory.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrConfig marks fatal configuration problems; the process exits with
// code 1 when Load returns one.
var ErrConfig = errors.New("config error")

// Feed is one broker connection.
type Feed struct {
	Host     string
	VPN      string
	Username string
	Password string
	Queue    string
	Subjects []string
}

// ClickHouse holds archive connection settings; empty Host disables the
// archive.
type ClickHouse struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// Config is the full process configuration.
type Config struct {
	// STDDS feed (TAIS/TDES/SMES/APDS/ISMC topics).
	SCDS Feed
	// SFDPS feed (separate VPN; all messages labelled SFDPS).
	SFDPS Feed

	// HTTPPort for the REST/WebSocket surface.
	HTTPPort int

	// FlightDBPath is the SQLite warm-start database; empty keeps state
	// in memory only.
	FlightDBPath string

	// ClickHouse raw-message archive; disabled when Host is empty.
	ClickHouse ClickHouse

	// KMLDir holds static boundary files; empty disables the endpoints.
	KMLDir string

	// LogFile enables rotating file output alongside stderr.
	LogFile string
}

const defaultSFDPSHost = "tcps://ems1.swim.faa.gov:55443"

// Load reads configuration. A .env file found upward from the working
// directory is injected first; real environment variables win over it.
func Load() (*Config, error) {
	if path, ok := findDotEnv(); ok {
		if err := injectDotEnv(path); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrConfig, path, err)
		}
	}

	cfg := &Config{
		SCDS: Feed{
			Host:     os.Getenv("SCDSCONNECTION__HOST"),
			VPN:      os.Getenv("SCDSCONNECTION__MESSAGEVPN"),
			Username: os.Getenv("SCDSCONNECTION__USERNAME"),
			Password: os.Getenv("SCDSCONNECTION__PASSWORD"),
			Queue:    os.Getenv("SCDSCONNECTION__QUEUENAME"),
			Subjects: splitList(envOr("SCDS_SUBJECTS", "stdds.>")),
		},
		SFDPS: Feed{
			Host:     envOr("SFDPS_HOST", defaultSFDPSHost),
			VPN:      os.Getenv("SFDPS_VPN"),
			Username: os.Getenv("SFDPS_USER"),
			Password: os.Getenv("SFDPS_PASS"),
			Queue:    os.Getenv("SFDPS_QUEUE"),
			Subjects: splitList(envOr("SFDPS_SUBJECTS", "sfdps.>")),
		},
		HTTPPort:     5001,
		FlightDBPath: os.Getenv("FLIGHT_DB_PATH"),
		ClickHouse: ClickHouse{
			Host:     os.Getenv("CLICKHOUSE_HOST"),
			Port:     9000,
			Database: envOr("CLICKHOUSE_DB", "swim"),
			User:     envOr("CLICKHOUSE_USER", "default"),
			Password: os.Getenv("CLICKHOUSE_PASSWORD"),
		},
		KMLDir:  os.Getenv("KML_DIR"),
		LogFile: os.Getenv("LOG_FILE"),
	}

	if port := os.Getenv("CLICKHOUSE_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil || p <= 0 || p > 65535 {
			return nil, fmt.Errorf("%w: invalid CLICKHOUSE_PORT %q", ErrConfig, port)
		}
		cfg.ClickHouse.Port = p
	}

	if port := os.Getenv("HTTP_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil || p <= 0 || p > 65535 {
			return nil, fmt.Errorf("%w: invalid HTTP_PORT %q", ErrConfig, port)
		}
		cfg.HTTPPort = p
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.SCDS.Host == "" {
		return fmt.Errorf("%w: SCDSCONNECTION__HOST is required", ErrConfig)
	}
	if c.SCDS.Username == "" || c.SCDS.Password == "" {
		return fmt.Errorf("%w: STDDS credentials are required", ErrConfig)
	}
	if c.SCDS.Queue == "" {
		return fmt.Errorf("%w: SCDSCONNECTION__QUEUENAME is required", ErrConfig)
	}
	// The SFDPS feed is optional; when credentials are present the queue
	// must be named too.
	if c.SFDPS.Enabled() && c.SFDPS.Queue == "" {
		return fmt.Errorf("%w: SFDPS_QUEUE is required when SFDPS credentials are set", ErrConfig)
	}
	return nil
}

// Enabled reports whether the feed has credentials configured.
func (f Feed) Enabled() bool {
	return f.Username != "" && f.Password != ""
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// findDotEnv walks upward from the working directory looking for a .env
// file.
func findDotEnv() (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		path := filepath.Join(dir, ".env")
		if st, err := os.Stat(path); err == nil && !st.IsDir() {
			return path, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// injectDotEnv sets KEY=VALUE lines into the environment. Variables
// already set keep their value.
func injectDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"`)
		if key == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); !exists {
			if err := os.Setenv(key, value); err != nil {
				return err
			}
		}
	}
	return scanner.Err()
}
