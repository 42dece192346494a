package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRead(t *testing.T) {
	config, err := Read(strings.NewReader(`
store: leveldb
leveldb:
  path: /var/lib/regnet
log_level: debug
`))
	if err != nil {
		t.Fatal(err)
	}

	if config.Store != LevelDB || config.LevelDB.Path != "/var/lib/regnet" {
		t.Errorf("Read() got = %#v", config)
	}
	if config.LogLevel != slog.LevelDebug {
		t.Errorf("Read() got log level = %v, want = %v", config.LogLevel, slog.LevelDebug)
	}
	if config.Header != "PRT" || config.Bolt.URI != "bolt://localhost:7687" {
		t.Errorf("Read() did not keep defaults: %#v", config)
	}
}

func TestRead_empty(t *testing.T) {
	config, err := Read(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if config != Default() {
		t.Errorf("Read() got = %#v, want = %#v", config, Default())
	}
}

func TestRead_unknownField(t *testing.T) {
	_, err := Read(strings.NewReader("storage: memory\n"))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Read() error = %v, want = %v", err, ErrInvalidConfig)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regnet.yaml")
	if err := os.WriteFile(path, []byte("store: bolt\nbolt:\n  database: protrend\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(PasswordEnv, "secret")

	config, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	bolt := config.BoltConfig()
	if bolt.Password != "secret" || bolt.Database != "protrend" || bolt.User != "neo4j" {
		t.Errorf("BoltConfig() got = %#v", bolt)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		change  func(*Config)
		wantErr bool
	}{
		{"default", func(c *Config) {}, false},
		{"unknown store", func(c *Config) { c.Store = "postgres" }, true},
		{"leveldb without path", func(c *Config) { c.Store = LevelDB; c.LevelDB.Path = "" }, true},
		{"bolt without uri", func(c *Config) { c.Store = Bolt; c.Bolt.URI = "" }, true},
		{"empty header", func(c *Config) { c.Header = "" }, true},
		{"dotted header", func(c *Config) { c.Header = "P.R" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.change(&config)

			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
