// Package config holds the configuration of the regnet command.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/protrend/regnet/internal/bolt"
	"github.com/protrend/regnet/pkg/ident"
	"gopkg.in/yaml.v3"
)

// PasswordEnv is the environment variable holding the password of the bolt server.
const PasswordEnv = "REGNET_BOLT_PASSWORD"

// Store kinds
const (
	Memory  = "memory"
	LevelDB = "leveldb"
	Bolt    = "bolt"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config configures the store and logging.
type Config struct {
	Store  string `yaml:"store"`
	Header string `yaml:"header"`

	LevelDB struct {
		Path string `yaml:"path"`
		Wipe bool   `yaml:"wipe"`
	} `yaml:"leveldb"`

	Bolt struct {
		URI      string `yaml:"uri"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Database string `yaml:"database"`
	} `yaml:"bolt"`

	LogLevel slog.Level `yaml:"log_level"`
}

// Default returns the default configuration.
func Default() Config {
	var config Config
	config.Store = Memory
	config.Header = ident.Header
	config.LevelDB.Path = "regnet.leveldb"
	config.Bolt.URI = "bolt://localhost:7687"
	config.Bolt.User = "neo4j"
	config.LogLevel = slog.LevelInfo
	return config
}

// Read reads configuration from r on top of the defaults.
func Read(r io.Reader) (Config, error) {
	config := Default()

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return config, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return config, nil
}

// Load reads configuration from the file at path.
// An empty path returns the defaults.
// Afterwards, the bolt password is taken from the environment if unset.
func Load(path string) (config Config, err error) {
	if path == "" {
		config = Default()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return config, err
		}
		defer f.Close()

		if config, err = Read(f); err != nil {
			return config, err
		}
	}

	if config.Bolt.Password == "" {
		config.Bolt.Password = os.Getenv(PasswordEnv)
	}
	return config, config.Validate()
}

// Validate checks that the configuration is usable.
func (config Config) Validate() error {
	if !(ident.Prefix{Header: config.Header, Tag: "X"}).Valid() {
		return fmt.Errorf("%w: invalid header %q", ErrInvalidConfig, config.Header)
	}

	switch config.Store {
	case Memory:
	case LevelDB:
		if config.LevelDB.Path == "" {
			return fmt.Errorf("%w: leveldb store needs a path", ErrInvalidConfig)
		}
	case Bolt:
		if config.Bolt.URI == "" {
			return fmt.Errorf("%w: bolt store needs a uri", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, config.Store)
	}
	return nil
}

// BoltConfig returns the connection parameters of the bolt server.
func (config Config) BoltConfig() bolt.Config {
	return bolt.Config{
		URI:      config.Bolt.URI,
		User:     config.Bolt.User,
		Password: config.Bolt.Password,
		Database: config.Bolt.Database,
	}
}
