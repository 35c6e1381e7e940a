package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"ibk-go/internal/hasher"
)

// Config represents the main configuration for ibk.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Backup     BackupConfig     `toml:"backup"`
	Encryption EncryptionConfig `toml:"encryption"`
	Database   DatabaseConfig   `toml:"database"`
}

// BackupConfig holds the defaults for backup runs. Command line flags
// override them per run.
type BackupConfig struct {
	Vault             string   `toml:"vault"` // "filesystem" (default) or "memory"
	ManifestName      string   `toml:"manifest_name"`
	Threads           int      `toml:"threads"` // 0 uses one worker per CPU
	Algorithm         string   `toml:"algorithm"`
	Compress          bool     `toml:"compress"`
	CompressLevel     int      `toml:"compress_level"` // gzip level, 0 for the default
	CompressThreshold int64    `toml:"compress_threshold"`
	MTimeTolerance    Duration `toml:"mtime_tolerance"`
	Encrypt           bool     `toml:"encrypt"`
	Exclude           []string `toml:"exclude"`
	// ExcludeFile names a file in the source root holding more exclude patterns.
	ExcludeFile string `toml:"exclude_file"`
}

// EncryptionConfig holds paths to the age key pair used for encryption.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// DatabaseConfig represents configuration for the operation history database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// Duration is a time.Duration written as a Go duration string ("1ms", "2s").
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// NewConfig creates a new Config with default paths under baseDir and
// default backup settings.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Backup: BackupConfig{
			Vault:             "filesystem",
			ManifestName:      ".backup_manifest.json",
			Algorithm:         string(hasher.DefaultAlgorithm),
			CompressThreshold: 1024,
			MTimeTolerance:    Duration{time.Millisecond},
			ExcludeFile:       ".ibkignore",
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "ibk.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "ibk.key"),
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
	}
}

// Validate checks values that would otherwise only fail in the middle of a run.
func (c *Config) Validate() error {
	var errs []error
	if c.Backup.Threads < 0 {
		errs = append(errs, fmt.Errorf("backup.threads must not be negative: %d", c.Backup.Threads))
	}
	if c.Backup.CompressThreshold < 0 {
		errs = append(errs, fmt.Errorf("backup.compress_threshold must not be negative: %d", c.Backup.CompressThreshold))
	}
	if c.Backup.MTimeTolerance.Duration < 0 {
		errs = append(errs, fmt.Errorf("backup.mtime_tolerance must not be negative: %s", c.Backup.MTimeTolerance))
	}
	if _, err := hasher.ParseAlgorithm(c.Backup.Algorithm); err != nil {
		errs = append(errs, fmt.Errorf("backup.algorithm: %w", err))
	}
	return errors.Join(errs...)
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	return m.ReadWithDefaults(r, &Config{})
}

// ReadWithDefaults decodes a Config on top of a copy of defaults, so keys
// missing from the document keep their default value.
func (m *Manager) ReadWithDefaults(r io.Reader, defaults *Config) (*Config, error) {
	cfg := *defaults
	cfg.Backup.Exclude = append([]string(nil), defaults.Backup.Exclude...)
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load reads the config file at path on top of NewConfig(baseDir) and
// validates the result. A missing file yields the defaults.
func Load(path, baseDir string) (*Config, error) {
	defaults := NewConfig(baseDir)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaults, nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.ReadWithDefaults(f, defaults)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
