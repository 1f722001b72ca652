package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed config.toml.sample
var configTemplate string

// Config holds everything the search core needs: where the local stores
// live, how to reach the remote bridge, and the object-storage credentials.
// Presence of a section toggles whether that participant is available.
type Config struct {
	// DataDir is the directory scanned for local SQLite store files.
	DataDir string `toml:"data_dir"`

	// GlobalTimeout bounds one federated search end to end.
	GlobalTimeout Duration `toml:"global_timeout"`

	Bridge *BridgeConfig `toml:"bridge,omitempty"`
	S3     *S3Config     `toml:"s3,omitempty"`
}

// BridgeConfig configures the remote bridge participant.
type BridgeConfig struct {
	URL     string   `toml:"url"`
	Secret  string   `toml:"secret"`
	Timeout Duration `toml:"timeout,omitempty"`
}

// S3Config configures the object-storage participant. Endpoint may point at
// any S3-compatible service (R2, MinIO, AWS).
type S3Config struct {
	Endpoint        string `toml:"endpoint"`
	Region          string `toml:"region"`
	Bucket          string `toml:"bucket"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	Prefix          string `toml:"prefix"`

	// Denylist names bucket sources that are never streamed, matched by
	// filename with or without extension.
	Denylist []string `toml:"denylist"`
}

// defaultS3Denylist covers sources known to carry fabricated rows.
var defaultS3Denylist = []string{"Pass'Sport", "PassSport"}

// Duration wraps time.Duration for human-readable TOML values ("90s", "2m").
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// GetDefaultConfig returns a config with defaults applied and no bridge or
// object-storage participants.
func GetDefaultConfig() (*Config, error) {
	dataDir, err := GetDefaultDataDir()
	if err != nil {
		return nil, fmt.Errorf("getting default data directory: %w", err)
	}
	return &Config{
		DataDir:       dataDir,
		GlobalTimeout: Duration{90 * time.Second},
	}, nil
}

// LoadConfig reads a TOML config file, applying defaults for missing values
// and environment overrides for credentials. A missing file yields the
// default config.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg, err := GetDefaultConfig()
		if err != nil {
			return nil, err
		}
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.DataDir == "" {
		dataDir, err := GetDefaultDataDir()
		if err != nil {
			return nil, fmt.Errorf("getting default data directory: %w", err)
		}
		cfg.DataDir = dataDir
	}
	if cfg.GlobalTimeout.Duration == 0 {
		cfg.GlobalTimeout = Duration{90 * time.Second}
	}
	if cfg.Bridge != nil && cfg.Bridge.Timeout.Duration == 0 {
		cfg.Bridge.Timeout = Duration{2 * time.Minute}
	}
	if cfg.S3 != nil {
		if cfg.S3.Region == "" {
			cfg.S3.Region = "auto"
		}
		if cfg.S3.Prefix == "" {
			cfg.S3.Prefix = "data-files/"
		}
		if cfg.S3.Denylist == nil {
			cfg.S3.Denylist = defaultS3Denylist
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides lets credentials come from the environment instead of
// the config file, so secrets stay out of dotfiles.
func applyEnvOverrides(cfg *Config) {
	if dir := os.Getenv("DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}
	if url := os.Getenv("BRIDGE_URL"); url != "" {
		if cfg.Bridge == nil {
			cfg.Bridge = &BridgeConfig{Timeout: Duration{2 * time.Minute}}
		}
		cfg.Bridge.URL = url
	}
	if cfg.Bridge != nil {
		if secret := os.Getenv("BRIDGE_SECRET"); secret != "" {
			cfg.Bridge.Secret = secret
		}
	}
	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		if cfg.S3 == nil {
			cfg.S3 = &S3Config{Region: "auto", Prefix: "data-files/", Denylist: defaultS3Denylist}
		}
		cfg.S3.Bucket = bucket
	}
	if cfg.S3 != nil {
		if v := os.Getenv("S3_ENDPOINT"); v != "" {
			cfg.S3.Endpoint = v
		}
		if v := os.Getenv("S3_ACCESS_KEY_ID"); v != "" {
			cfg.S3.AccessKeyID = v
		}
		if v := os.Getenv("S3_SECRET_ACCESS_KEY"); v != "" {
			cfg.S3.SecretAccessKey = v
		}
	}
}

// SaveConfig writes the config back to disk.
func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

// SaveTemplateConfig writes the annotated sample config to configPath.
func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(configPath, []byte(configTemplate), 0644)
}

// HasBridge reports whether a remote bridge is configured.
func (c *Config) HasBridge() bool {
	return c.Bridge != nil && c.Bridge.URL != ""
}

// HasS3 reports whether object-storage search is configured.
func (c *Config) HasS3() bool {
	return c.S3 != nil && c.S3.Bucket != "" && c.S3.AccessKeyID != "" && c.S3.SecretAccessKey != ""
}

// GetDefaultDataDir returns the default directory for local store files.
func GetDefaultDataDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	dir := filepath.Join(dataDir, "discreen")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating data directory %s: %w", dir, err)
	}
	return dir, nil
}

// GetConfigDir returns the configuration directory.
func GetConfigDir() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	dir := filepath.Join(configDir, "discreen")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return dir, nil
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
