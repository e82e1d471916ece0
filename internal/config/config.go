// Package config handles configuration loading, validation, and management for ledgerctl.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Version is the current configuration schema version.
const Version = 1

// EnvPrefix prefixes every environment override, e.g. LEDGERCTL_BINARY_BASE_URL.
// Keys are derived from field names with split_words so no unprefixed
// fallback variable is ever consulted.
const EnvPrefix = "LEDGERCTL"

// Config holds the complete ledgerctl configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version" ignored:"true"`

	// Paths locates the wallets tree, archive, pointer file and binaries.
	Paths PathsConfig `toml:"paths" json:"paths" yaml:"paths"`

	// Wallet holds registry settings.
	Wallet WalletConfig `toml:"wallet" json:"wallet" yaml:"wallet"`

	// Binary configures discovery and download of the external client.
	Binary BinaryConfig `toml:"binary" json:"binary" yaml:"binary"`

	// Operations configures the financial operation builders.
	Operations OperationsConfig `toml:"operations" json:"operations" yaml:"operations"`

	// Vault configures archive key derivation.
	Vault VaultConfig `toml:"vault" json:"vault" yaml:"vault"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// PathsConfig holds filesystem locations. Empty values are derived from DataDir.
type PathsConfig struct {
	// DataDir is the root of all ledgerctl state.
	DataDir string `toml:"data_dir" json:"data_dir" yaml:"data_dir" split_words:"true"`

	// WalletsDir holds one subdirectory per wallet.
	WalletsDir string `toml:"wallets_dir" json:"wallets_dir" yaml:"wallets_dir" split_words:"true"`

	// ArchivePath is the encrypted representation of WalletsDir.
	ArchivePath string `toml:"archive_path" json:"archive_path" yaml:"archive_path" split_words:"true"`

	// PointerPath stores the active wallet name.
	PointerPath string `toml:"pointer_path" json:"pointer_path" yaml:"pointer_path" split_words:"true"`

	// BinDir holds downloaded client artifacts.
	BinDir string `toml:"bin_dir" json:"bin_dir" yaml:"bin_dir" split_words:"true"`

	// HistoryPath is the sqlite operation history database.
	HistoryPath string `toml:"history_path" json:"history_path" yaml:"history_path" split_words:"true"`
}

// WalletConfig holds wallet registry settings.
type WalletConfig struct {
	// DefaultName is used when the first run finds no wallet at all.
	DefaultName string `toml:"default_name" json:"default_name" yaml:"default_name" split_words:"true"`
}

// BinaryConfig holds external client resolution settings.
type BinaryConfig struct {
	// Program is the artifact name prefix, e.g. "ledger" for ledger-1.2.0.0-linux-amd64.
	Program string `toml:"program" json:"program" yaml:"program" split_words:"true"`

	// BaseURL serves the manifest and the artifacts.
	BaseURL string `toml:"base_url" json:"base_url" yaml:"base_url" split_words:"true"`

	// ManifestPath is appended to BaseURL to fetch the artifact list. A .json
	// path selects the structured manifest, anything else the newline list.
	ManifestPath string `toml:"manifest_path" json:"manifest_path" yaml:"manifest_path" split_words:"true"`

	// ManifestTimeoutSec bounds the manifest request.
	ManifestTimeoutSec int `toml:"manifest_timeout_sec" json:"manifest_timeout_sec" yaml:"manifest_timeout_sec" split_words:"true"`

	// DownloadTimeoutSec bounds each artifact download.
	DownloadTimeoutSec int `toml:"download_timeout_sec" json:"download_timeout_sec" yaml:"download_timeout_sec" split_words:"true"`

	// AutoUpdate reconciles against the remote manifest before the first client call.
	AutoUpdate bool `toml:"auto_update" json:"auto_update" yaml:"auto_update" split_words:"true"`

	// PublicRPC appends --public-rpc to every invocation.
	PublicRPC bool `toml:"public_rpc" json:"public_rpc" yaml:"public_rpc" split_words:"true"`

	// Platform overrides the host platform tag (e.g. "linux-amd64").
	Platform string `toml:"platform" json:"platform" yaml:"platform" split_words:"true"`
}

// OperationsConfig holds operation builder settings.
type OperationsConfig struct {
	// SettleDelaySec is the cosmetic wait after a mutating operation.
	SettleDelaySec int `toml:"settle_delay_sec" json:"settle_delay_sec" yaml:"settle_delay_sec" split_words:"true"`

	// AmountPrecision is the number of fractional digits used for computed split parts.
	AmountPrecision int `toml:"amount_precision" json:"amount_precision" yaml:"amount_precision" split_words:"true"`

	// Commands maps operations to client subcommands.
	Commands CommandsConfig `toml:"commands" json:"commands" yaml:"commands"`
}

// CommandsConfig names the client subcommand used for each operation.
type CommandsConfig struct {
	Balance  string `toml:"balance" json:"balance" yaml:"balance" split_words:"true"`
	Coins    string `toml:"coins" json:"coins" yaml:"coins" split_words:"true"`
	Transfer string `toml:"transfer" json:"transfer" yaml:"transfer" split_words:"true"`
	Split    string `toml:"split" json:"split" yaml:"split" split_words:"true"`
	Merge    string `toml:"merge" json:"merge" yaml:"merge" split_words:"true"`
	MergeAll string `toml:"merge_all" json:"merge_all" yaml:"merge_all" split_words:"true"`
}

// VaultConfig holds scrypt parameters for new archives.
// Existing archives carry their own parameters in the header.
type VaultConfig struct {
	ScryptN int `toml:"scrypt_n" json:"scrypt_n" yaml:"scrypt_n" split_words:"true"`
	ScryptR int `toml:"scrypt_r" json:"scrypt_r" yaml:"scrypt_r" split_words:"true"`
	ScryptP int `toml:"scrypt_p" json:"scrypt_p" yaml:"scrypt_p" split_words:"true"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level" split_words:"true"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format" split_words:"true"`

	// Output is the log output: "stdout", "stderr", "file", or "both".
	Output string `toml:"output" json:"output" yaml:"output" split_words:"true"`

	// FilePath is the path to the log file (when Output is "file").
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path" split_words:"true"`

	// MaxSizeMB is the maximum log file size before rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb" split_words:"true"`

	// MaxBackups is the number of old log files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups" split_words:"true"`

	// MaxAgeDays is the maximum age of log files in days.
	MaxAgeDays int `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days" split_words:"true"`

	// Compress determines whether to compress rotated logs.
	Compress bool `toml:"compress" json:"compress" yaml:"compress" split_words:"true"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := LedgerctlDir()

	return &Config{
		Version: Version,
		Paths: PathsConfig{
			DataDir: dir,
		},
		Wallet: WalletConfig{
			DefaultName: "main",
		},
		Binary: BinaryConfig{
			Program:            "ledger",
			BaseURL:            "https://releases.example.org/ledger",
			ManifestPath:       "manifest.txt",
			ManifestTimeoutSec: 15,
			DownloadTimeoutSec: 300,
			AutoUpdate:         true,
			PublicRPC:          true,
		},
		Operations: OperationsConfig{
			SettleDelaySec:  5,
			AmountPrecision: 9,
			Commands: CommandsConfig{
				Balance:  "balance",
				Coins:    "coins",
				Transfer: "transfer",
				Split:    "split",
				Merge:    "merge",
				MergeAll: "merge all",
			},
		},
		Vault: VaultConfig{
			ScryptN: 1 << 18,
			ScryptR: 8,
			ScryptP: 1,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "file",
			FilePath:   filepath.Join(dir, "logs", "ledgerctl.log"),
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(LedgerctlDir(), "config.toml")
}

// LedgerctlDir returns the base ledgerctl directory.
// Uses platform-specific paths or the LEDGERCTL_DATA_DIR environment override.
func LedgerctlDir() string {
	if envDir := os.Getenv(EnvPrefix + "_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// ApplyEnvOverrides applies LEDGERCTL_<SECTION>_<FIELD> environment variables.
// Unset variables leave the loaded value untouched.
func (c *Config) ApplyEnvOverrides() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("apply environment overrides: %w", err)
	}
	return nil
}

// EnsureDirectories creates the directories ledgerctl writes into.
// The wallets directory is deliberately not created here: its presence
// is part of the vault state.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir(),
		c.BinDir(),
		filepath.Dir(c.HistoryPath()),
		filepath.Dir(c.Logging.FilePath),
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// DataDir returns the root state directory.
func (c *Config) DataDir() string {
	if c.Paths.DataDir != "" {
		return c.Paths.DataDir
	}
	return LedgerctlDir()
}

// WalletsDir returns the wallets root.
func (c *Config) WalletsDir() string {
	return c.derived(c.Paths.WalletsDir, "wallets")
}

// ArchivePath returns the vault archive path.
func (c *Config) ArchivePath() string {
	return c.derived(c.Paths.ArchivePath, "wallets.vault")
}

// PointerPath returns the active-wallet pointer file path.
func (c *Config) PointerPath() string {
	return c.derived(c.Paths.PointerPath, "active_wallet")
}

// BinDir returns the artifact directory.
func (c *Config) BinDir() string {
	return c.derived(c.Paths.BinDir, "bin")
}

// HistoryPath returns the history database path.
func (c *Config) HistoryPath() string {
	return c.derived(c.Paths.HistoryPath, "history.db")
}

// ManifestTimeout returns the manifest fetch timeout.
func (c *Config) ManifestTimeout() time.Duration {
	return time.Duration(c.Binary.ManifestTimeoutSec) * time.Second
}

// DownloadTimeout returns the per-artifact download timeout.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Binary.DownloadTimeoutSec) * time.Second
}

// SettleDelay returns the post-operation settle wait.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Operations.SettleDelaySec) * time.Second
}

func (c *Config) derived(explicit, name string) string {
	if explicit != "" {
		return explicit
	}
	return filepath.Join(c.DataDir(), name)
}
