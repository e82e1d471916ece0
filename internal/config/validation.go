package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// walletNamePattern mirrors the wallet registry rule; the default wallet must be creatable.
var walletNamePattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// platformPattern matches "<os>-<arch>" tags.
var platformPattern = regexp.MustCompile(`^[a-z0-9_]+-[a-z0-9_]+$`)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateWallet(&c.Wallet)...)
	errs = append(errs, validateBinary(&c.Binary)...)
	errs = append(errs, validateOperations(&c.Operations)...)
	errs = append(errs, validateVault(&c.Vault)...)
	errs = append(errs, validateLogging(&c.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateWallet(w *WalletConfig) ValidationErrors {
	var errs ValidationErrors
	if !walletNamePattern.MatchString(w.DefaultName) {
		errs = append(errs, ValidationError{
			Field:   "wallet.default_name",
			Message: fmt.Sprintf("%q must match %s", w.DefaultName, walletNamePattern),
		})
	}
	return errs
}

func validateBinary(b *BinaryConfig) ValidationErrors {
	var errs ValidationErrors

	if b.Program == "" || strings.ContainsAny(b.Program, `/\`) {
		errs = append(errs, ValidationError{
			Field:   "binary.program",
			Message: "must be a non-empty file name prefix",
		})
	}

	if b.BaseURL != "" {
		u, err := url.Parse(b.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "binary.base_url",
				Message: fmt.Sprintf("invalid URL %q", b.BaseURL),
			})
		}
	}

	if b.ManifestPath == "" {
		errs = append(errs, ValidationError{
			Field:   "binary.manifest_path",
			Message: "cannot be empty",
		})
	}

	if b.ManifestTimeoutSec <= 0 {
		errs = append(errs, ValidationError{
			Field:   "binary.manifest_timeout_sec",
			Message: "must be positive",
		})
	}

	if b.DownloadTimeoutSec <= 0 {
		errs = append(errs, ValidationError{
			Field:   "binary.download_timeout_sec",
			Message: "must be positive",
		})
	}

	if b.Platform != "" && !platformPattern.MatchString(b.Platform) {
		errs = append(errs, ValidationError{
			Field:   "binary.platform",
			Message: fmt.Sprintf("%q is not an <os>-<arch> tag", b.Platform),
		})
	}

	return errs
}

func validateOperations(o *OperationsConfig) ValidationErrors {
	var errs ValidationErrors

	if o.SettleDelaySec < 0 {
		errs = append(errs, ValidationError{
			Field:   "operations.settle_delay_sec",
			Message: "cannot be negative",
		})
	}

	if o.AmountPrecision < 0 || o.AmountPrecision > 18 {
		errs = append(errs, ValidationError{
			Field:   "operations.amount_precision",
			Message: "must be between 0 and 18",
		})
	}

	commands := map[string]string{
		"balance":   o.Commands.Balance,
		"coins":     o.Commands.Coins,
		"transfer":  o.Commands.Transfer,
		"split":     o.Commands.Split,
		"merge":     o.Commands.Merge,
		"merge_all": o.Commands.MergeAll,
	}
	for name, verb := range commands {
		if strings.TrimSpace(verb) == "" {
			errs = append(errs, ValidationError{
				Field:   "operations.commands." + name,
				Message: "cannot be empty",
			})
		}
	}

	return errs
}

// Scrypt bounds accepted by the vault archive format.
const (
	maxScryptN  = 1 << 22
	maxScryptRP = 1 << 10
)

func validateVault(v *VaultConfig) ValidationErrors {
	var errs ValidationErrors

	if v.ScryptN < 2 || v.ScryptN > maxScryptN || v.ScryptN&(v.ScryptN-1) != 0 {
		errs = append(errs, ValidationError{
			Field:   "vault.scrypt_n",
			Message: fmt.Sprintf("must be a power of two between 2 and %d", maxScryptN),
		})
	}
	if v.ScryptR <= 0 || v.ScryptR > maxScryptRP {
		errs = append(errs, ValidationError{
			Field:   "vault.scrypt_r",
			Message: fmt.Sprintf("must be between 1 and %d", maxScryptRP),
		})
	}
	if v.ScryptP <= 0 || v.ScryptP > maxScryptRP {
		errs = append(errs, ValidationError{
			Field:   "vault.scrypt_p",
			Message: fmt.Sprintf("must be between 1 and %d", maxScryptRP),
		})
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown level %q", l.Level),
		})
	}

	switch strings.ToLower(l.Format) {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("unknown format %q", l.Format),
		})
	}

	switch strings.ToLower(l.Output) {
	case "stdout", "stderr", "file", "both":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("unknown output %q", l.Output),
		})
	}

	if (l.Output == "file" || l.Output == "both") && l.FilePath == "" {
		errs = append(errs, ValidationError{
			Field:   "logging.file_path",
			Message: "required when output includes a file",
		})
	}

	return errs
}
