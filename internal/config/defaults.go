package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "ledgerctl"

// PlatformDataDir returns where ledgerctl keeps wallets, clients and history:
//
//	macOS    ~/Library/Application Support/ledgerctl
//	Linux    $XDG_DATA_HOME/ledgerctl or ~/.local/share/ledgerctl
//	Windows  %APPDATA%\ledgerctl
//	other    ~/.ledgerctl
func PlatformDataDir() string {
	home := homeDir()
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appName)
	case "linux":
		return xdgDir("XDG_DATA_HOME", filepath.Join(home, ".local", "share"))
	case "windows":
		return xdgDir("APPDATA", filepath.Join(home, "AppData", "Roaming"))
	}
	return filepath.Join(home, "."+appName)
}

// PlatformConfigDir is $XDG_CONFIG_HOME/ledgerctl on Linux and the data
// directory elsewhere.
func PlatformConfigDir() string {
	if runtime.GOOS != "linux" {
		return PlatformDataDir()
	}
	return xdgDir("XDG_CONFIG_HOME", filepath.Join(homeDir(), ".config"))
}

func xdgDir(env, fallback string) string {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, appName)
	}
	return filepath.Join(fallback, appName)
}

func homeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	home, _ := os.UserHomeDir()
	return home
}

// SupportedConfigFormats lists the accepted config file extensions, preferred first.
func SupportedConfigFormats() []string {
	return []string{"toml", "json", "yaml", "yml"}
}

// FindConfigFile returns the first config.<ext> found in the working
// directory, the config directory or the data directory, or "" if none.
func FindConfigFile() string {
	for _, dir := range []string{".", PlatformConfigDir(), LedgerctlDir()} {
		for _, ext := range SupportedConfigFormats() {
			path := filepath.Join(dir, "config."+ext)
			if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
				return path
			}
		}
	}
	return ""
}
