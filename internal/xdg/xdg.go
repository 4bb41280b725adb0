// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quillboard Contributors

// Package xdg provides XDG Base Directory paths for Quillboard.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "quillboard"

// ConfigDir returns the XDG config directory for quillboard.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// DataDir returns the XDG data directory for quillboard.
// Checks XDG_DATA_HOME first, falls back to ~/.local/share.
func DataDir() string {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".local", "share")
	}
	return filepath.Join(base, appName)
}

// DefaultConfigFile returns the path of the config file in ConfigDir, or ""
// when none exists. Used when --config is not given.
func DefaultConfigFile() string {
	path := filepath.Join(ConfigDir(), "quillboard.yaml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// DefaultIconsDir returns the icon storage directory under DataDir.
func DefaultIconsDir() string {
	return filepath.Join(DataDir(), "icons")
}
