// Package config loads and validates the TOML configuration used by the
// daemon and CLI. Paths are expanded relative to the user's home directory
// and created on demand via EnsureDirectories.
package config
