// Package config loads, normalizes, and validates dubber configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads an optional .env file, and applies
// DUBBER_* and OPENAI_API_KEY environment overrides. The Config type
// centralizes every knob the daemon and CLI need so staging/output
// directories, external tools, and adapter credentials are resolved in one
// pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
