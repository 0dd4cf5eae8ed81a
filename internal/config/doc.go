// Package config loads, normalizes, and validates isoconvert configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files (or YAML when the file extension says so), and
// honours environment overrides such as ISOCONVERT_WORKLIST. The Config type
// centralizes every knob the CLI and pipeline need: external tool locations,
// stage parallelism and timeouts, encoder arguments, and state directories.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
