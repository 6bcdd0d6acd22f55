// Package config loads, normalizes, and validates aaxsplit configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the AAXSPLIT_ACTIVATION_BYTES
// environment fallback. The Config type centralizes every knob the converter
// and CLI need, so output, scratch, and state directories plus the external
// tool names are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
