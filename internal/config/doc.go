// Package config loads, normalizes, and validates treegift configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and overlays environment variables such as
// TREEGIFT_API_TOKEN. The Config type centralizes every knob the wizard engine
// and CLI need: remote service endpoints, the tree price table, matcher
// thresholds, recipient defaults, and logging.
//
// Always obtain settings through this package so downstream code receives
// sanitized URLs, canonical log formats, and clear validation errors.
package config
