// Package services defines shared utilities consumed by the conversion
// pipeline and the external tool wrappers.
//
// Key responsibilities:
//   - Context helpers that stamp run identifiers, stage names, and chapter
//     numbers for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent CLI exit codes.
//
// Use these helpers when wiring new pipeline steps so error handling and
// observability stay uniform across the tool.
package services
