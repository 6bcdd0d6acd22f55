// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// This package has no aaxsplit-specific dependencies and could be extracted
// as a standalone library.
//
// Key types:
//   - Result: parsed ffprobe output containing streams, format, and chapters
//   - Format: container-level metadata (duration, size, bitrate, tags)
//   - Chapter: named time range with its own tags
//   - Error: the -show_error object reported for unreadable inputs
//
// Primary entry points:
//   - Inspect: executes ffprobe and returns parsed Result
//   - Parse: decodes an already captured JSON document
package ffprobe
