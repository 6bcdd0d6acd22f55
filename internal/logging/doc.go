// Package logging assembles structured slog loggers used across aaxsplit.
//
// It owns the console and JSON handlers, routes records to stderr and the
// persistent log file, and exposes context helpers so pipeline code tags
// lines with the run identifier, stage, and chapter number.
package logging
