// Package main hosts the aaxsplit CLI entrypoint and command graph.
//
// The Cobra-based command tree resolves configuration, builds the logger, and
// hands each invocation to an internal package: conversions to converter,
// read-back checks to verify, the run ledger to history, and environment
// checks to preflight. Exit codes follow the services error classification
// so scripts can tell bad input from tool failures.
package main
