// Package converter runs one audiobook conversion end to end.
//
// Convert probes the container, plans the chapter files, takes an exclusive
// lock on the book's output directory, decodes the whole file into a per-run
// scratch directory, and extracts each chapter in order with its tags.
// Optional steps rewrite the track total, verify the written files, and
// keep the decoded intermediate. Runs are recorded in the history ledger,
// which also lets Convert skip inputs that were already converted.
//
// External collaborators (ffprobe, ffmpeg, the ledger, the verifier) are
// injected through options so tests can replace them.
package converter
