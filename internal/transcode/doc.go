// Package transcode wraps the two ffmpeg invocations of a conversion: the
// full-file decrypt/decode pass and the per-chapter stream copy with tags.
//
// Argument construction is kept in pure functions so it can be inspected
// without running ffmpeg. ffmpeg's -stats progress goes to the configured
// writer while the last few kilobytes of stderr are retained for error
// messages.
package transcode
