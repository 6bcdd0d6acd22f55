// Package testsupport provides shared fixtures for package tests: a config
// builder rooted in t.TempDir, stub ffmpeg/ffprobe executables on PATH, a
// history store opener, and a sized file writer.
package testsupport
