package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

var commandContext = exec.CommandContext

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams  []Stream  `json:"streams"`
	Format   Format    `json:"format"`
	Chapters []Chapter `json:"chapters"`
	Error    *Error    `json:"error,omitempty"`
	raw      []byte
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Duration   string `json:"duration"`
	BitRate    string `json:"bit_rate"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string            `json:"filename"`
	NBStreams  int               `json:"nb_streams"`
	Duration   string            `json:"duration"`
	Size       string            `json:"size"`
	BitRate    string            `json:"bit_rate"`
	FormatName string            `json:"format_name"`
	Tags       map[string]string `json:"tags"`
}

// Chapter is a single entry of the -show_chapters listing. Start and end
// times are kept as the decimal strings ffprobe printed.
type Chapter struct {
	ID        int64             `json:"id"`
	StartTime string            `json:"start_time"`
	EndTime   string            `json:"end_time"`
	Tags      map[string]string `json:"tags"`
}

// Error is the object emitted by -show_error when the input cannot be read.
type Error struct {
	Code   int    `json:"code"`
	String string `json:"string"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := commandContext(ctx, binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_chapters",
		"-show_error",
		"-i", path,
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	output, runErr := cmd.Output()

	// -show_error reports unreadable inputs in the JSON body and exits
	// non-zero, so decode before looking at the exit status.
	result, parseErr := Parse(output)
	if parseErr == nil && result.Error != nil {
		return result, fmt.Errorf("ffprobe returned error: %s", strings.TrimSpace(result.Error.String))
	}
	if runErr != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", runErr, strings.TrimSpace(stderr.String()))
	}
	if parseErr != nil {
		return Result{}, parseErr
	}
	return result, nil
}

// Parse decodes an ffprobe JSON document.
func Parse(data []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	result.raw = append([]byte(nil), data...)
	return result, nil
}

// RawJSON returns the raw ffprobe JSON payload.
func (r Result) RawJSON() []byte {
	return append([]byte(nil), r.raw...)
}

// Tag returns a format-level tag, matching the key case-insensitively.
func (r Result) Tag(name string) (string, bool) {
	return lookupTag(r.Format.Tags, name)
}

// Tag returns a chapter tag, matching the key case-insensitively.
func (c Chapter) Tag(name string) (string, bool) {
	return lookupTag(c.Tags, name)
}

func lookupTag(tags map[string]string, name string) (string, bool) {
	if value, ok := tags[name]; ok {
		return value, true
	}
	for key, value := range tags {
		if strings.EqualFold(key, name) {
			return value, true
		}
	}
	return "", false
}

// VideoStreamCount returns the number of video streams discovered.
func (r Result) VideoStreamCount() int {
	return r.countStreams("video")
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	return r.countStreams("audio")
}

func (r Result) countStreams(codecType string) int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, codecType) {
			count++
		}
	}
	return count
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return int64(size)
}

// BitRate returns the container bitrate in bits per second, or 0 when unavailable.
func (r Result) BitRate() int64 {
	rate := parseFloat(r.Format.BitRate)
	if math.IsNaN(rate) || rate < 0 {
		return 0
	}
	return int64(rate)
}

// StartSeconds returns the chapter start offset in seconds.
func (c Chapter) StartSeconds() float64 {
	return parseFloat(c.StartTime)
}

// EndSeconds returns the chapter end offset in seconds.
func (c Chapter) EndSeconds() float64 {
	return parseFloat(c.EndTime)
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
