package transcode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"aaxsplit/internal/audiobook"
	"aaxsplit/internal/services"
)

var commandContext = exec.CommandContext

const stderrTailBytes = 4096

// DecryptRequest describes the full-file decode pass.
type DecryptRequest struct {
	Input           string
	Output          string
	ActivationBytes string
	// BitRate is passed to -ab; ffprobe's plain bits-per-second value works.
	BitRate string
	Codec   string
}

// ChapterRequest describes one chapter extraction from the decoded file.
type ChapterRequest struct {
	Input      string
	Output     string
	Start      string
	End        string
	ID3Version int
	Tags       []audiobook.Tag
}

// Option configures the ffmpeg runner.
type Option func(*FFmpeg)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(f *FFmpeg) {
		if binary = strings.TrimSpace(binary); binary != "" {
			f.binary = binary
		}
	}
}

// WithStats sends ffmpeg's -stats progress lines to w.
func WithStats(w io.Writer) Option {
	return func(f *FFmpeg) {
		f.stats = w
	}
}

// WithOverwrite lets ffmpeg replace existing output files.
func WithOverwrite(overwrite bool) Option {
	return func(f *FFmpeg) {
		f.overwrite = overwrite
	}
}

// FFmpeg runs the ffmpeg command-line tool.
type FFmpeg struct {
	binary    string
	stats     io.Writer
	overwrite bool
}

// New constructs an ffmpeg runner using defaults.
func New(opts ...Option) *FFmpeg {
	f := &FFmpeg{binary: "ffmpeg"}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Binary returns the executable that will be invoked.
func (f *FFmpeg) Binary() string {
	return f.binary
}

// Decrypt decodes the whole container into req.Output.
func (f *FFmpeg) Decrypt(ctx context.Context, req DecryptRequest) error {
	if strings.TrimSpace(req.Input) == "" {
		return errors.New("decrypt: input path required")
	}
	if strings.TrimSpace(req.Output) == "" {
		return errors.New("decrypt: output path required")
	}
	if strings.TrimSpace(req.ActivationBytes) == "" {
		return services.Wrap(services.ErrConfiguration, "decrypt", "ffmpeg", "activation bytes required", nil)
	}
	return f.run(ctx, "decrypt", DecryptArgs(req, f.overwrite))
}

// ExtractChapter copies one chapter range out of the decoded file and tags it.
func (f *FFmpeg) ExtractChapter(ctx context.Context, req ChapterRequest) error {
	if strings.TrimSpace(req.Input) == "" {
		return errors.New("extract chapter: input path required")
	}
	if strings.TrimSpace(req.Output) == "" {
		return errors.New("extract chapter: output path required")
	}
	return f.run(ctx, "split", ChapterArgs(req, f.overwrite))
}

func (f *FFmpeg) run(ctx context.Context, stage string, args []string) error {
	cmd := commandContext(ctx, f.binary, args...) //nolint:gosec
	tail := &tailBuffer{limit: stderrTailBytes}
	if f.stats != nil {
		cmd.Stderr = io.MultiWriter(f.stats, tail)
	} else {
		cmd.Stderr = tail
	}
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return services.Wrap(services.ErrExternalTool, stage, f.binary, lastLine(tail.String()), err)
	}
	return nil
}

// DecryptArgs returns the ffmpeg arguments for the decode pass.
func DecryptArgs(req DecryptRequest, overwrite bool) []string {
	codec := strings.TrimSpace(req.Codec)
	if codec == "" {
		codec = "libmp3lame"
	}
	args := []string{"-loglevel", "error", "-stats"}
	if overwrite {
		args = append(args, "-y")
	} else {
		args = append(args, "-n")
	}
	args = append(args,
		"-activation_bytes", req.ActivationBytes,
		"-i", req.Input,
		"-vn",
		"-codec:a", codec,
		"-codec:v", "copy",
	)
	if bitRate := strings.TrimSpace(req.BitRate); bitRate != "" {
		args = append(args, "-ab", bitRate)
	}
	args = append(args, "-map_metadata", "-1", req.Output)
	return args
}

// ChapterArgs returns the ffmpeg arguments for a chapter extraction.
func ChapterArgs(req ChapterRequest, overwrite bool) []string {
	version := req.ID3Version
	if version == 0 {
		version = 3
	}
	args := []string{"-loglevel", "error", "-stats"}
	if overwrite {
		args = append(args, "-y")
	} else {
		args = append(args, "-n")
	}
	args = append(args,
		"-i", req.Input,
		"-codec:a", "copy",
		"-codec:v", "copy",
		"-ss", req.Start,
		"-to", req.End,
		"-map_metadata", "-1",
		"-id3v2_version", strconv.Itoa(version),
	)
	for _, tag := range req.Tags {
		args = append(args, "-metadata", fmt.Sprintf("%s=%s", tag.Key, tag.Value))
	}
	args = append(args, req.Output)
	return args
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}

// lastLine returns the final non-empty line; ffmpeg prints its fatal error last.
func lastLine(output string) string {
	output = strings.ReplaceAll(output, "\r", "\n")
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return "exited non-zero"
}
