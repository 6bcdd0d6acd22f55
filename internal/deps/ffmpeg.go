package deps

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

const probeTimeout = 10 * time.Second

// CheckEncoder reports whether ffmpeg lists codec among its encoders.
func CheckEncoder(ctx context.Context, ffmpegBinary, codec string) Status {
	codec = strings.TrimSpace(codec)
	result := Status{
		Name:        "Encoder " + codec,
		Command:     ffmpegBinary,
		Description: "Audio encoder for the decode pass",
	}
	output, err := runHelp(ctx, ffmpegBinary, "-hide_banner", "-encoders")
	if err != nil {
		result.Detail = err.Error()
		return result
	}
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == codec {
			result.Available = true
			return result
		}
	}
	result.Detail = fmt.Sprintf("ffmpeg has no %q encoder", codec)
	return result
}

// CheckAAXSupport reports whether ffmpeg's mov demuxer accepts activation bytes.
func CheckAAXSupport(ctx context.Context, ffmpegBinary string) Status {
	result := Status{
		Name:        "AAX decryption",
		Command:     ffmpegBinary,
		Description: "mov demuxer activation_bytes option",
	}
	output, err := runHelp(ctx, ffmpegBinary, "-hide_banner", "-h", "demuxer=mov")
	if err != nil {
		result.Detail = err.Error()
		return result
	}
	if !strings.Contains(output, "activation_bytes") {
		result.Detail = "ffmpeg build lacks activation_bytes support"
		return result
	}
	result.Available = true
	return result
}

func runHelp(ctx context.Context, binary string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var stdout bytes.Buffer
	cmd := commandContext(ctx, binary, args...) //nolint:gosec
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s %s: %w", binary, strings.Join(args, " "), err)
	}
	return stdout.String(), nil
}
