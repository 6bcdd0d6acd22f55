package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"aaxsplit/internal/config"
	"aaxsplit/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies that the filesystem holding path has at least need
// bytes available. A path that does not exist yet is measured at its nearest
// existing parent.
func CheckFreeSpace(name, path string, need int64) Result {
	free, err := FreeBytes(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	detail := fmt.Sprintf("%s free", humanize.IBytes(free))
	if need > 0 && free < uint64(need) {
		return Result{Name: name, Detail: fmt.Sprintf("%s, need %s", detail, humanize.IBytes(uint64(need)))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// FreeBytes returns the space available to unprivileged users at path.
func FreeBytes(path string) (uint64, error) {
	existing, err := nearestExisting(path)
	if err != nil {
		return 0, err
	}
	var st unix.Statfs_t
	if err := unix.Statfs(existing, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", existing, err)
	}
	return st.Bavail * uint64(st.Bsize), nil //nolint:gosec
}

func nearestExisting(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(abs); err == nil {
			return abs, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("no existing parent for %s", path)
		}
		abs = parent
	}
}

// CheckActivationBytes reports whether a usable decryption key is configured.
func CheckActivationBytes(value string) Result {
	const name = "Activation bytes"
	if value == "" {
		return Result{Name: name, Detail: fmt.Sprintf("not configured (set [audible] activation_bytes or %s)", config.ActivationBytesEnv)}
	}
	if err := config.ValidateActivationBytes(value); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: "configured"}
}

// CheckSystemDeps evaluates the media tools for the given config. The ffmpeg
// capability probes only run when the binary itself resolves.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Required for decryption and chapter splitting",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Required for metadata inspection",
		},
	}
	statuses := deps.CheckBinaries(requirements)
	if !statuses[0].Available {
		return statuses
	}
	statuses = append(statuses,
		deps.CheckAAXSupport(ctx, cfg.FFmpegBinary()),
		deps.CheckEncoder(ctx, cfg.FFmpegBinary(), cfg.Encoding.Codec),
	)
	return statuses
}
