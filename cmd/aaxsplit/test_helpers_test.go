package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"aaxsplit/internal/config"
)

const probeJSON = `{
    "chapters": [
        {"id": 0, "time_base": "1/1000", "start_time": "0.000000", "end_time": "22.383000", "tags": {"title": "Opening Credits"}},
        {"id": 1, "time_base": "1/1000", "start_time": "22.383000", "end_time": "1897.213000", "tags": {"title": "Chapter 1"}},
        {"id": 2, "time_base": "1/1000", "start_time": "1897.213000", "end_time": "3600.000000", "tags": {"title": "Chapter 2"}}
    ],
    "format": {
        "filename": "book.aax",
        "format_name": "mov,mp4,m4a,3gp,3g2,mj2",
        "duration": "3600.000000",
        "size": "2048",
        "bit_rate": "64784",
        "tags": {
            "title": "The Book (Unabridged)",
            "artist": "A. Author",
            "album_artist": "A. Author",
            "genre": "Audiobook",
            "copyright": "&#169;2001 Publisher"
        }
    }
}`

// ffmpegStub answers capability probes and otherwise writes its last
// argument, which is the output path for both conversion passes.
const ffmpegStub = `#!/bin/sh
if [ -n "$FFMPEG_STUB_FAIL" ]; then
  echo "book.aax: Invalid data found when processing input" >&2
  exit 1
fi
case "$*" in
  *-encoders*) echo " A....D libmp3lame           libmp3lame MP3"; exit 0 ;;
  *demuxer=mov*) echo "  -activation_bytes  <binary>  Secret bytes for Audible AAX files"; exit 0 ;;
esac
for last; do :; done
printf 'audio' > "$last"
`

type cliTestEnv struct {
	baseDir    string
	configPath string
	input      string
	outputDir  string
}

func setupCLITestEnv(t *testing.T, activationBytes string) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv(config.ActivationBytesEnv, "")

	binDir := filepath.Join(base, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin: %v", err)
	}
	jsonPath := filepath.Join(base, "probe.json")
	if err := os.WriteFile(jsonPath, []byte(probeJSON), 0o644); err != nil {
		t.Fatalf("write probe json: %v", err)
	}
	ffprobe := filepath.Join(binDir, "ffprobe")
	if err := os.WriteFile(ffprobe, []byte(fmt.Sprintf("#!/bin/sh\ncat '%s'\n", jsonPath)), 0o755); err != nil {
		t.Fatalf("write ffprobe stub: %v", err)
	}
	ffmpeg := filepath.Join(binDir, "ffmpeg")
	if err := os.WriteFile(ffmpeg, []byte(ffmpegStub), 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}

	input := filepath.Join(base, "in", "book.aax")
	if err := os.MkdirAll(filepath.Dir(input), 0o755); err != nil {
		t.Fatalf("mkdir input dir: %v", err)
	}
	if err := os.WriteFile(input, bytes.Repeat([]byte{0x42}, 2048), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "config.toml"),
		input:      input,
		outputDir:  filepath.Join(base, "books"),
	}
	content := fmt.Sprintf(`[paths]
output_dir = %q
work_dir = %q
log_dir = %q
state_dir = %q

[tools]
ffmpeg = %q
ffprobe = %q

[audible]
activation_bytes = %q
`,
		env.outputDir,
		filepath.Join(base, "work"),
		filepath.Join(base, "logs"),
		filepath.Join(base, "state"),
		ffmpeg,
		ffprobe,
		activationBytes,
	)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
