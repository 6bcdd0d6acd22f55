package deps

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Empty", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Command != present {
		t.Fatalf("expected resolved command %q, got %q", present, results[0].Command)
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("expected unconfigured command, got %#v", results[2])
	}
}

func TestCheckEncoder(t *testing.T) {
	stubCommand(t, "encoders")

	if status := CheckEncoder(context.Background(), "ffmpeg", "libmp3lame"); !status.Available {
		t.Fatalf("expected libmp3lame available, got %q", status.Detail)
	}
	status := CheckEncoder(context.Background(), "ffmpeg", "libfdk_aac")
	if status.Available {
		t.Fatal("expected libfdk_aac to be missing")
	}
	if status.Detail == "" {
		t.Fatal("expected detail for missing encoder")
	}
}

func TestCheckAAXSupport(t *testing.T) {
	stubCommand(t, "mov")
	if status := CheckAAXSupport(context.Background(), "ffmpeg"); !status.Available {
		t.Fatalf("expected AAX support, got %q", status.Detail)
	}

	stubCommand(t, "mov-old")
	if status := CheckAAXSupport(context.Background(), "ffmpeg"); status.Available {
		t.Fatal("expected missing activation_bytes to fail")
	}
}

func TestCheckAAXSupportCommandFailure(t *testing.T) {
	stubCommand(t, "fail")
	status := CheckAAXSupport(context.Background(), "ffmpeg")
	if status.Available || status.Detail == "" {
		t.Fatalf("expected failure detail, got %#v", status)
	}
}

func stubCommand(t *testing.T, mode string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, _ string, _ ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "DEPS_HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("DEPS_HELPER_MODE") {
	case "encoders":
		fmt.Println("Encoders:")
		fmt.Println(" A....D aac                  AAC (Advanced Audio Coding)")
		fmt.Println(" A....D libmp3lame           libmp3lame MP3 (MPEG audio layer 3) (codec mp3)")
		os.Exit(0)
	case "mov":
		fmt.Println("mov,mp4,m4a,3gp,3g2,mj2 demuxer AVOptions:")
		fmt.Println("  -activation_bytes  <binary>     .D......... Secret bytes for Audible AAX files")
		os.Exit(0)
	case "mov-old":
		fmt.Println("mov,mp4,m4a,3gp,3g2,mj2 demuxer AVOptions:")
		os.Exit(0)
	case "fail":
		os.Exit(1)
	default:
		os.Exit(0)
	}
}
