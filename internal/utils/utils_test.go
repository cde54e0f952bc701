package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestGenerateJobID(t *testing.T) {
	// Integration test using the OS filesystem
	dir := t.TempDir()
	dest := writeTemp(t, dir, "dest.mp4", "fake dest video")
	src := writeTemp(t, dir, "src.mp4", "fake source video")

	id, err := GenerateJobID(dest, src)
	if err != nil || id == "" {
		t.Fatalf("Failed to generate ID: %v", err)
	}

	// Verify Determinism
	id2, _ := GenerateJobID(dest, src)
	if id != id2 {
		t.Errorf("Hash is not deterministic. Got %s, then %s", id, id2)
	}

	// Input order matters: dest and source play different roles
	swapped, _ := GenerateJobID(src, dest)
	if swapped == id {
		t.Error("Hash ignored the order of inputs")
	}

	// Verify Sensitivity (Change content -> Change ID)
	f, _ := os.OpenFile(src, os.O_APPEND|os.O_WRONLY, 0644)
	f.Write([]byte(" modification"))
	f.Close()

	id3, _ := GenerateJobID(dest, src)
	if id == id3 {
		t.Error("Hash did not change after file modification")
	}

	if _, err := GenerateJobID(filepath.Join(dir, "missing.mp4")); err == nil {
		t.Error("Expected error for missing file, got nil")
	}
}

func TestShowError(t *testing.T) {
	var buf bytes.Buffer
	errOut = &buf
	defer func() { errOut = os.Stderr }()

	s := NewSafeCommand(context.Background(), "ffmpeg", "-version")
	s.Stderr.WriteString("Invalid data found when processing input")

	ShowError("Decoder process failed", errors.New("exit status 1"), s)

	out := buf.String()
	for _, want := range []string{"Decoder process failed", "exit status 1", "Invalid data found"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestSafeCommand_CapturesStderr(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	s := NewSafeCommand(context.Background(), "sh", "-c", "echo boom >&2; exit 3")
	if err := s.Run(); err == nil {
		t.Fatal("Expected non-zero exit, got nil")
	}
	if got := strings.TrimSpace(s.Stderr.String()); got != "boom" {
		t.Errorf("Expected captured stderr 'boom', got %q", got)
	}
}

func TestSafeCommand_Cancel(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := NewSafeCommand(ctx, "sleep", "10")
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := s.Wait(); err == nil {
		t.Error("Expected cancelled command to fail")
	}
}

func TestWasShown(t *testing.T) {
	errOut = &bytes.Buffer{}
	defer func() { errOut = os.Stderr }()

	reported := errors.New("disk full")
	ShowError("Write failed", reported, nil)

	if !WasShown(reported) {
		t.Error("Expected a shown error to be remembered")
	}
	if !WasShown(fmt.Errorf("job aborted: %w", reported)) {
		t.Error("Expected a wrapped shown error to be remembered")
	}
	if WasShown(errors.New("disk full")) {
		t.Error("A distinct error with the same text was treated as shown")
	}
	if WasShown(nil) {
		t.Error("nil was treated as shown")
	}
}
