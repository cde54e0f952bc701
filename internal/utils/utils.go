package utils

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// --- 1. Process Safety & Command Wrapping ---

// SafeCommand wraps a standard exec.Cmd with a buffer to catch Stderr (ffmpeg or detector logs)
// This ensures we don't lose critical crash information if a child process dies.
type SafeCommand struct {
	*exec.Cmd
	Stderr *bytes.Buffer
}

// NewSafeCommand initializes a command bound to ctx and attaches a buffer to its Stderr pipe
// It prepares the command for execution but does not start it.
func NewSafeCommand(ctx context.Context, name string, args ...string) *SafeCommand {
	cmd := exec.CommandContext(ctx, name, args...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	return &SafeCommand{Cmd: cmd, Stderr: stderr}
}

// errOut is where ShowError writes. Tests swap it for a buffer.
var errOut io.Writer = os.Stderr

// shown holds every error ShowError has reported, so the top level can avoid
// printing it a second time.
var shown struct {
	sync.Mutex
	errs []error
}

// ShowError prints a formatted error box and dumps child process logs if a SafeCommand is provided.
func ShowError(context string, err error, s *SafeCommand) {
	if err != nil {
		shown.Lock()
		shown.errs = append(shown.errs, err)
		shown.Unlock()
	}
	fmt.Fprintf(errOut, "\n---------------------------------------------------------\n")
	fmt.Fprintf(errOut, "🚨 MOUTHSWAP ERROR: %s\n", context)
	if err != nil {
		fmt.Fprintf(errOut, "DETAILS: %v\n", err)
	}

	// If we have a SafeCommand and it captured logs, print them.
	if s != nil && s.Stderr.Len() > 0 {
		fmt.Fprintf(errOut, "\nPROCESS LOGS (%s):\n%s\n", s.Path, s.Stderr.String())
	}
	fmt.Fprintf(errOut, "---------------------------------------------------------\n")
}

// WasShown reports whether err, or an error it wraps, was already printed by
// ShowError.
func WasShown(err error) bool {
	if err == nil {
		return false
	}
	shown.Lock()
	defer shown.Unlock()
	for _, s := range shown.errs {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}

// --- 2. Job Identity ---

// fileFingerprint is path, size and modification time.
func fileFingerprint(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d-%d", path, info.Size(), info.ModTime().UnixNano()), nil
}

// GenerateJobID creates a deterministic hash for a swap job
// based on the path, size, and modification time of every input.
func GenerateJobID(paths ...string) (string, error) {
	h := sha256.New()
	for _, p := range paths {
		fp, err := fileFingerprint(p)
		if err != nil {
			return "", err
		}
		h.Write([]byte(fp))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
