package worker

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"strings"

	"github.com/andresmejia3/mouthswap/internal/landmarks"
	"github.com/andresmejia3/mouthswap/internal/types"
	"github.com/andresmejia3/mouthswap/internal/utils" // Using the SafeCommand wrapper
	"github.com/disintegration/imaging"
)

// Response status bytes written by the detector.
const (
	statusOK     = 0
	statusError  = 1
	statusNoFace = 2
)

var (
	// ErrNoFace is returned when the detector found no face in the frame.
	ErrNoFace = errors.New("no face detected")
	// ErrDetectorDied means the child stopped answering; the detector is unusable.
	ErrDetectorDied = errors.New("detector process died")
)

// Detector is an external landmark model running as a child process.
// Frames go in on stdin; answers come back on a side-channel pipe (FD 3) so
// that library chatter on the child's stdout cannot corrupt the protocol.
type Detector struct {
	ID       int
	Cmd      *utils.SafeCommand
	Stdin    io.WriteCloser
	DataPipe io.ReadCloser
}

// NewDetector starts command (for example "python3 -u landmarker.py") as
// detector number id.
func NewDetector(ctx context.Context, id int, command string) (*Detector, error) {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty detector command")
	}
	// 1. Initialize the SafeCommand we built
	proc := utils.NewSafeCommand(ctx, argv[0], argv[1:]...)

	// Create a side-channel pipe (FD 3) for clean data transfer
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	// Pass the write-end to the child process. It will appear as FD 3.
	proc.Cmd.ExtraFiles = []*os.File{w}

	stdin, err := proc.StdinPipe()
	if err != nil {
		w.Close() // Prevent FD leak
		r.Close() // Close read-end too!
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := proc.Start(); err != nil {
		w.Close() // Close write end if start fails
		r.Close() // Close read-end too!
		return nil, fmt.Errorf("detector %d failed to start: %w", id, err)
	}

	// Close the write-end in the parent so only the child holds it
	w.Close()

	return &Detector{
		ID:       id,
		Cmd:      proc,
		Stdin:    stdin,
		DataPipe: r,
	}, nil
}

// Communicate sends one length-prefixed message and reads one back.
func (d *Detector) Communicate(data []byte) ([]byte, error) {
	// Protocol: [Length][Data]
	if err := binary.Write(d.Stdin, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, err
	}
	if _, err := d.Stdin.Write(data); err != nil {
		return nil, err
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(d.DataPipe, header); err != nil {
		return nil, err // This is where we catch a crashed detector
	}

	respLen := binary.BigEndian.Uint32(header)
	respBody := make([]byte, respLen)
	_, err := io.ReadFull(d.DataPipe, respBody)
	return respBody, err
}

// Detect sends img as PNG and returns its 68-point landmarks. When the
// detector also reports a tracked (motion) detection, the two are merged with
// landmarks.Combine, or landmarks.CombineMesh when both are dense 478-point
// meshes. Meshes are reduced to 68 points.
func (d *Detector) Detect(img image.Image) (landmarks.Set, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestSpeed)); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	resp, err := d.Communicate(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetectorDied, err)
	}
	return parseResponse(resp)
}

// parseResponse decodes [Status] followed by a JSON body (OK) or
// [MsgLen][Msg] (error or no face).
func parseResponse(resp []byte) (landmarks.Set, error) {
	if len(resp) == 0 {
		return nil, fmt.Errorf("empty detector response")
	}
	status, body := resp[0], resp[1:]

	switch status {
	case statusOK:
		var res types.DetectResult
		if err := json.Unmarshal(body, &res); err != nil {
			return nil, fmt.Errorf("bad detector JSON: %w", err)
		}
		stillSet, motionSet := toSet(res.Points), toSet(res.Motion)
		if len(stillSet) == landmarks.MeshCount && len(motionSet) == landmarks.MeshCount {
			mesh, err := landmarks.CombineMesh(stillSet, motionSet)
			if err != nil {
				return nil, err
			}
			return landmarks.From478(mesh)
		}
		still, err := landmarks.Normalize(stillSet)
		if err != nil {
			return nil, err
		}
		if len(motionSet) == 0 {
			return still, nil
		}
		motion, err := landmarks.Normalize(motionSet)
		if err != nil {
			return nil, err
		}
		return landmarks.Combine(still, motion)
	case statusError, statusNoFace:
		msg, err := readMessage(body)
		if err != nil {
			return nil, err
		}
		if status == statusNoFace {
			return nil, fmt.Errorf("%w: %s", ErrNoFace, msg)
		}
		return nil, fmt.Errorf("detector error: %s", msg)
	default:
		return nil, fmt.Errorf("unknown detector status %d", status)
	}
}

func readMessage(body []byte) (string, error) {
	if len(body) < 4 {
		return "", fmt.Errorf("truncated detector message")
	}
	n := binary.BigEndian.Uint32(body[:4])
	if int(n) > len(body)-4 {
		return "", fmt.Errorf("truncated detector message")
	}
	return string(body[4 : 4+n]), nil
}

func toSet(pts [][2]float64) landmarks.Set {
	s := make(landmarks.Set, len(pts))
	for i, p := range pts {
		s[i] = landmarks.Point{X: p[0], Y: p[1]}
	}
	return s
}

// Close shuts the pipes and waits for the child to exit.
func (d *Detector) Close() {
	d.Stdin.Close()
	d.DataPipe.Close()
	if d.Cmd != nil {
		d.Cmd.Wait()
	}
}
