package worker

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"image"
	"math"
	"testing"

	"github.com/andresmejia3/mouthswap/internal/landmarks"
	"github.com/andresmejia3/mouthswap/internal/types"
)

// MockCloser wraps a bytes.Buffer to satisfy io.ReadCloser and io.WriteCloser interfaces.
// This allows us to use in-memory buffers as if they were OS Pipes.
type MockCloser struct {
	*bytes.Buffer
}

func (m *MockCloser) Close() error { return nil }

func newMockDetector() (*Detector, *MockCloser, *MockCloser) {
	// stdinMock simulates the pipe TO the detector (we write to it)
	stdinMock := &MockCloser{Buffer: new(bytes.Buffer)}
	// dataPipeMock simulates the pipe FROM the detector (we read from it)
	dataPipeMock := &MockCloser{Buffer: new(bytes.Buffer)}
	// Cmd is nil because we aren't testing process management, just the protocol
	return &Detector{ID: 1, Stdin: stdinMock, DataPipe: dataPipeMock}, stdinMock, dataPipeMock
}

func writeResponse(pipe *MockCloser, payload []byte) {
	// Write the length header (Big Endian uint32)
	binary.Write(pipe, binary.BigEndian, uint32(len(payload)))
	// Write the body
	pipe.Write(payload)
}

func okPayload(t *testing.T, res types.DetectResult) []byte {
	t.Helper()
	body, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	return append([]byte{statusOK}, body...)
}

func msgPayload(status byte, msg string) []byte {
	payload := new(bytes.Buffer)
	payload.WriteByte(status)
	binary.Write(payload, binary.BigEndian, uint32(len(msg)))
	payload.WriteString(msg)
	return payload.Bytes()
}

func points(n int, base float64) [][2]float64 {
	pts := make([][2]float64, n)
	for i := range pts {
		pts[i] = [2]float64{base + float64(i), base + 0.5}
	}
	return pts
}

func TestCommunicate(t *testing.T) {
	d, stdinMock, dataPipeMock := newMockDetector()
	writeResponse(dataPipeMock, []byte{0xCA, 0xFE})

	inputFrame := []byte{0xDE, 0xAD, 0xBE, 0xEF} // Fake image bytes
	resp, err := d.Communicate(inputFrame)
	if err != nil {
		t.Fatalf("Communicate failed: %v", err)
	}

	// Verify Go sent the correct data TO the detector
	sentData := stdinMock.Bytes()
	// Expect 4 bytes header + 4 bytes data
	if len(sentData) != 4+len(inputFrame) {
		t.Errorf("Expected %d bytes sent, got %d", 4+len(inputFrame), len(sentData))
	}
	if binary.BigEndian.Uint32(sentData[:4]) != uint32(len(inputFrame)) {
		t.Errorf("Expected length header %d, got %d", len(inputFrame), binary.BigEndian.Uint32(sentData[:4]))
	}
	if !bytes.Equal(resp, []byte{0xCA, 0xFE}) {
		t.Errorf("Expected response CAFE, got %X", resp)
	}
}

func TestCommunicate_DetectorGone(t *testing.T) {
	d, _, _ := newMockDetector()
	// Empty data pipe simulates a crashed child
	if _, err := d.Communicate([]byte("frame")); err == nil {
		t.Fatal("Expected error from empty pipe, got nil")
	}
}

func TestDetect(t *testing.T) {
	d, stdinMock, dataPipeMock := newMockDetector()
	writeResponse(dataPipeMock, okPayload(t, types.DetectResult{Points: points(68, 10)}))

	marks, err := d.Detect(image.NewRGBA(image.Rect(0, 0, 8, 8)))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(marks) != landmarks.FullCount {
		t.Fatalf("Expected 68 points, got %d", len(marks))
	}
	// Use epsilon for float comparison
	if math.Abs(marks[3].X-13) > 1e-9 || math.Abs(marks[3].Y-10.5) > 1e-9 {
		t.Errorf("Expected point 3 at (13, 10.5), got %v", marks[3])
	}

	// The frame went out as a PNG
	sent := stdinMock.Bytes()
	if len(sent) < 12 || !bytes.Equal(sent[4:8], []byte{0x89, 'P', 'N', 'G'}) {
		t.Errorf("Expected PNG signature after length header, got %X", sent[:min(len(sent), 12)])
	}
}

func TestDetect_MeshAndMotion(t *testing.T) {
	d, _, dataPipeMock := newMockDetector()
	writeResponse(dataPipeMock, okPayload(t, types.DetectResult{
		Points: points(landmarks.MeshCount, 0),
		Motion: points(landmarks.FullCount, 1000),
	}))

	marks, err := d.Detect(image.NewRGBA(image.Rect(0, 0, 4, 4)))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	// Jaw comes from the motion set, mouth from the still mesh (vertex 61)
	if marks[0].X != 1000 {
		t.Errorf("Expected jaw from motion set, got %v", marks[0])
	}
	if marks[48].X != 61 {
		t.Errorf("Expected mouth corner from mesh vertex 61, got %v", marks[48])
	}
}

func TestDetect_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		noFace  bool
		message string
	}{
		{"error", msgPayload(statusError, "Python Exception: Import Error"), false, "detector error: Python Exception: Import Error"},
		{"no face", msgPayload(statusNoFace, "frame 12"), true, "no face detected: frame 12"},
		{"bad status", []byte{9}, false, "unknown detector status 9"},
		{"truncated", []byte{statusError, 0, 0}, false, "truncated detector message"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _, dataPipeMock := newMockDetector()
			writeResponse(dataPipeMock, tt.payload)

			_, err := d.Detect(image.NewRGBA(image.Rect(0, 0, 2, 2)))
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if errors.Is(err, ErrNoFace) != tt.noFace {
				t.Errorf("errors.Is(err, ErrNoFace) = %v, want %v", !tt.noFace, tt.noFace)
			}
			if err.Error() != tt.message {
				t.Errorf("Expected error message '%s', got '%v'", tt.message, err)
			}
		})
	}
}

func TestDetect_WrongCount(t *testing.T) {
	d, _, dataPipeMock := newMockDetector()
	writeResponse(dataPipeMock, okPayload(t, types.DetectResult{Points: points(12, 0)}))

	_, err := d.Detect(image.NewRGBA(image.Rect(0, 0, 2, 2)))
	if !errors.Is(err, landmarks.ErrInvalidCount) {
		t.Errorf("Expected ErrInvalidCount, got %v", err)
	}
}

func TestDetect_DetectorDied(t *testing.T) {
	d, _, _ := newMockDetector()
	_, err := d.Detect(image.NewRGBA(image.Rect(0, 0, 2, 2)))
	if !errors.Is(err, ErrDetectorDied) {
		t.Errorf("Expected ErrDetectorDied, got %v", err)
	}
}

func TestDetect_TwoMeshes(t *testing.T) {
	d, _, dataPipeMock := newMockDetector()
	writeResponse(dataPipeMock, okPayload(t, types.DetectResult{
		Points: points(landmarks.MeshCount, 0),
		Motion: points(landmarks.MeshCount, 1000),
	}))

	marks, err := d.Detect(image.NewRGBA(image.Rect(0, 0, 4, 4)))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(marks) != landmarks.FullCount {
		t.Fatalf("Expected 68 points, got %d", len(marks))
	}
	// Jaw vertex 127 from motion, left eye corner (vertex 33) and mouth corner (vertex 61) from still
	if marks[0].X != 1127 {
		t.Errorf("Expected jaw from motion mesh, got %v", marks[0])
	}
	if marks[36].X != 33 {
		t.Errorf("Expected eye corner from still mesh vertex 33, got %v", marks[36])
	}
	if marks[48].X != 61 {
		t.Errorf("Expected mouth corner from still mesh vertex 61, got %v", marks[48])
	}
}
