package types

import (
	"image"

	"github.com/andresmejia3/mouthswap/internal/landmarks"
)

// FrameTask is one synchronized frame pair sent to a swap worker.
type FrameTask struct {
	Index       int
	Dest        *image.RGBA
	Source      *image.RGBA
	DestMarks   landmarks.Set
	SourceMarks landmarks.Set
	// Carried is set when either landmark set was reused from an earlier frame.
	Carried bool
}

// FrameResult is a worker's answer for one FrameTask.
type FrameResult struct {
	Index  int
	Frame  *image.RGBA
	Status FrameStatus
}

// Frame outcomes recorded in FrameStatus.Status.
const (
	StatusSwapped     = "swapped"
	StatusPassThrough = "passthrough"
	StatusDropped     = "dropped"
)

// FrameStatus is the per-frame diagnostic row written to reports and the job ledger.
type FrameStatus struct {
	Index     int     `csv:"frame"`
	Status    string  `csv:"status"`
	Kind      string  `csv:"kind,omitempty"`
	Detail    string  `csv:"detail,omitempty"`
	Triangles int     `csv:"triangles"`
	Carried   bool    `csv:"carried"`
	ElapsedMS float64 `csv:"elapsed_ms"`
}

// DetectResult matches the JSON body the landmark detector returns on success.
// Motion is optional and holds a temporally tracked detection of the same frame.
type DetectResult struct {
	Points [][2]float64 `json:"points"`
	Motion [][2]float64 `json:"motion,omitempty"`
}

// ErrorResult captures the error object returned by the detector on failure
type ErrorResult struct {
	Error string `json:"error"`
}
