package faceswap

import (
	"errors"

	"github.com/andresmejia3/mouthswap/internal/landmarks"
)

// Per-frame failure kinds. All of them are local to one frame.
var (
	// ErrInvalidLandmarkCount rejects a landmark set that is not 68 points.
	ErrInvalidLandmarkCount = landmarks.ErrInvalidCount
	// ErrDegenerateGeometry means no convex hull or affine map exists for the points.
	ErrDegenerateGeometry = errors.New("degenerate geometry")
	// ErrTriangulationFailed means no triangle could be mapped back to hull points.
	ErrTriangulationFailed = errors.New("triangulation failed")
	// ErrEmptyBlendRegion means the hull mask covers no blendable pixels.
	ErrEmptyBlendRegion = errors.New("empty blend region")
)

// Stage names the pipeline step a FrameError came from.
type Stage string

const (
	StageFilter      Stage = "filter"
	StageHull        Stage = "hull"
	StageTriangulate Stage = "triangulate"
	StageWarp        Stage = "warp"
	StageComposite   Stage = "composite"
)

// FrameError wraps a failure kind with the stage that produced it.
type FrameError struct {
	Stage Stage
	Err   error
}

func (e *FrameError) Error() string {
	return string(e.Stage) + ": " + e.Err.Error()
}

func (e *FrameError) Unwrap() error { return e.Err }

func stageErr(s Stage, err error) error {
	if err == nil {
		return nil
	}
	return &FrameError{Stage: s, Err: err}
}

// Kind maps an error to a stable identifier for reports and the job ledger.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidLandmarkCount):
		return "invalid_landmark_count"
	case errors.Is(err, ErrDegenerateGeometry):
		return "degenerate_geometry"
	case errors.Is(err, ErrTriangulationFailed):
		return "triangulation_failed"
	case errors.Is(err, ErrEmptyBlendRegion):
		return "empty_blend_region"
	default:
		return "internal"
	}
}
