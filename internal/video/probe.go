// Package video moves raw RGBA frames in and out of ffmpeg and wraps the
// ffprobe and ffmpeg invocations the swap pipeline needs.
package video

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/andresmejia3/mouthswap/internal/utils"
)

// Info describes the first video stream of a file.
type Info struct {
	Width  int
	Height int
	FPS    float64
	// Frames is 0 when the container does not record a count.
	Frames int
}

// Bounds is the frame rectangle at the origin.
func (i Info) Bounds() image.Rectangle {
	return image.Rect(0, 0, i.Width, i.Height)
}

// Helper struct for structured JSON parsing
type ffprobeOutput struct {
	Streams []struct {
		Width         int    `json:"width"`
		Height        int    `json:"height"`
		RFrameRate    string `json:"r_frame_rate"`
		AvgFrameRate  string `json:"avg_frame_rate"`
		NbFrames      string `json:"nb_frames"`
		NbReadPackets string `json:"nb_read_packets"`
	} `json:"streams"`
}

// Probe reads dimensions, frame rate and frame count with ffprobe.
func Probe(ctx context.Context, path string) (Info, error) {
	// 0. Check dependency
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return Info{}, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	cmd := utils.NewSafeCommand(ctx, "ffprobe", "-v", "error", "-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,avg_frame_rate,nb_frames", "-of", "json", path)
	out, err := cmd.Output()
	if err != nil {
		return Info{}, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(cmd.Stderr.String()))
	}
	info, err := parseProbe(out)
	if err != nil {
		return Info{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	if info.Frames == 0 {
		info.Frames = CountFrames(ctx, path)
	}
	return info, nil
}

func parseProbe(out []byte) (Info, error) {
	var res ffprobeOutput
	if err := json.Unmarshal(out, &res); err != nil {
		return Info{}, fmt.Errorf("parse JSON: %w", err)
	}
	if len(res.Streams) == 0 {
		return Info{}, fmt.Errorf("no video stream")
	}
	s := res.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return Info{}, fmt.Errorf("invalid dimensions %dx%d", s.Width, s.Height)
	}

	// Prefer the average rate; r_frame_rate is the timebase guess and can be
	// wildly high for variable frame rate files.
	fps, err := parseRate(s.AvgFrameRate)
	if err != nil || fps <= 0 {
		fps, err = parseRate(s.RFrameRate)
		if err != nil {
			return Info{}, fmt.Errorf("frame rate: %w", err)
		}
	}

	frames, _ := strconv.Atoi(s.NbFrames)
	return Info{Width: s.Width, Height: s.Height, FPS: fps, Frames: frames}, nil
}

// parseRate reads ffprobe rates such as "30000/1001" or "25".
func parseRate(s string) (float64, error) {
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("bad rate %q", s)
	}
	if !found {
		return n, nil
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0, fmt.Errorf("bad rate %q", s)
	}
	return n / d, nil
}

// CountFrames counts packets of the first video stream. It is slow on long
// files and returns 0 on failure, letting callers fall back to a spinner.
func CountFrames(ctx context.Context, path string) int {
	fmt.Fprintf(os.Stderr, "⏳ Metadata missing. Counting frames (this may take a moment)...\n")
	cmd := utils.NewSafeCommand(ctx, "ffprobe", "-v", "error", "-select_streams", "v:0", "-count_packets",
		"-show_entries", "stream=nb_read_packets", "-of", "json", path)
	out, err := cmd.Output()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ffprobe failed: %v\n", err)
		return 0
	}

	var res ffprobeOutput
	if err := json.Unmarshal(out, &res); err != nil || len(res.Streams) == 0 {
		return 0
	}
	count, err := strconv.Atoi(res.Streams[0].NbReadPackets)
	if err != nil {
		return 0
	}
	return count
}
