package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/andresmejia3/mouthswap/internal/utils"
)

// Decoder streams raw RGBA frames out of an ffmpeg child process.
type Decoder struct {
	*RawReader
	Cmd     *utils.SafeCommand
	out     io.ReadCloser
	drained bool
}

// NewDecoder starts ffmpeg decoding path into width x height RGBA frames.
func NewDecoder(ctx context.Context, path string, width, height int) (*Decoder, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	// Added -hide_banner and -loglevel error to prevent memory bloat in stderr buffer
	cmd := utils.NewSafeCommand(ctx, "ffmpeg", "-hide_banner", "-loglevel", "error",
		"-i", path, "-f", "rawvideo", "-pix_fmt", "rgba", "-")
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start decoder: %w", err)
	}
	return &Decoder{RawReader: NewRawReader(out, width, height), Cmd: cmd, out: out}, nil
}

// Next returns the next decoded frame, or io.EOF at the end of the stream.
func (d *Decoder) Next(ctx context.Context) (*image.RGBA, error) {
	img, err := d.RawReader.Next(ctx)
	if err == io.EOF {
		d.drained = true
	}
	return img, err
}

// Close stops reading and waits for ffmpeg. When the stream was not read to
// the end ffmpeg exits on a broken pipe, which is not reported as an error.
func (d *Decoder) Close() error {
	d.out.Close()
	err := d.Cmd.Wait()
	var exitErr *exec.ExitError
	if !d.drained && errors.As(err, &exitErr) {
		return nil
	}
	return err
}

// EncodeOptions selects the output codec settings.
type EncodeOptions struct {
	Codec  string
	Preset string
	CRF    int
	PixFmt string
}

// DefaultEncodeOptions is H.264 at CRF 23 with the medium preset.
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{Codec: "libx264", Preset: "medium", CRF: 23, PixFmt: "yuv420p"}
}

// Encoder feeds raw RGBA frames into an ffmpeg child process.
type Encoder struct {
	*RawWriter
	Cmd *utils.SafeCommand
	in  io.WriteCloser
}

func encoderArgs(path string, fps float64, width, height int, opts EncodeOptions) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error",
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", strconv.FormatFloat(fps, 'f', -1, 64),
		"-i", "-",
		"-c:v", opts.Codec,
	}
	if opts.Preset != "" {
		args = append(args, "-preset", opts.Preset)
	}
	if opts.CRF >= 0 {
		args = append(args, "-crf", strconv.Itoa(opts.CRF))
	}
	if opts.PixFmt != "" {
		args = append(args, "-pix_fmt", opts.PixFmt)
	}
	// 4:2:0 chroma needs even dimensions.
	if width%2 != 0 || height%2 != 0 {
		args = append(args, "-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2")
	}
	return append(args, path)
}

// NewEncoder starts ffmpeg writing width x height frames at fps to path.
func NewEncoder(ctx context.Context, path string, fps float64, width, height int, opts EncodeOptions) (*Encoder, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	cmd := utils.NewSafeCommand(ctx, "ffmpeg", encoderArgs(path, fps, width, height, opts)...)
	in, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start encoder: %w", err)
	}
	return &Encoder{RawWriter: NewRawWriter(in, width, height), Cmd: cmd, in: in}, nil
}

// Close flushes the input pipe and waits for ffmpeg to finish the file.
func (e *Encoder) Close() error {
	e.in.Close()
	return e.Cmd.Wait()
}

var (
	muxVideoExts = map[string]bool{".mp4": true, ".avi": true, ".mkv": true}
	muxAudioExts = map[string]bool{".mp3": true, ".wav": true}
)

// MuxAudio copies the video stream of videoPath and the audio of audioPath,
// re-encoded as AAC, into out.
func MuxAudio(ctx context.Context, videoPath, audioPath, out string) error {
	if !muxVideoExts[strings.ToLower(filepath.Ext(videoPath))] {
		return fmt.Errorf("invalid video format %q: supported formats are mp4, avi, mkv", filepath.Ext(videoPath))
	}
	if !muxAudioExts[strings.ToLower(filepath.Ext(audioPath))] {
		return fmt.Errorf("invalid audio format %q: supported formats are mp3, wav", filepath.Ext(audioPath))
	}
	cmd := utils.NewSafeCommand(ctx, "ffmpeg", "-y", "-hide_banner", "-loglevel", "error",
		"-i", videoPath, "-i", audioPath,
		"-map", "0:v:0", "-map", "1:a:0",
		"-c:v", "copy", "-c:a", "aac", "-b:a", "192k", "-shortest", out)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("mux failed: %w: %s", err, strings.TrimSpace(cmd.Stderr.String()))
	}
	return nil
}

// StripAudio re-encodes the video stream of in without audio. When maxWidth
// and maxHeight are set, larger inputs are scaled down to fit.
func StripAudio(ctx context.Context, in, out string, maxWidth, maxHeight int, opts EncodeOptions) error {
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", in, "-an", "-c:v", opts.Codec}
	if opts.Preset != "" {
		args = append(args, "-preset", opts.Preset)
	}
	if opts.CRF >= 0 {
		args = append(args, "-crf", strconv.Itoa(opts.CRF))
	}
	if opts.PixFmt != "" {
		args = append(args, "-pix_fmt", opts.PixFmt)
	}
	if maxWidth > 0 && maxHeight > 0 {
		args = append(args, "-vf", fmt.Sprintf(
			"scale='min(%d,iw)':'min(%d,ih)':force_original_aspect_ratio=decrease,pad=ceil(iw/2)*2:ceil(ih/2)*2",
			maxWidth, maxHeight))
	}
	cmd := utils.NewSafeCommand(ctx, "ffmpeg", append(args, out)...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("re-encode failed: %w: %s", err, strings.TrimSpace(cmd.Stderr.String()))
	}
	return nil
}

// ReadFrame decodes the frame with the given zero-based index.
func ReadFrame(ctx context.Context, path string, index int, info Info) (*image.RGBA, error) {
	if index < 0 {
		return nil, fmt.Errorf("frame index %d is negative", index)
	}
	cmd := utils.NewSafeCommand(ctx, "ffmpeg", "-hide_banner", "-loglevel", "error",
		"-i", path, "-vf", fmt.Sprintf("select=eq(n\\,%d)", index), "-vframes", "1",
		"-f", "rawvideo", "-pix_fmt", "rgba", "-")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("extract frame %d: %w: %s", index, err, strings.TrimSpace(cmd.Stderr.String()))
	}
	img, err := NewRawReader(bytes.NewReader(out), info.Width, info.Height).Next(ctx)
	if err == io.EOF {
		return nil, fmt.Errorf("frame %d not found in %s", index, path)
	}
	return img, err
}
