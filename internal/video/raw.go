package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
)

// framePool recycles RGBA pixel buffers to reduce GC pressure.
var framePool = sync.Pool{
	New: func() interface{} { return []byte(nil) },
}

// RawReader splits a stream of packed RGBA frames of a fixed size.
type RawReader struct {
	r      io.Reader
	width  int
	height int
}

// NewRawReader reads width x height RGBA frames from r.
func NewRawReader(r io.Reader, width, height int) *RawReader {
	return &RawReader{r: r, width: width, height: height}
}

// Next returns the next frame, or io.EOF once the stream ends. A trailing
// partial frame is treated as the end of the stream.
func (rr *RawReader) Next(ctx context.Context) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frameSize := rr.width * rr.height * 4
	buf := framePool.Get().([]byte)
	if cap(buf) < frameSize {
		buf = make([]byte, frameSize)
	}
	buf = buf[:frameSize]

	if _, err := io.ReadFull(rr.r, buf); err != nil {
		framePool.Put(buf[:0])
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	// Zero-Copy: Wrap the raw bytes in an image.RGBA struct
	return &image.RGBA{
		Pix:    buf,
		Stride: rr.width * 4,
		Rect:   image.Rect(0, 0, rr.width, rr.height),
	}, nil
}

// Recycle hands a frame's buffer back for reuse. The frame must not be used
// afterwards.
func (rr *RawReader) Recycle(img *image.RGBA) {
	if img != nil && len(img.Pix) == rr.width*rr.height*4 {
		framePool.Put(img.Pix[:0])
	}
}

// RawWriter packs frames of a fixed size into a stream.
type RawWriter struct {
	w      io.Writer
	width  int
	height int
}

// NewRawWriter writes width x height RGBA frames to w.
func NewRawWriter(w io.Writer, width, height int) *RawWriter {
	return &RawWriter{w: w, width: width, height: height}
}

// Write emits one frame. Frames with other dimensions are rejected.
func (rw *RawWriter) Write(img *image.RGBA) error {
	b := img.Bounds()
	if b.Dx() != rw.width || b.Dy() != rw.height {
		return fmt.Errorf("frame is %dx%d, stream is %dx%d", b.Dx(), b.Dy(), rw.width, rw.height)
	}
	rowLen := rw.width * 4
	if img.Stride == rowLen {
		off := img.PixOffset(b.Min.X, b.Min.Y)
		_, err := rw.w.Write(img.Pix[off : off+rowLen*rw.height])
		return err
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		if _, err := rw.w.Write(img.Pix[off : off+rowLen]); err != nil {
			return err
		}
	}
	return nil
}
