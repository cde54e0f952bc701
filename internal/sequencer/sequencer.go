// Package sequencer drives the swap engine over two synchronized frame
// streams. Frames are swapped in parallel and written strictly in order; a
// frame that cannot be swapped never stops the stream.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"github.com/andresmejia3/mouthswap/internal/faceswap"
	"github.com/andresmejia3/mouthswap/internal/landmarks"
	"github.com/andresmejia3/mouthswap/internal/types"
	"github.com/sirupsen/logrus"
)

// FrameSource yields frames in order and io.EOF after the last one.
type FrameSource interface {
	Next(ctx context.Context) (*image.RGBA, error)
}

// FrameSink accepts output frames in order.
type FrameSink interface {
	Write(img *image.RGBA) error
}

// recycler is implemented by sources that pool their frame buffers.
type recycler interface {
	Recycle(img *image.RGBA)
}

// SwapFunc produces the output frame for one pair. It must always return a
// non-nil Result whose Frame does not alias either input.
type SwapFunc func(src, dst *image.RGBA, srcMarks, dstMarks landmarks.Set) (*faceswap.Result, error)

// FailurePolicy decides what is written for a frame that could not be swapped.
type FailurePolicy string

const (
	// PassThrough writes the unmodified destination frame.
	PassThrough FailurePolicy = "passthrough"
	// Drop writes nothing for the frame.
	Drop FailurePolicy = "drop"
)

// ParsePolicy validates a policy name from the command line.
func ParsePolicy(s string) (FailurePolicy, error) {
	switch p := FailurePolicy(s); p {
	case PassThrough, Drop:
		return p, nil
	default:
		return "", fmt.Errorf("invalid failure policy '%s'. Must be 'passthrough' or 'drop'", s)
	}
}

// Config wires one run.
type Config struct {
	// Engines is the number of frames swapped concurrently.
	Engines int

	Dest        FrameSource
	Source      FrameSource
	DestMarks   []landmarks.Set
	SourceMarks []landmarks.Set
	Sink        FrameSink

	// Swap defaults to faceswap.Swap with faceswap.DefaultOptions.
	Swap      SwapFunc
	OnFailure FailurePolicy
	Logger    logrus.FieldLogger
	// OnFrame is called after each frame is handled, in frame order.
	OnFrame func(types.FrameStatus)
}

// Report summarizes a run.
type Report struct {
	Frames        int
	Swapped       int
	PassedThrough int
	Dropped       int
	Carried       int
	Statuses      []types.FrameStatus
}

// Failures returns the statuses of frames that were not swapped.
func (r *Report) Failures() []types.FrameStatus {
	var out []types.FrameStatus
	for _, s := range r.Statuses {
		if s.Status != types.StatusSwapped {
			out = append(out, s)
		}
	}
	return out
}

func (r *Report) add(s types.FrameStatus) {
	r.Frames++
	switch s.Status {
	case types.StatusSwapped:
		r.Swapped++
	case types.StatusPassThrough:
		r.PassedThrough++
	case types.StatusDropped:
		r.Dropped++
	}
	if s.Carried {
		r.Carried++
	}
	r.Statuses = append(r.Statuses, s)
}

// Run swaps min(len(DestMarks), len(SourceMarks)) frames, or fewer if a
// frame source ends first, and writes them to Sink in order.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	if cfg.Dest == nil || cfg.Source == nil || cfg.Sink == nil {
		return nil, errors.New("sequencer: dest, source and sink are required")
	}
	if cfg.Engines < 1 {
		cfg.Engines = 1
	}
	if cfg.Swap == nil {
		opts := faceswap.DefaultOptions()
		cfg.Swap = func(src, dst *image.RGBA, sm, dm landmarks.Set) (*faceswap.Result, error) {
			return faceswap.Swap(src, dst, sm, dm, opts)
		}
	}
	if cfg.OnFailure == "" {
		cfg.OnFailure = PassThrough
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	// Create a cancellable context so the reader and workers stop as soon
	// as this function returns early.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	total := min(len(cfg.DestMarks), len(cfg.SourceMarks))

	taskChan := make(chan types.FrameTask, cfg.Engines)
	resultsChan := make(chan types.FrameResult, cfg.Engines*2)
	errChan := make(chan error, 1)

	go readPairs(ctx, cfg, total, taskChan, errChan)

	var wg sync.WaitGroup
	for i := 0; i < cfg.Engines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskChan {
				res := swapOne(cfg, task)
				select {
				case resultsChan <- res:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	report := &Report{}
	buffer := make(map[int]types.FrameResult)
	nextFrame := 0

	for {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		case err := <-errChan:
			return report, err
		case res, ok := <-resultsChan:
			if !ok {
				// The reader may have failed after the last result.
				select {
				case err := <-errChan:
					return report, err
				default:
				}
				return report, ctx.Err()
			}
			buffer[res.Index] = res

			for {
				frame, ok := buffer[nextFrame]
				if !ok {
					break
				}
				delete(buffer, nextFrame)

				if frame.Frame != nil {
					if err := cfg.Sink.Write(frame.Frame); err != nil {
						return report, fmt.Errorf("write frame %d: %w", frame.Index, err)
					}
				}
				report.add(frame.Status)
				if cfg.OnFrame != nil {
					cfg.OnFrame(frame.Status)
				}
				nextFrame++
			}
		}
	}
}

// readPairs pulls frames from both sources in lockstep, resolves landmarks
// with a carried-forward fallback per stream, and feeds the workers.
func readPairs(ctx context.Context, cfg Config, total int, taskChan chan<- types.FrameTask, errChan chan<- error) {
	defer close(taskChan)
	fail := func(err error) {
		select {
		case errChan <- err:
		default:
		}
	}

	var destGood, srcGood landmarks.LastGood
	for idx := 0; idx < total; idx++ {
		dst, err := cfg.Dest.Next(ctx)
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			fail(fmt.Errorf("read destination frame %d: %w", idx, err))
			return
		}
		src, err := cfg.Source.Next(ctx)
		if errors.Is(err, io.EOF) {
			recycle(cfg.Dest, dst)
			return
		}
		if err != nil {
			fail(fmt.Errorf("read source frame %d: %w", idx, err))
			return
		}

		dm, dCarried := resolve(&destGood, idx, cfg.DestMarks[idx])
		sm, sCarried := resolve(&srcGood, idx, cfg.SourceMarks[idx])
		if dCarried || sCarried {
			cfg.Logger.WithFields(logrus.Fields{
				"frame":  idx,
				"dest":   dCarried,
				"source": sCarried,
			}).Debug("using last good landmarks")
		}

		task := types.FrameTask{
			Index:       idx,
			Dest:        dst,
			Source:      src,
			DestMarks:   dm,
			SourceMarks: sm,
			Carried:     dCarried || sCarried,
		}
		select {
		case taskChan <- task:
		case <-ctx.Done():
			return
		}
	}
}

// resolve returns the set itself when it is usable, the carried set when it
// is not, and the unusable set when nothing has been carried yet so the swap
// reports the failure for that frame.
func resolve(lg *landmarks.LastGood, idx int, s landmarks.Set) (landmarks.Set, bool) {
	got, carried, err := lg.Resolve(idx, s, nil)
	if err != nil {
		return s, false
	}
	return got, carried
}

func swapOne(cfg Config, task types.FrameTask) types.FrameResult {
	start := time.Now()
	res, err := cfg.Swap(task.Source, task.Dest, task.SourceMarks, task.DestMarks)

	status := types.FrameStatus{
		Index:   task.Index,
		Status:  types.StatusSwapped,
		Carried: task.Carried,
	}
	out := types.FrameResult{Index: task.Index}
	if res != nil {
		status.Triangles = len(res.Triangles)
		out.Frame = res.Frame
	}

	if err != nil {
		status.Kind = faceswap.Kind(err)
		status.Detail = err.Error()
		status.Status = types.StatusPassThrough
		if cfg.OnFailure == Drop {
			status.Status = types.StatusDropped
			out.Frame = nil
		}
		cfg.Logger.WithFields(logrus.Fields{
			"frame":  task.Index,
			"kind":   status.Kind,
			"policy": string(cfg.OnFailure),
		}).Warnf("frame not swapped: %v", err)
	}
	status.ElapsedMS = float64(time.Since(start).Microseconds()) / 1000
	out.Status = status

	recycle(cfg.Dest, task.Dest)
	recycle(cfg.Source, task.Source)
	return out
}

func recycle(src FrameSource, img *image.RGBA) {
	if r, ok := src.(recycler); ok {
		r.Recycle(img)
	}
}
