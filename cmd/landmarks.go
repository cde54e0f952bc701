package cmd

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"sync"

	"github.com/andresmejia3/mouthswap/internal/landmarks"
	"github.com/andresmejia3/mouthswap/internal/utils"
	"github.com/andresmejia3/mouthswap/internal/video"
	"github.com/andresmejia3/mouthswap/internal/worker"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	landmarksInput    string
	landmarksOutput   string
	landmarksDetector string
	landmarksEngines  int
	landmarksCarry    bool
	landmarksLayout   string
)

var landmarksCmd = &cobra.Command{
	Use:   "landmarks",
	Short: "Detect per-frame 68-point landmarks with an external detector",
	Long: `Runs a detector process per engine and streams every frame of the input
to it. The detector reads length-prefixed PNG frames on stdin and answers on
file descriptor 3. Frames without a face are stored as empty sets unless
--carry is given, in which case the last good set is repeated.

--layout half, half-mask and homo write the lower-face outline, its inset
blend mask, or the homography anchors instead of the 68 points, rounded to
whole pixels.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runLandmarks(cmd.Context())
	},
}

func init() {
	landmarksCmd.Flags().StringVarP(&landmarksInput, "input", "i", "", "Path to video")
	landmarksCmd.Flags().StringVarP(&landmarksOutput, "output", "o", "", "Landmark stream to write (.json or .msgpack)")
	landmarksCmd.Flags().StringVar(&landmarksDetector, "detector", "python3 -u landmarker.py", "Detector command line")
	landmarksCmd.Flags().IntVarP(&landmarksEngines, "engines", "e", 1, "Number of detector processes")
	landmarksCmd.Flags().BoolVar(&landmarksCarry, "carry", false, "Fill frames without a face with the last good set")
	landmarksCmd.Flags().StringVar(&landmarksLayout, "layout", string(landmarks.LayoutFull), "Output layout: full, half, half-mask or homo")

	landmarksCmd.MarkFlagRequired("input")
	landmarksCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(landmarksCmd)
}

type detectTask struct {
	Index int
	Frame *image.RGBA
}

type detectResult struct {
	Index int
	Set   landmarks.Set
	Err   error
}

func runLandmarks(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := checkInputFile(landmarksInput, "Input video"); err != nil {
		return err
	}
	if _, err := landmarks.FormatForPath(landmarksOutput); err != nil {
		utils.ShowError("Configuration Error", err, nil)
		return err
	}
	layout, err := landmarks.ParseLayout(landmarksLayout)
	if err != nil {
		utils.ShowError("Configuration Error", err, nil)
		return err
	}
	if landmarksEngines < 1 {
		landmarksEngines = 1
	}

	info, err := video.Probe(ctx, landmarksInput)
	if err != nil {
		utils.ShowError("Failed to probe video", err, nil)
		return err
	}

	taskChan := make(chan detectTask, landmarksEngines)
	resultsChan := make(chan detectResult, landmarksEngines*2)
	errChan := make(chan error, landmarksEngines+2)
	readyChan := make(chan bool, landmarksEngines)

	decoder, err := video.NewDecoder(ctx, landmarksInput, info.Width, info.Height)
	if err != nil {
		utils.ShowError("Failed to start decoder", err, nil)
		return err
	}
	defer decoder.Close()

	var wg sync.WaitGroup
	for i := 0; i < landmarksEngines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			d, err := worker.NewDetector(ctx, id, landmarksDetector)
			if err != nil {
				utils.ShowError("Detector startup failed", err, nil)
				select {
				case errChan <- err:
				default:
				}
				return
			}
			defer d.Close()
			readyChan <- true

			for task := range taskChan {
				set, err := d.Detect(task.Frame)
				decoder.Recycle(task.Frame)
				if errors.Is(err, worker.ErrDetectorDied) {
					utils.ShowError("Detector crashed", err, d.Cmd)
					select {
					case errChan <- err:
					default:
					}
					return
				}
				select {
				case resultsChan <- detectResult{Index: task.Index, Set: set, Err: err}:
				case <-ctx.Done():
					return
				}
			}
		}(i)
	}

	// Wait for detectors to be ready
	fmt.Fprintln(os.Stderr, "🚀 Warming up detectors...")
	for i := 0; i < landmarksEngines; i++ {
		select {
		case <-readyChan:
		case err := <-errChan:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	go func() {
		defer close(taskChan)
		for idx := 0; ; idx++ {
			frame, err := decoder.Next(ctx)
			if err == io.EOF {
				return
			}
			if err != nil {
				select {
				case errChan <- fmt.Errorf("decode frame %d: %w", idx, err):
				default:
				}
				return
			}
			select {
			case taskChan <- detectTask{Index: idx, Frame: frame}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	bar := newProgressBar(info.Frames, "🔍 Detecting")
	results := make(map[int]detectResult)

	for done := false; !done; {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errChan:
			return err
		case res, ok := <-resultsChan:
			if !ok {
				done = true
				break
			}
			results[res.Index] = res
			bar.Add(1)
		}
	}
	bar.Finish()

	// A detector or decoder failure can land after the last result.
	select {
	case err := <-errChan:
		return err
	default:
	}

	frames, missing := assembleStream(results, landmarksCarry, log)
	if len(frames) == 0 {
		err := fmt.Errorf("no frames decoded from %s", landmarksInput)
		utils.ShowError("Landmark detection failed", err, nil)
		return err
	}
	if frames, err = applyLayout(frames, layout); err != nil {
		utils.ShowError("Failed to convert landmarks", err, nil)
		return err
	}
	if err := landmarks.SaveStream(landmarksOutput, frames); err != nil {
		utils.ShowError("Failed to write landmark stream", err, nil)
		return err
	}
	fmt.Fprintf(os.Stderr, "✅ Wrote %d frames to %s (%d without a face)\n", len(frames), landmarksOutput, missing)
	return nil
}

// assembleStream orders detection results by frame. Frames whose detection
// failed are empty, or carry the last good set when carry is true. It returns
// the stream and the number of failed frames.
func assembleStream(results map[int]detectResult, carry bool, logger logrus.FieldLogger) ([]landmarks.Set, int) {
	frames := make([]landmarks.Set, len(results))
	missing := 0
	var last landmarks.LastGood
	for i := range frames {
		res, ok := results[i]
		if !ok {
			// Results are contiguous from zero; a gap means the run was cut short.
			return frames[:i], missing
		}
		if res.Err != nil {
			missing++
			logger.WithFields(logrus.Fields{"frame": i}).Debugf("no landmarks: %v", res.Err)
		}
		if !carry {
			if res.Err == nil {
				frames[i] = res.Set
			} else {
				frames[i] = landmarks.Set{}
			}
			continue
		}
		set, _, err := last.Resolve(i, res.Set, res.Err)
		if err != nil {
			set = landmarks.Set{}
		}
		frames[i] = set
	}
	return frames, missing
}

// applyLayout converts every frame of the stream to layout.
func applyLayout(frames []landmarks.Set, layout landmarks.Layout) ([]landmarks.Set, error) {
	out := make([]landmarks.Set, len(frames))
	for i, set := range frames {
		converted, err := layout.Apply(set)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		out[i] = converted
	}
	return out, nil
}
