package cmd

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresmejia3/mouthswap/internal/faceswap"
	"github.com/andresmejia3/mouthswap/internal/landmarks"
	"github.com/andresmejia3/mouthswap/internal/sequencer"
	"github.com/andresmejia3/mouthswap/internal/store"
	"github.com/andresmejia3/mouthswap/internal/types"
	"github.com/andresmejia3/mouthswap/internal/utils"
	"github.com/andresmejia3/mouthswap/internal/video"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var swapOpts Options

var swapCmd = &cobra.Command{
	Use:   "swap",
	Short: "Swap the mouth region of a source video into a destination video",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runSwap(cmd.Context(), swapOpts)
	},
}

func init() {
	swapCmd.Flags().StringVarP(&swapOpts.DestPath, "dest", "d", "", "Path to the destination (face) video")
	swapCmd.Flags().StringVar(&swapOpts.DestLandmarksPath, "dest-landmarks", "", "Per-frame landmarks of the destination video (.json or .msgpack)")
	swapCmd.Flags().StringVarP(&swapOpts.SourcePath, "source", "s", "", "Path to the source (mouth) video")
	swapCmd.Flags().StringVar(&swapOpts.SourceLandmarksPath, "source-landmarks", "", "Per-frame landmarks of the source video (.json or .msgpack)")
	swapCmd.Flags().StringVarP(&swapOpts.OutputPath, "output", "o", "swapped.mp4", "Path to output video")
	swapCmd.Flags().StringVar(&swapOpts.AudioPath, "audio", "", "Audio track (.mp3 or .wav) to mux into the output")
	swapCmd.Flags().StringVar(&swapOpts.ReportPath, "report", "", "Write a per-frame CSV report to this path")

	swapCmd.Flags().IntVarP(&swapOpts.NumEngines, "engines", "e", 1, "Number of frames swapped in parallel")
	swapCmd.Flags().IntVar(&swapOpts.FacetWorkers, "facet-workers", 1, "Goroutines resampling triangles within one frame")
	swapCmd.Flags().Float64Var(&swapOpts.FPS, "fps", 0, "Output frame rate (default: destination frame rate)")
	swapCmd.Flags().IntVar(&swapOpts.CRF, "crf", 23, "x264 constant rate factor")
	swapCmd.Flags().StringVar(&swapOpts.Preset, "preset", "medium", "x264 preset")
	swapCmd.Flags().StringVar(&swapOpts.OnFailure, "on-failure", "passthrough", "What to write for frames that cannot be swapped: passthrough, drop")
	swapCmd.Flags().Float64Var(&swapOpts.Tolerance, "tolerance", 1.0, "Pixel tolerance when matching triangle vertices to hull points")
	swapCmd.Flags().BoolVar(&swapOpts.ColorTransfer, "color-transfer", false, "Match the mouth region's colour to the destination before blending")
	swapCmd.Flags().BoolVar(&swapOpts.NoAntiAlias, "no-antialias", false, "Use hard triangle edges")

	swapCmd.MarkFlagRequired("dest")
	swapCmd.MarkFlagRequired("dest-landmarks")
	swapCmd.MarkFlagRequired("source")
	swapCmd.MarkFlagRequired("source-landmarks")
	rootCmd.AddCommand(swapCmd)
}

// engineOptions maps command flags onto the swap engine's options.
func engineOptions(opts Options) faceswap.Options {
	fo := faceswap.DefaultOptions()
	fo.Tolerance = opts.Tolerance
	fo.AntiAlias = !opts.NoAntiAlias
	fo.ColorTransfer = opts.ColorTransfer
	fo.Workers = opts.FacetWorkers
	return fo
}

func runSwap(ctx context.Context, opts Options) error {
	// Create a cancellable context to ensure all child processes (ffmpeg)
	// are killed immediately if this function returns early (e.g. on error).
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := validateSwapFlags(&opts); err != nil {
		return err
	}
	policy, _ := sequencer.ParsePolicy(opts.OnFailure)

	destMarks, err := landmarks.LoadStream(opts.DestLandmarksPath)
	if err != nil {
		utils.ShowError("Failed to load destination landmarks", err, nil)
		return err
	}
	sourceMarks, err := landmarks.LoadStream(opts.SourceLandmarksPath)
	if err != nil {
		utils.ShowError("Failed to load source landmarks", err, nil)
		return err
	}

	destInfo, err := video.Probe(ctx, opts.DestPath)
	if err != nil {
		utils.ShowError("Failed to probe destination video", err, nil)
		return err
	}
	sourceInfo, err := video.Probe(ctx, opts.SourcePath)
	if err != nil {
		utils.ShowError("Failed to probe source video", err, nil)
		return err
	}
	fps := opts.FPS
	if fps <= 0 {
		fps = destInfo.FPS
	}

	total := min(len(destMarks), len(sourceMarks))
	if destInfo.Frames > 0 {
		total = min(total, destInfo.Frames)
	}
	if sourceInfo.Frames > 0 {
		total = min(total, sourceInfo.Frames)
	}
	if len(destMarks) != len(sourceMarks) {
		log.WithFields(logrus.Fields{
			"dest":   len(destMarks),
			"source": len(sourceMarks),
		}).Warn("landmark streams differ in length, output is truncated to the shorter one")
	}

	jobID, err := utils.GenerateJobID(opts.DestPath, opts.SourcePath, opts.DestLandmarksPath, opts.SourceLandmarksPath)
	if err != nil {
		utils.ShowError("Failed to generate job ID", err, nil)
		return err
	}
	if DB != nil {
		if err := DB.StartJob(ctx, jobID, opts.DestPath, opts.SourcePath, opts.OutputPath); err != nil {
			utils.ShowError("Failed to register job", err, nil)
			return err
		}
	}
	fmt.Fprintf(os.Stderr, "📼 Processing Job ID: %s\n", jobID[:12])
	fmt.Fprintf(os.Stderr, "⚙️  Spawning %d Swap Engines...\n", opts.NumEngines)

	destDec, err := video.NewDecoder(ctx, opts.DestPath, destInfo.Width, destInfo.Height)
	if err != nil {
		utils.ShowError("Failed to start destination decoder", err, nil)
		return err
	}
	defer destDec.Close()
	sourceDec, err := video.NewDecoder(ctx, opts.SourcePath, sourceInfo.Width, sourceInfo.Height)
	if err != nil {
		utils.ShowError("Failed to start source decoder", err, nil)
		return err
	}
	defer sourceDec.Close()

	// With an audio track the video is encoded next to the output first.
	encodePath := opts.OutputPath
	if opts.AudioPath != "" {
		encodePath = strings.TrimSuffix(opts.OutputPath, filepath.Ext(opts.OutputPath)) + ".noaudio" + filepath.Ext(opts.OutputPath)
		defer os.Remove(encodePath)
	}
	encOpts := video.DefaultEncodeOptions()
	encOpts.CRF = opts.CRF
	encOpts.Preset = opts.Preset
	encoder, err := video.NewEncoder(ctx, encodePath, fps, destInfo.Width, destInfo.Height, encOpts)
	if err != nil {
		utils.ShowError("Failed to start encoder", err, nil)
		return err
	}

	bar := newProgressBar(total, "👄 Swapping")
	fo := engineOptions(opts)

	report, err := sequencer.Run(ctx, sequencer.Config{
		Engines:     opts.NumEngines,
		Dest:        destDec,
		Source:      sourceDec,
		DestMarks:   destMarks[:total],
		SourceMarks: sourceMarks[:total],
		Sink:        encoder,
		Swap: func(src, dst *image.RGBA, sm, dm landmarks.Set) (*faceswap.Result, error) {
			return faceswap.Swap(src, dst, sm, dm, fo)
		},
		OnFailure: policy,
		Logger:    log,
		OnFrame:   func(types.FrameStatus) { bar.Add(1) },
	})
	bar.Finish()
	if err != nil {
		encoder.Close()
		utils.ShowError("Swap failed", err, nil)
		return err
	}

	if err := encoder.Close(); err != nil {
		utils.ShowError("Encoder process failed", err, encoder.Cmd)
		return err
	}

	if opts.AudioPath != "" {
		if err := video.MuxAudio(ctx, encodePath, opts.AudioPath, opts.OutputPath); err != nil {
			utils.ShowError("Failed to add audio track", err, nil)
			return err
		}
	}

	if opts.ReportPath != "" {
		if err := writeReport(opts.ReportPath, report); err != nil {
			utils.ShowError("Failed to write report", err, nil)
			return err
		}
	}

	if DB != nil {
		if err := recordJob(ctx, DB, jobID, report); err != nil {
			utils.ShowError("Failed to record job", err, nil)
			return err
		}
	}

	fmt.Fprintf(os.Stderr, "✅ %d frames written: %d swapped, %d passed through, %d dropped (%d with carried landmarks)\n",
		report.Frames-report.Dropped, report.Swapped, report.PassedThrough, report.Dropped, report.Carried)
	return nil
}

func writeReport(path string, report *sequencer.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// recordJob stores the failures and totals of a finished run.
func recordJob(ctx context.Context, db *store.Store, jobID string, report *sequencer.Report) error {
	if err := db.RecordFailures(ctx, jobID, report.Failures()); err != nil {
		return err
	}
	return db.FinishJob(ctx, jobID, store.Totals{
		Frames:        report.Frames,
		Swapped:       report.Swapped,
		PassedThrough: report.PassedThrough,
		Dropped:       report.Dropped,
	})
}

// checkInputFile reports a missing or directory input through ShowError.
func checkInputFile(path, what string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			utils.ShowError(what+" does not exist", err, nil)
			return err
		}
		utils.ShowError("Unable to access "+strings.ToLower(what), err, nil)
		return err
	}
	if info.IsDir() {
		err := fmt.Errorf("is a directory")
		utils.ShowError(what+" is a directory, expected a file", err, nil)
		return err
	}
	return nil
}

func validateSwapFlags(opts *Options) error {
	inputs := []struct{ path, what string }{
		{opts.DestPath, "Destination video"},
		{opts.DestLandmarksPath, "Destination landmarks file"},
		{opts.SourcePath, "Source video"},
		{opts.SourceLandmarksPath, "Source landmarks file"},
	}
	for _, in := range inputs {
		if err := checkInputFile(in.path, in.what); err != nil {
			return err
		}
	}
	if opts.AudioPath != "" {
		if err := checkInputFile(opts.AudioPath, "Audio file"); err != nil {
			return err
		}
	}

	for _, path := range []string{opts.DestLandmarksPath, opts.SourceLandmarksPath} {
		if _, err := landmarks.FormatForPath(path); err != nil {
			utils.ShowError("Configuration Error", err, nil)
			return err
		}
	}

	// Safety Check: Prevent overwriting an input file which causes corruption
	outAbs, _ := filepath.Abs(opts.OutputPath)
	for _, in := range []string{opts.DestPath, opts.SourcePath} {
		inAbs, _ := filepath.Abs(in)
		if inAbs == outAbs {
			err := fmt.Errorf("input and output paths must be different to prevent file corruption")
			utils.ShowError("Configuration Error", err, nil)
			return err
		}
	}

	if _, err := sequencer.ParsePolicy(opts.OnFailure); err != nil {
		utils.ShowError("Configuration Error", err, nil)
		return err
	}

	if opts.NumEngines < 1 {
		opts.NumEngines = 1
	}
	if opts.FacetWorkers < 1 {
		opts.FacetWorkers = 1
	}

	if opts.Tolerance <= 0 {
		err := fmt.Errorf("must be positive, got %f", opts.Tolerance)
		utils.ShowError("Invalid tolerance", err, nil)
		return err
	}

	if opts.CRF < 0 || opts.CRF > 51 {
		err := fmt.Errorf("must be between 0 and 51, got %d", opts.CRF)
		utils.ShowError("Invalid CRF", err, nil)
		return err
	}

	if opts.FPS < 0 {
		err := fmt.Errorf("must not be negative, got %f", opts.FPS)
		utils.ShowError("Invalid frame rate", err, nil)
		return err
	}

	return nil
}
