package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/andresmejia3/mouthswap/internal/utils"
	"github.com/andresmejia3/mouthswap/internal/video"
	"github.com/spf13/cobra"
)

var (
	compareLeft   string
	compareRight  string
	compareOutput string
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Render two videos side by side for review",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runCompare(cmd.Context())
	},
}

func init() {
	compareCmd.Flags().StringVar(&compareLeft, "left", "", "Left video (usually the original)")
	compareCmd.Flags().StringVar(&compareRight, "right", "", "Right video (usually the swap)")
	compareCmd.Flags().StringVarP(&compareOutput, "output", "o", "compare.mp4", "Output video")

	compareCmd.MarkFlagRequired("left")
	compareCmd.MarkFlagRequired("right")
	rootCmd.AddCommand(compareCmd)
}

func runCompare(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := checkInputFile(compareLeft, "Left video"); err != nil {
		return err
	}
	if err := checkInputFile(compareRight, "Right video"); err != nil {
		return err
	}

	left, err := video.Probe(ctx, compareLeft)
	if err != nil {
		utils.ShowError("Failed to probe left video", err, nil)
		return err
	}
	right, err := video.Probe(ctx, compareRight)
	if err != nil {
		utils.ShowError("Failed to probe right video", err, nil)
		return err
	}

	leftDec, err := video.NewDecoder(ctx, compareLeft, left.Width, left.Height)
	if err != nil {
		utils.ShowError("Failed to start left decoder", err, nil)
		return err
	}
	defer leftDec.Close()
	rightDec, err := video.NewDecoder(ctx, compareRight, right.Width, right.Height)
	if err != nil {
		utils.ShowError("Failed to start right decoder", err, nil)
		return err
	}
	defer rightDec.Close()

	w, h := video.SideBySideSize(left.Bounds(), right.Bounds())
	encoder, err := video.NewEncoder(ctx, compareOutput, left.FPS, w, h, video.DefaultEncodeOptions())
	if err != nil {
		utils.ShowError("Failed to start encoder", err, nil)
		return err
	}

	total := min(left.Frames, right.Frames)
	bar := newProgressBar(total, "🎞️  Comparing")
	frames := 0
	for {
		l, err := leftDec.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			encoder.Close()
			utils.ShowError("Left decoder failed", err, leftDec.Cmd)
			return err
		}
		r, err := rightDec.Next(ctx)
		if errors.Is(err, io.EOF) {
			leftDec.Recycle(l)
			break
		}
		if err != nil {
			encoder.Close()
			utils.ShowError("Right decoder failed", err, rightDec.Cmd)
			return err
		}

		if err := encoder.Write(video.SideBySide(l, r)); err != nil {
			encoder.Close()
			utils.ShowError("Failed to write frame", err, encoder.Cmd)
			return err
		}
		leftDec.Recycle(l)
		rightDec.Recycle(r)
		bar.Add(1)
		frames++
	}
	bar.Finish()

	if err := encoder.Close(); err != nil {
		utils.ShowError("Encoder process failed", err, encoder.Cmd)
		return err
	}
	fmt.Fprintf(os.Stderr, "✅ Wrote %d frames to %s\n", frames, compareOutput)
	return nil
}
