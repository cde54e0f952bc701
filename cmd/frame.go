package cmd

import (
	"fmt"
	"os"

	"github.com/andresmejia3/mouthswap/internal/utils"
	"github.com/andresmejia3/mouthswap/internal/video"
	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
)

var (
	frameInput  string
	frameIndex  int
	frameOutput string
)

var frameCmd = &cobra.Command{
	Use:   "frame",
	Short: "Extract a single frame as an image, e.g. to inspect a failed swap",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		ctx := cmd.Context()

		if err := checkInputFile(frameInput, "Input video"); err != nil {
			return err
		}
		info, err := video.Probe(ctx, frameInput)
		if err != nil {
			utils.ShowError("Failed to probe video", err, nil)
			return err
		}
		if info.Frames > 0 && frameIndex >= info.Frames {
			err := fmt.Errorf("frame %d out of range, video has %d frames", frameIndex, info.Frames)
			utils.ShowError("Configuration Error", err, nil)
			return err
		}

		img, err := video.ReadFrame(ctx, frameInput, frameIndex, info)
		if err != nil {
			utils.ShowError("Failed to extract frame", err, nil)
			return err
		}
		if err := imaging.Save(img, frameOutput); err != nil {
			utils.ShowError("Failed to save frame", err, nil)
			return err
		}
		fmt.Fprintf(os.Stderr, "✅ Frame %d saved to %s\n", frameIndex, frameOutput)
		return nil
	},
}

func init() {
	frameCmd.Flags().StringVarP(&frameInput, "input", "i", "", "Path to video")
	frameCmd.Flags().IntVarP(&frameIndex, "index", "n", 0, "Zero-based frame index")
	frameCmd.Flags().StringVarP(&frameOutput, "output", "o", "frame.png", "Output image (.png or .jpg)")

	frameCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(frameCmd)
}
