package cmd

import (
	"fmt"
	"os"

	"github.com/andresmejia3/mouthswap/internal/utils"
	"github.com/andresmejia3/mouthswap/internal/video"
	"github.com/spf13/cobra"
)

var (
	prepInput     string
	prepOutput    string
	prepMaxWidth  int
	prepMaxHeight int
	prepCRF       int
)

var prepCmd = &cobra.Command{
	Use:   "prep",
	Short: "Re-encode a clip without audio, optionally shrinking it, before landmark detection",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if err := checkInputFile(prepInput, "Input video"); err != nil {
			return err
		}
		if prepCRF < 0 || prepCRF > 51 {
			err := fmt.Errorf("must be between 0 and 51, got %d", prepCRF)
			utils.ShowError("Invalid CRF", err, nil)
			return err
		}
		opts := video.DefaultEncodeOptions()
		opts.CRF = prepCRF
		if err := video.StripAudio(cmd.Context(), prepInput, prepOutput, prepMaxWidth, prepMaxHeight, opts); err != nil {
			utils.ShowError("Failed to re-encode video", err, nil)
			return err
		}
		fmt.Fprintf(os.Stderr, "✅ Wrote %s\n", prepOutput)
		return nil
	},
}

func init() {
	prepCmd.Flags().StringVarP(&prepInput, "input", "i", "", "Path to video")
	prepCmd.Flags().StringVarP(&prepOutput, "output", "o", "prepped.mp4", "Output video")
	prepCmd.Flags().IntVar(&prepMaxWidth, "max-width", 0, "Scale down to at most this width (with --max-height)")
	prepCmd.Flags().IntVar(&prepMaxHeight, "max-height", 0, "Scale down to at most this height (with --max-width)")
	prepCmd.Flags().IntVar(&prepCRF, "crf", 23, "x264 constant rate factor")

	prepCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(prepCmd)
}
