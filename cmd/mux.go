package cmd

import (
	"fmt"
	"os"

	"github.com/andresmejia3/mouthswap/internal/utils"
	"github.com/andresmejia3/mouthswap/internal/video"
	"github.com/spf13/cobra"
)

var (
	muxVideo  string
	muxAudio  string
	muxOutput string
)

var muxCmd = &cobra.Command{
	Use:   "mux",
	Short: "Replace the audio track of a video",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if err := checkInputFile(muxVideo, "Video file"); err != nil {
			return err
		}
		if err := checkInputFile(muxAudio, "Audio file"); err != nil {
			return err
		}
		if err := video.MuxAudio(cmd.Context(), muxVideo, muxAudio, muxOutput); err != nil {
			utils.ShowError("Failed to mux audio", err, nil)
			return err
		}
		fmt.Fprintf(os.Stderr, "✅ Wrote %s\n", muxOutput)
		return nil
	},
}

func init() {
	muxCmd.Flags().StringVar(&muxVideo, "video", "", "Video file (.mp4, .avi, .mkv)")
	muxCmd.Flags().StringVar(&muxAudio, "audio", "", "Audio file (.mp3, .wav)")
	muxCmd.Flags().StringVarP(&muxOutput, "output", "o", "muxed.mp4", "Output video")

	muxCmd.MarkFlagRequired("video")
	muxCmd.MarkFlagRequired("audio")
	rootCmd.AddCommand(muxCmd)
}
