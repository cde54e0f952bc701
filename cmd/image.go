package cmd

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresmejia3/mouthswap/internal/faceswap"
	"github.com/andresmejia3/mouthswap/internal/landmarks"
	"github.com/andresmejia3/mouthswap/internal/utils"
	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
	xdraw "golang.org/x/image/draw"
)

var imageOpts Options

var swapImageCmd = &cobra.Command{
	Use:   "swap-image",
	Short: "Swap the mouth region of one still image into another",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runSwapImage(imageOpts)
	},
}

func init() {
	swapImageCmd.Flags().StringVarP(&imageOpts.DestPath, "dest", "d", "", "Destination (face) image")
	swapImageCmd.Flags().StringVar(&imageOpts.DestLandmarksPath, "dest-landmarks", "", "Destination landmarks (\"x y\" per line, or a .json/.msgpack stream)")
	swapImageCmd.Flags().StringVarP(&imageOpts.SourcePath, "source", "s", "", "Source (mouth) image")
	swapImageCmd.Flags().StringVar(&imageOpts.SourceLandmarksPath, "source-landmarks", "", "Source landmarks (\"x y\" per line, or a .json/.msgpack stream)")
	swapImageCmd.Flags().StringVarP(&imageOpts.OutputPath, "output", "o", "swapped.png", "Output image")
	swapImageCmd.Flags().Float64Var(&imageOpts.Tolerance, "tolerance", 1.0, "Pixel tolerance when matching triangle vertices to hull points")
	swapImageCmd.Flags().IntVar(&imageOpts.FacetWorkers, "facet-workers", 1, "Goroutines resampling triangles")
	swapImageCmd.Flags().BoolVar(&imageOpts.ColorTransfer, "color-transfer", false, "Match the mouth region's colour to the destination before blending")
	swapImageCmd.Flags().BoolVar(&imageOpts.NoAntiAlias, "no-antialias", false, "Use hard triangle edges")

	swapImageCmd.MarkFlagRequired("dest")
	swapImageCmd.MarkFlagRequired("dest-landmarks")
	swapImageCmd.MarkFlagRequired("source")
	swapImageCmd.MarkFlagRequired("source-landmarks")
	rootCmd.AddCommand(swapImageCmd)
}

func runSwapImage(opts Options) error {
	for _, in := range []struct{ path, what string }{
		{opts.DestPath, "Destination image"},
		{opts.DestLandmarksPath, "Destination landmarks file"},
		{opts.SourcePath, "Source image"},
		{opts.SourceLandmarksPath, "Source landmarks file"},
	} {
		if err := checkInputFile(in.path, in.what); err != nil {
			return err
		}
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = 1.0
	}
	if opts.FacetWorkers < 1 {
		opts.FacetWorkers = 1
	}

	dst, err := openRGBA(opts.DestPath)
	if err != nil {
		utils.ShowError("Failed to open destination image", err, nil)
		return err
	}
	src, err := openRGBA(opts.SourcePath)
	if err != nil {
		utils.ShowError("Failed to open source image", err, nil)
		return err
	}
	dstMarks, err := loadImageMarks(opts.DestLandmarksPath)
	if err != nil {
		utils.ShowError("Failed to load destination landmarks", err, nil)
		return err
	}
	srcMarks, err := loadImageMarks(opts.SourceLandmarksPath)
	if err != nil {
		utils.ShowError("Failed to load source landmarks", err, nil)
		return err
	}

	res, err := faceswap.Swap(src, dst, srcMarks, dstMarks, engineOptions(opts))
	if err != nil {
		utils.ShowError(fmt.Sprintf("Swap failed (%s)", faceswap.Kind(err)), err, nil)
		return err
	}
	if err := imaging.Save(res.Frame, opts.OutputPath); err != nil {
		utils.ShowError("Failed to save output image", err, nil)
		return err
	}
	log.WithField("elapsed", res.Elapsed).Info("image swapped")
	fmt.Fprintf(os.Stderr, "✅ Swapped %d triangles into %s\n", res.Warped, opts.OutputPath)
	return nil
}

// openRGBA decodes an image file (EXIF orientation applied) into RGBA.
func openRGBA(path string) (*image.RGBA, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	return toRGBA(img), nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(out, out.Bounds(), img, b.Min, xdraw.Src)
	return out
}

// loadImageMarks reads the first frame of a .json/.msgpack stream, or an
// "x y" point list for any other extension.
func loadImageMarks(path string) (landmarks.Set, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".msgpack", ".mpk":
		frames, err := landmarks.LoadStream(path)
		if err != nil {
			return nil, err
		}
		return landmarks.Normalize(frames[0])
	default:
		s, err := landmarks.LoadPoints(path)
		if err != nil {
			return nil, err
		}
		return landmarks.Normalize(s)
	}
}
