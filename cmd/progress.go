package cmd

import (
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// newProgressBar draws on stderr when it is a terminal. A total of zero or
// less switches to spinner mode.
func newProgressBar(total int, description string) *progressbar.ProgressBar {
	var w io.Writer = os.Stderr
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		w = io.Discard
	}
	barTotal := int64(total)
	if barTotal <= 0 {
		barTotal = -1 // Trigger spinner mode
	}
	return progressbar.NewOptions64(barTotal,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
	)
}
