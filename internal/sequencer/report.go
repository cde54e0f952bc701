package sequencer

import (
	"encoding/csv"
	"io"

	"github.com/andresmejia3/mouthswap/internal/types"
	"github.com/jszwec/csvutil"
)

// WriteCSV writes one row per frame, header included even for empty runs.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if err := enc.EncodeHeader(types.FrameStatus{}); err != nil {
		return err
	}
	for _, s := range r.Statuses {
		if err := enc.Encode(s); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV loads a report written by WriteCSV.
func ReadCSV(rd io.Reader) (*Report, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(rd))
	if err != nil {
		if err == io.EOF {
			return &Report{}, nil
		}
		return nil, err
	}
	report := &Report{}
	for {
		var s types.FrameStatus
		if err := dec.Decode(&s); err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		report.add(s)
	}
	return report, nil
}
