package landmarks

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Format names an on-disk encoding of a landmark stream.
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// ErrEmptyStream is returned when a stream decodes to zero frames.
var ErrEmptyStream = errors.New("landmark stream is empty")

// FormatForPath picks a stream format from the file extension. Detector output
// is JSON even when saved with a .txt extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".txt":
		return FormatJSON, nil
	case ".msgpack", ".mpk":
		return FormatMsgpack, nil
	default:
		return "", fmt.Errorf("unsupported landmark file extension %q", filepath.Ext(path))
	}
}

// ReadPoints parses a single set written as one "x y" pair per line.
func ReadPoints(r io.Reader) (Set, error) {
	var out Set
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: expected \"x y\", got %q", line, sc.Text())
		}
		x, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad x: %w", line, err)
		}
		y, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad y: %w", line, err)
		}
		out = append(out, Point{X: x, Y: y})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("no points found")
	}
	return out, nil
}

// WritePoints writes s in the format read by ReadPoints.
func WritePoints(w io.Writer, s Set) error {
	bw := bufio.NewWriter(w)
	for _, p := range s {
		fmt.Fprintf(bw, "%s %s\n", formatCoord(p.X), formatCoord(p.Y))
	}
	return bw.Flush()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// LoadPoints reads a single "x y" set from a file.
func LoadPoints(path string) (Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := ReadPoints(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// wire is the shared shape of both stream encodings: frames of [x, y] pairs.
type wire [][][2]float64

func toWire(frames []Set) wire {
	out := make(wire, len(frames))
	for i, s := range frames {
		out[i] = make([][2]float64, len(s))
		for j, p := range s {
			out[i][j] = [2]float64{p.X, p.Y}
		}
	}
	return out
}

func fromWire(w wire) []Set {
	out := make([]Set, len(w))
	for i, frame := range w {
		s := make(Set, len(frame))
		for j, xy := range frame {
			s[j] = Point{X: xy[0], Y: xy[1]}
		}
		out[i] = s
	}
	return out
}

// ReadStream decodes a per-frame landmark stream. Cardinality is not checked
// here; Filter rejects malformed frames when they are used.
func ReadStream(r io.Reader, f Format) ([]Set, error) {
	var w wire
	switch f {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&w); err != nil {
			return nil, fmt.Errorf("decode json landmarks: %w", err)
		}
	case FormatMsgpack:
		if err := msgpack.NewDecoder(r).Decode(&w); err != nil {
			return nil, fmt.Errorf("decode msgpack landmarks: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown landmark format %q", f)
	}
	if len(w) == 0 {
		return nil, ErrEmptyStream
	}
	return fromWire(w), nil
}

// WriteStream encodes frames in the given format.
func WriteStream(wr io.Writer, f Format, frames []Set) error {
	w := toWire(frames)
	switch f {
	case FormatJSON:
		return json.NewEncoder(wr).Encode(w)
	case FormatMsgpack:
		return msgpack.NewEncoder(wr).Encode(w)
	default:
		return fmt.Errorf("unknown landmark format %q", f)
	}
}

// LoadStream reads a stream file, choosing the format from its extension.
func LoadStream(path string) ([]Set, error) {
	f, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	frames, err := ReadStream(bufio.NewReader(file), f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return frames, nil
}

// SaveStream writes frames to path, choosing the format from its extension.
func SaveStream(path string, frames []Set) error {
	f, err := FormatForPath(path)
	if err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(file)
	if err := WriteStream(bw, f, frames); err != nil {
		file.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
