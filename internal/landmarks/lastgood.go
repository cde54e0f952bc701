package landmarks

import "errors"

// ErrNoLandmarks marks a frame where no usable set was produced.
var ErrNoLandmarks = errors.New("no landmarks for frame")

// LastGood carries the most recent valid set of a stream forward, so a frame
// whose detection failed can reuse its predecessor. One value per stream; it is
// owned by whoever walks the stream in order and is not safe for concurrent use.
type LastGood struct {
	set   Set
	frame int
	ok    bool
}

// Resolve returns the set to use for frame. A valid 68-point set replaces the
// carried value and is returned as is. Otherwise the carried set is returned
// with carried=true, or the original error when nothing has been seen yet.
func (l *LastGood) Resolve(frame int, s Set, err error) (Set, bool, error) {
	if err == nil && len(s) == FullCount {
		l.set = s.Clone()
		l.frame = frame
		l.ok = true
		return s, false, nil
	}
	if err == nil {
		err = ErrInvalidCount
	}
	if !l.ok {
		return nil, false, err
	}
	return l.set.Clone(), true, nil
}

// Frame reports the index of the frame the carried set came from.
func (l *LastGood) Frame() (int, bool) {
	return l.frame, l.ok
}
