package ai

import (
	"errors"
	"image"
)

// ErrRecorderFinalized is returned when recording into a finalized recorder
var ErrRecorderFinalized = errors.New("frame recorder already finalized")

// Frame is the best-of-population raster after one generation. The initial
// random population has Generation -1.
type Frame struct {
	Generation int
	Image      *image.RGBA
}

// FrameRecorder keeps an ordered history of frames. Generation g is kept when
// g%every == 0 or g is the last generation, so the final raster is always
// part of the history.
type FrameRecorder struct {
	generations int
	every       int
	frames      []Frame
	finalized   bool
}

// NewFrameRecorder creates a recorder for a run of the given length. every
// values below 1 record every generation.
func NewFrameRecorder(generations, every int) *FrameRecorder {
	every = max(every, 1)
	return &FrameRecorder{
		generations: generations,
		every:       every,
		frames:      make([]Frame, 0, ExpectedFrames(generations, every)),
	}
}

// ExpectedFrames is the number of frames a recorder keeps for a full run
func ExpectedFrames(generations, every int) int {
	if generations <= 0 {
		return 0
	}
	every = max(every, 1)
	n := (generations-1)/every + 1
	if (generations-1)%every != 0 {
		n++
	}
	return n
}

// Keeps reports whether generation g belongs to the sampled history
func (r *FrameRecorder) Keeps(g int) bool {
	return g >= 0 && (g%r.every == 0 || g == r.generations-1)
}

// Record appends frame if its generation is sampled. Frames must arrive in
// generation order; out-of-order or repeated generations are ignored.
func (r *FrameRecorder) Record(frame Frame) error {
	if r.finalized {
		return ErrRecorderFinalized
	}
	if !r.Keeps(frame.Generation) {
		return nil
	}
	if n := len(r.frames); n > 0 && r.frames[n-1].Generation >= frame.Generation {
		return nil
	}
	r.frames = append(r.frames, frame)
	return nil
}

// Len returns the number of recorded frames
func (r *FrameRecorder) Len() int { return len(r.frames) }

// Finalize closes the recorder and returns the history in generation order
func (r *FrameRecorder) Finalize() []Frame {
	r.finalized = true
	out := make([]Frame, len(r.frames))
	copy(out, r.frames)
	return out
}
