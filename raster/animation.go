package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"io"
	"os"

	"github.com/anthonynsimon/bild/transform"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/SvenDH/go-pixel-evolution/ai"
)

// ErrNoFrames is returned when an animation has nothing to encode
var ErrNoFrames = errors.New("no frames to encode")

// GIFOptions controls how a frame history becomes an animation
type GIFOptions struct {
	// Delay between frames in 100ths of a second
	Delay int
	// MaxFrames caps the animation length by striding evenly (0 = no cap)
	MaxFrames int
	// Scale enlarges every frame by an integer factor with nearest neighbour
	Scale int
	// Label draws the generation number in the corner of every frame
	Label bool
	// Dither uses Floyd-Steinberg error diffusion instead of nearest colour
	Dither bool
}

// DefaultGIFOptions returns the options of a standard run
func DefaultGIFOptions() GIFOptions {
	return GIFOptions{Delay: 20, MaxFrames: 50, Scale: 1}
}

// SelectFrames picks at most max frames with an even stride, always keeping
// the last one.
func SelectFrames(frames []ai.Frame, maxFrames int) []ai.Frame {
	if maxFrames <= 0 || len(frames) <= maxFrames {
		return frames
	}
	if maxFrames == 1 {
		return frames[len(frames)-1:]
	}
	step := (len(frames) + maxFrames - 3) / (maxFrames - 1)
	var out []ai.Frame
	for i := 0; i < len(frames)-1; i += step {
		out = append(out, frames[i])
	}
	return append(out, frames[len(frames)-1])
}

// EncodeGIF writes the frames as a looping animation using the 6x6x6
// web-safe palette.
func EncodeGIF(w io.Writer, frames []ai.Frame, opts GIFOptions) error {
	frames = SelectFrames(frames, opts.MaxFrames)
	if len(frames) == 0 {
		return ErrNoFrames
	}
	anim := &gif.GIF{LoopCount: 0}
	for _, f := range frames {
		anim.Image = append(anim.Image, paletted(f, opts))
		anim.Delay = append(anim.Delay, opts.Delay)
	}
	if err := gif.EncodeAll(w, anim); err != nil {
		return fmt.Errorf("encode gif: %w", err)
	}
	return nil
}

// SaveGIF writes the animation to path
func SaveGIF(path string, frames []ai.Frame, opts GIFOptions) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := EncodeGIF(file, frames, opts); err != nil {
		return err
	}
	return file.Close()
}

func paletted(f ai.Frame, opts GIFOptions) *image.Paletted {
	var src image.Image = f.Image
	if opts.Scale > 1 {
		b := f.Image.Bounds()
		src = transform.Resize(f.Image, b.Dx()*opts.Scale, b.Dy()*opts.Scale, transform.NearestNeighbor)
	}
	if opts.Label {
		src = labelled(src, fmt.Sprintf("%d", f.Generation+1))
	}

	bounds := src.Bounds()
	out := image.NewPaletted(bounds, palette.WebSafe)
	if opts.Dither {
		draw.FloydSteinberg.Draw(out, bounds, src, bounds.Min)
	} else {
		draw.Draw(out, bounds, src, bounds.Min, draw.Src)
	}
	return out
}

// labelled returns a copy of src with text drawn in the top-left corner
func labelled(src image.Image, text string) *image.RGBA {
	bounds := src.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, src, bounds.Min, draw.Src)

	face := basicfont.Face7x13
	base := bounds.Min.Add(image.Pt(2, face.Ascent+1))
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.Black),
		Face: face,
		Dot:  fixed.P(base.X+1, base.Y+1),
	}
	d.DrawString(text)
	d.Src = image.NewUniform(color.White)
	d.Dot = fixed.P(base.X, base.Y)
	d.DrawString(text)
	return dst
}
