package raster

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"

	"github.com/anthonynsimon/bild/transform"
)

// LoadTarget decodes the image at path and resizes it to size x size
func LoadTarget(path string, size int) (*image.RGBA, error) {
	reader, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	m, _, err := image.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return Fit(m, size), nil
}

// Fit returns img as an RGBA raster of size x size, resampling with
// Catmull-Rom when the dimensions differ.
func Fit(img image.Image, size int) *image.RGBA {
	b := img.Bounds()
	if b.Dx() == size && b.Dy() == size {
		out := image.NewRGBA(image.Rect(0, 0, size, size))
		draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
		return out
	}
	return transform.Resize(img, size, size, transform.CatmullRom)
}

// SampleTarget generates a gradient target for runs without an input image
func SampleTarget(size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Pix[img.PixOffset(x, y)+0] = uint8(x * 255 / size)
			img.Pix[img.PixOffset(x, y)+1] = uint8(y * 255 / size)
			img.Pix[img.PixOffset(x, y)+2] = uint8((x + y) * 255 / (size * 2))
			img.Pix[img.PixOffset(x, y)+3] = 0xff
		}
	}
	return img
}

// SavePNG writes img to path
func SavePNG(path string, img image.Image) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return file.Close()
}
