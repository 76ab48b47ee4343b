// Package imaging loads images and converts them for classifier input.
//
// JPEG, PNG, GIF, BMP, TIFF and WebP are decoded. Resampling goes through
// golang.org/x/image/draw with a named Filter; heatmaps and input images
// share the same code path.
package imaging

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"os"

	_ "golang.org/x/image/bmp" // register BMP decoder
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// ErrDecode is returned when a file is not a supported image.
var ErrDecode = errors.New("imaging: cannot decode image")

// ImageFromPath decodes the image at path and resizes it to size with
// CatmullRom, the way Keras' load_img(target_size=...) prepares inputs.
// A zero size keeps the original dimensions.
func ImageFromPath(path string, size image.Point) (*image.RGBA, error) {
	//nolint:gosec // G304: image path comes from the caller
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}

	if size == (image.Point{}) || img.Bounds().Size() == size {
		return ToRGBA(img), nil
	}
	return Resize(img, size, FilterCatmullRom)
}

// ToRGBA copies img into a new *image.RGBA with its origin at (0,0).
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}
