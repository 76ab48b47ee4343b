package imaging

import (
	"errors"
	"fmt"
	"image"

	"github.com/born-ml/gradcam/internal/tensor"
)

// ErrUnknownPreprocessor is returned for unsupported preprocessing modes.
var ErrUnknownPreprocessor = errors.New("imaging: unknown preprocessor")

// Preprocessor maps one 8-bit RGB pixel to the three network input channels.
type Preprocessor func(r, g, b uint8) (c0, c1, c2 float32)

// Preprocessing modes, named after the Keras applications that use them.
const (
	PreprocessMobileNetV2 = "mobilenet_v2"
	PreprocessCaffe       = "caffe"
	PreprocessTorch       = "torch"
	PreprocessNone        = "none"
)

var preprocessors = map[string]Preprocessor{
	// Scale to [-1, 1].
	PreprocessMobileNetV2: func(r, g, b uint8) (float32, float32, float32) {
		return float32(r)/127.5 - 1, float32(g)/127.5 - 1, float32(b)/127.5 - 1
	},
	// BGR order, ImageNet mean subtracted, no scaling (VGG, ResNet50).
	PreprocessCaffe: func(r, g, b uint8) (float32, float32, float32) {
		return float32(b) - 103.939, float32(g) - 116.779, float32(r) - 123.68
	},
	// Scale to [0, 1] then normalise with ImageNet mean and std.
	PreprocessTorch: func(r, g, b uint8) (float32, float32, float32) {
		return (float32(r)/255 - 0.485) / 0.229,
			(float32(g)/255 - 0.456) / 0.224,
			(float32(b)/255 - 0.406) / 0.225
	},
	PreprocessNone: func(r, g, b uint8) (float32, float32, float32) {
		return float32(r) / 255, float32(g) / 255, float32(b) / 255
	},
}

// LookupPreprocessor returns the preprocessor registered under name.
func LookupPreprocessor(name string) (Preprocessor, error) {
	p, ok := preprocessors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreprocessor, name)
	}
	return p, nil
}

// ToTensor converts img into a [1, 3, H, W] tensor using p.
func ToTensor(img *image.RGBA, p Preprocessor) *tensor.Tensor {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	t := tensor.Zeros(tensor.Shape{1, 3, h, w})
	data := t.Data()
	plane := h * w

	for y := 0; y < h; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < w; x++ {
			px := row[x*4 : x*4+3]
			c0, c1, c2 := p(px[0], px[1], px[2])
			i := y*w + x
			data[i] = c0
			data[plane+i] = c1
			data[2*plane+i] = c2
		}
	}
	return t
}
