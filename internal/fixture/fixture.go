// Package fixture builds a deterministic cat-and-dog scene and a small
// classifier that recognises it.
//
// The scene is a gray canvas with a warm (dog) block above a cool (cat)
// block. The classifier has two feature channels, one excited by warm
// colours and one by cool colours, pooled down to a 7x7 map and read out
// by an ImageNet-sized head: class 208 (Labrador retriever) listens to the
// warm channel, class 282 (tiger cat) to the cool one. The dog block is
// larger, so the dog wins the top prediction.
package fixture

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"

	"github.com/born-ml/gradcam/internal/imaging"
	"github.com/born-ml/gradcam/internal/loader"
	"github.com/born-ml/gradcam/internal/model"
	"github.com/born-ml/gradcam/internal/tensor"
)

// ImageNet classes used by the scene.
const (
	DogClass = 208
	CatClass = 282

	NumClasses = 1000
	InputSize  = 224

	// TargetLayer is the last convolutional block, chosen automatically.
	TargetLayer = "relu4"
)

// Object regions in input (224x224) coordinates.
var (
	DogRegion = image.Rect(64, 0, 160, 96)
	CatRegion = image.Rect(64, 128, 160, 192)
)

// Scene colours.
var (
	Background = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	DogColor   = color.RGBA{R: 200, G: 60, B: 40, A: 255}
	CatColor   = color.RGBA{R: 50, G: 70, B: 210, A: 255}
)

// Scene draws the scene at size x size pixels.
func Scene(size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(Background), image.Point{}, draw.Src)
	draw.Draw(img, scaleRect(DogRegion, size), image.NewUniform(DogColor), image.Point{}, draw.Src)
	draw.Draw(img, scaleRect(CatRegion, size), image.NewUniform(CatColor), image.Point{}, draw.Src)
	return img
}

func scaleRect(r image.Rectangle, size int) image.Rectangle {
	s := func(v int) int { return v * size / InputSize }
	return image.Rect(s(r.Min.X), s(r.Min.Y), s(r.Max.X), s(r.Max.Y))
}

// Architecture returns the classifier layout.
func Architecture() *model.Architecture {
	return &model.Architecture{
		Name:       "catdog-tiny",
		Input:      []int{3, InputSize, InputSize},
		Preprocess: imaging.PreprocessMobileNetV2,
		Classes:    NumClasses,
		Labels: map[int]string{
			DogClass: "Labrador_retriever",
			CatClass: "tiger_cat",
		},
		Layers: []model.LayerSpec{
			{Name: "conv1", Type: model.LayerConv2D, In: 3, Out: 2, Kernel: 3, Stride: 2, Padding: 1},
			{Name: "relu1", Type: model.LayerReLU},
			{Name: "pool1", Type: model.LayerMaxPool2D, Kernel: 2, Stride: 2},
			{Name: "conv2", Type: model.LayerConv2D, In: 2, Out: 2, Kernel: 2, Stride: 2, Groups: 2},
			{Name: "relu2", Type: model.LayerReLU},
			{Name: "conv3", Type: model.LayerConv2D, In: 2, Out: 2, Kernel: 2, Stride: 2, Groups: 2},
			{Name: "relu3", Type: model.LayerReLU},
			{Name: "conv4", Type: model.LayerConv2D, In: 2, Out: 2, Kernel: 2, Stride: 2, Groups: 2},
			{Name: TargetLayer, Type: model.LayerReLU},
			{Name: "gap", Type: model.LayerGlobalAvgPool2D},
			{Name: "fc", Type: model.LayerLinear, In: 2, Out: NumClasses, Bias: true},
		},
	}
}

// Weights returns the classifier parameters keyed "<layer>.<param>".
func Weights() map[string]*tensor.Tensor {
	// conv1: channel 0 responds to red over green and blue, channel 1 to blue.
	conv1 := tensor.Zeros(tensor.Shape{2, 3, 3, 3})
	for ky := 0; ky < 3; ky++ {
		for kx := 0; kx < 3; kx++ {
			conv1.Set(1.0/9, 0, 0, ky, kx)
			conv1.Set(-0.5/9, 0, 1, ky, kx)
			conv1.Set(-0.5/9, 0, 2, ky, kx)

			conv1.Set(-0.5/9, 1, 0, ky, kx)
			conv1.Set(-0.5/9, 1, 1, ky, kx)
			conv1.Set(1.0/9, 1, 2, ky, kx)
		}
	}

	fcWeight := tensor.Zeros(tensor.Shape{NumClasses, 2})
	fcWeight.Set(10, DogClass, 0)
	fcWeight.Set(10, CatClass, 1)
	fcBias := tensor.Full(tensor.Shape{NumClasses}, -2)
	fcBias.Set(0, DogClass)
	fcBias.Set(0, CatClass)

	return map[string]*tensor.Tensor{
		"conv1.weight": conv1,
		// 2x2 per-channel average pooling as depthwise convolutions.
		"conv2.weight": tensor.Full(tensor.Shape{2, 1, 2, 2}, 0.25),
		"conv3.weight": tensor.Full(tensor.Shape{2, 1, 2, 2}, 0.25),
		"conv4.weight": tensor.Full(tensor.Shape{2, 1, 2, 2}, 0.25),
		"fc.weight":    fcWeight,
		"fc.bias":      fcBias,
	}
}

// Classifier builds the classifier with its weights.
func Classifier(opts ...model.Option) (*model.Classifier, error) {
	c, err := model.New(Architecture(), opts...)
	if err != nil {
		return nil, err
	}
	if err := c.LoadWeights(Weights()); err != nil {
		return nil, err
	}
	return c, nil
}

// Files are the paths written by WriteFiles.
type Files struct {
	Image        string
	Architecture string
	Weights      string
}

// WriteFiles writes the scene (as a JPEG at twice the input size), the
// architecture and the weights into dir.
func WriteFiles(dir string) (Files, error) {
	files := Files{
		Image:        filepath.Join(dir, "catdog.jpg"),
		Architecture: filepath.Join(dir, "catdog.yaml"),
		Weights:      filepath.Join(dir, "catdog.safetensors"),
	}

	if err := WriteJPEG(files.Image, Scene(2*InputSize)); err != nil {
		return Files{}, err
	}
	arch, err := Architecture().Marshal()
	if err != nil {
		return Files{}, fmt.Errorf("marshal architecture: %w", err)
	}
	if err := os.WriteFile(files.Architecture, arch, 0o600); err != nil {
		return Files{}, fmt.Errorf("write architecture: %w", err)
	}
	if err := loader.SaveSafeTensors(files.Weights, Weights(), map[string]string{"format": "born"}); err != nil {
		return Files{}, fmt.Errorf("write weights: %w", err)
	}
	return files, nil
}

// WriteJPEG encodes img at maximum quality.
func WriteJPEG(path string, img image.Image) error {
	//nolint:gosec // G304: output path is chosen by the caller
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 100}); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
