package format

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/gradcam/internal/explanation"
	"github.com/born-ml/gradcam/internal/imaging"
)

func testExplanation(heatValue uint8) *explanation.Explanation {
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 90, 120, 150, 255
	}
	heat := image.NewGray(image.Rect(0, 0, 4, 3))
	for i := range heat.Pix {
		heat.Pix[i] = heatValue
	}
	heat.Pix[0] = 0
	return &explanation.Explanation{
		Image:   img,
		Targets: []explanation.TargetExplanation{{Target: 1, Heatmap: heat}},
	}
}

func TestFormatAsImage_Geometry(t *testing.T) {
	expl := testExplanation(200)
	before := append([]uint8(nil), expl.Image.Pix...)

	out, err := FormatAsImage(expl)
	require.NoError(t, err)
	assert.Equal(t, expl.Image.Bounds(), out.Bounds())
	assert.Equal(t, color.RGBAModel, out.ColorModel())
	assert.NotEqual(t, expl.Image.Pix, out.Pix)
	assert.Equal(t, before, expl.Image.Pix, "explanation image must not change")
}

func TestFormatAsImage_ZeroAlphaIsOriginal(t *testing.T) {
	expl := testExplanation(255)
	out, err := FormatAsImage(expl, WithAlphaLimit(0))
	require.NoError(t, err)
	assert.Equal(t, expl.Image.Pix, out.Pix)
}

func TestFormatAsImage_FullAlphaShowsColormap(t *testing.T) {
	expl := testExplanation(255)
	out, err := FormatAsImage(expl, WithAlphaLimit(1), WithColormap("jet"), WithFilter(imaging.FilterNearest))
	require.NoError(t, err)

	jet, err := LookupColormap("jet")
	require.NoError(t, err)
	assert.Equal(t, jet.At(255), out.RGBAAt(31, 23))
	// The cold cell keeps the image.
	assert.Equal(t, color.RGBA{R: 90, G: 120, B: 150, A: 255}, out.RGBAAt(0, 0))
}

func TestFormatAsImage_Errors(t *testing.T) {
	expl := testExplanation(100)

	for _, a := range []float64{-0.1, 1.5} {
		_, err := FormatAsImage(expl, WithAlphaLimit(a))
		assert.ErrorIs(t, err, ErrInvalidAlpha)
	}

	_, err := FormatAsImage(expl, WithColormap("rainbow"))
	assert.ErrorIs(t, err, ErrUnknownColormap)

	_, err = FormatAsImage(expl, WithTarget(1))
	assert.ErrorIs(t, err, ErrNoHeatmap)

	_, err = FormatAsImage(expl, WithFilter(imaging.Filter("box")))
	assert.ErrorIs(t, err, imaging.ErrUnknownFilter)

	noImage := testExplanation(100)
	noImage.Image = nil
	_, err = FormatAsImage(noImage)
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestColormaps(t *testing.T) {
	assert.Equal(t, []string{"gray", "jet", "magma", "viridis"}, Colormaps())

	viridis, err := LookupColormap("")
	require.NoError(t, err)
	assert.Equal(t, "viridis", viridis.Name())
	assert.Equal(t, color.RGBA{R: 0x44, G: 0x01, B: 0x54, A: 255}, viridis.At(0))
	assert.Equal(t, color.RGBA{R: 0xfd, G: 0xe7, B: 0x25, A: 255}, viridis.At(255))

	gray, err := LookupColormap("Gray")
	require.NoError(t, err)
	for _, v := range []uint8{0, 64, 200, 255} {
		c := gray.At(v)
		assert.InDelta(t, int(v), int(c.R), 1)
		assert.Equal(t, c.R, c.G)
		assert.Equal(t, c.R, c.B)
	}
}

func TestMustHex(t *testing.T) {
	c := mustHex("#1f9e89")
	r, g, b := c.RGB255()
	assert.Equal(t, [3]uint8{0x1f, 0x9e, 0x89}, [3]uint8{r, g, b})

	assert.Panics(t, func() { mustHex("1f9e89") })
	assert.Panics(t, func() { mustHex("#zzzzzz") })
}

func TestColorize_Alpha(t *testing.T) {
	heat := image.NewGray(image.Rect(0, 0, 2, 1))
	heat.Pix[0], heat.Pix[1] = 0, 200
	gray, err := LookupColormap("gray")
	require.NoError(t, err)

	out := Colorize(heat, gray, 0.5)
	assert.Equal(t, uint8(0), out.NRGBAAt(0, 0).A)
	assert.Equal(t, uint8(100), out.NRGBAAt(1, 0).A)
}

func TestSavePNG(t *testing.T) {
	out, err := FormatAsImage(testExplanation(180))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "overlay.png")
	require.NoError(t, SavePNG(path, out))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, out.Bounds(), decoded.Bounds())

	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, out))
	assert.Equal(t, data, buf.Bytes())
}
