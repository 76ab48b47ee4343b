package attention

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/gradcam/internal/explanation"
	"github.com/born-ml/gradcam/internal/imaging"
)

// blockExplanation has a 7x7 heatmap lit on cells [x0,x1)x[y0,y1) and a
// 224x224 image.
func blockExplanation(x0, x1, y0, y1 int) *explanation.Explanation {
	heat := image.NewGray(image.Rect(0, 0, 7, 7))
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			heat.Pix[y*7+x] = 255
		}
	}
	return &explanation.Explanation{
		Image:   image.NewRGBA(image.Rect(0, 0, 224, 224)),
		Targets: []explanation.TargetExplanation{{Heatmap: heat}},
	}
}

func TestConcentration_Block(t *testing.T) {
	expl := blockExplanation(2, 5, 0, 3) // pixels x 64..160, y 0..96

	for _, f := range []imaging.Filter{imaging.FilterLanczos, imaging.FilterBilinear, imaging.FilterNearest} {
		c, err := Concentration(expl, Area{X1: 54, X2: 170, Y1: 2, Y2: 100}, f)
		require.NoError(t, err, f)
		assert.Greater(t, c, DefaultThreshold, f)
		assert.LessOrEqual(t, c, 1.0, f)
	}

	c, err := Concentration(expl, Area{X1: 0, X2: 224, Y1: 0, Y2: 224}, imaging.FilterLanczos)
	require.NoError(t, err)
	assert.InDelta(t, 1, c, 1e-12)

	c, err = Concentration(expl, Area{X1: 44, X2: 180, Y1: 130, Y2: 212}, imaging.FilterNearest)
	require.NoError(t, err)
	assert.Zero(t, c)
}

func TestCheck(t *testing.T) {
	expl := blockExplanation(2, 5, 4, 6) // pixels x 64..160, y 128..192

	assert.NoError(t, Check(expl, Area{X1: 44, X2: 180, Y1: 130, Y2: 212}, DefaultThreshold))

	err := Check(expl, Area{X1: 54, X2: 170, Y1: 2, Y2: 100}, DefaultThreshold)
	require.ErrorIs(t, err, ErrNotConcentrated)
	assert.Contains(t, err.Error(), "(x1=54, x2=170, y1=2, y2=100)")
}

func TestConcentration_Errors(t *testing.T) {
	expl := blockExplanation(0, 7, 0, 7)

	for _, area := range []Area{
		{X1: -1, X2: 10, Y1: 0, Y2: 10},
		{X1: 0, X2: 225, Y1: 0, Y2: 10},
		{X1: 10, X2: 10, Y1: 0, Y2: 10},
		{X1: 0, X2: 10, Y1: 20, Y2: 10},
	} {
		_, err := Concentration(expl, area, imaging.FilterLanczos)
		assert.ErrorIs(t, err, ErrAreaOutOfBounds, area.String())
	}

	_, err := Concentration(&explanation.Explanation{}, Area{X2: 1, Y2: 1}, imaging.FilterLanczos)
	assert.ErrorIs(t, err, ErrNoHeatmap)

	noImage := blockExplanation(0, 1, 0, 1)
	noImage.Image = nil
	_, err = Concentration(noImage, Area{X2: 1, Y2: 1}, imaging.FilterLanczos)
	assert.ErrorIs(t, err, ErrNoImage)

	dark := blockExplanation(0, 0, 0, 0)
	_, err = Concentration(dark, Area{X2: 1, Y2: 1}, imaging.FilterLanczos)
	assert.ErrorIs(t, err, ErrZeroIntensity)

	_, err = Concentration(expl, Area{X2: 1, Y2: 1}, imaging.Filter("box"))
	assert.ErrorIs(t, err, imaging.ErrUnknownFilter)
}

func TestArea_Rect(t *testing.T) {
	a := Area{X1: 54, X2: 170, Y1: 2, Y2: 100}
	assert.Equal(t, image.Rect(54, 2, 170, 100), a.Rect())
}
