package explanation

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExplanation_Heatmap(t *testing.T) {
	var nilExpl *Explanation
	assert.Nil(t, nilExpl.Heatmap())
	assert.Nil(t, (&Explanation{}).Heatmap())

	first := image.NewGray(image.Rect(0, 0, 7, 7))
	e := &Explanation{Targets: []TargetExplanation{
		{Target: 208, Heatmap: first},
		{Target: 282, Heatmap: image.NewGray(image.Rect(0, 0, 7, 7))},
	}}
	assert.Same(t, first, e.Heatmap())

	te, ok := e.Target(1)
	assert.True(t, ok)
	assert.Equal(t, 282, te.Target)
	_, ok = e.Target(2)
	assert.False(t, ok)
}
