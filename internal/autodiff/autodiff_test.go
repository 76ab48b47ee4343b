package autodiff

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/gradcam/internal/backend/cpu"
	"github.com/born-ml/gradcam/internal/tensor"
)

func randomTensor(rng *rand.Rand, shape tensor.Shape) *tensor.Tensor {
	x := tensor.Zeros(shape)
	for i := range x.Data() {
		x.Data()[i] = float32(rng.NormFloat64())
	}
	return x
}

// linearNet is conv -> affine -> gap -> dense: piecewise-free, so finite
// differences match the analytic gradient up to float rounding.
type linearNet struct {
	kernel, weight *tensor.Tensor
	scale, shift   []float32
}

func (n linearNet) forward(b tensor.Backend, x *tensor.Tensor) (*tensor.Tensor, *tensor.Tensor) {
	h := b.Conv2D(x, n.kernel, []float32{0.1, -0.2, 0.3}, tensor.ConvParams{Stride: 2, Padding: 1})
	h = b.ChannelAffine(h, n.scale, n.shift)
	feature := h
	p := b.GlobalAvgPool2D(h)
	return b.Dense(p, n.weight, nil), feature
}

func TestBackward_MatchesFiniteDifferences(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	net := linearNet{
		kernel: randomTensor(rng, tensor.Shape{3, 2, 3, 3}),
		weight: randomTensor(rng, tensor.Shape{4, 3}),
		scale:  []float32{1.5, -0.5, 2},
		shift:  []float32{0, 1, -1},
	}
	x := randomTensor(rng, tensor.Shape{1, 2, 6, 6})

	b := New(cpu.New())
	b.Tape().StartRecording()
	logits, _ := net.forward(b, x)
	b.Tape().StopRecording()

	seed := tensor.Zeros(logits.Shape())
	seed.Set(1, 0, 2)
	grads, err := b.Backward(logits, seed)
	require.NoError(t, err)
	dx := grads.Of(x)
	require.NotNil(t, dx)
	require.Equal(t, x.Shape(), dx.Shape())

	plain := cpu.New()
	const eps = 1e-2
	for _, idx := range []int{0, 7, 20, 35, 50, 71} {
		orig := x.Data()[idx]

		x.Data()[idx] = orig + eps
		up, _ := net.forward(plain, x)
		x.Data()[idx] = orig - eps
		down, _ := net.forward(plain, x)
		x.Data()[idx] = orig

		numeric := (float64(up.At(0, 2)) - float64(down.At(0, 2))) / (2 * eps)
		assert.InDelta(t, numeric, float64(dx.Data()[idx]), 1e-2, "index %d", idx)
	}
}

func TestBackward_IntermediateGradient(t *testing.T) {
	b := New(cpu.New())
	b.Tape().StartRecording()

	x := tensor.Full(tensor.Shape{1, 2, 2, 2}, 1)
	feature := b.Clip(x, 0, 6)
	pooled := b.GlobalAvgPool2D(feature)
	w, err := tensor.FromSlice([]float32{2, -4}, tensor.Shape{1, 2})
	require.NoError(t, err)
	out := b.Dense(pooled, w, nil)

	grads, err := b.Backward(out, tensor.Full(out.Shape(), 1))
	require.NoError(t, err)

	// d out / d feature = w[c] / (H*W)
	assert.Equal(t, []float32{0.5, 0.5, 0.5, 0.5, -1, -1, -1, -1}, grads.Of(feature).Data())
	assert.Equal(t, 3, b.Tape().NumOps())
}

func TestBackward_ReLUAndMaxPoolRouting(t *testing.T) {
	b := New(cpu.New())
	b.Tape().StartRecording()

	x, err := tensor.FromSlice([]float32{
		-1, 2,
		3, -4,
	}, tensor.Shape{1, 1, 2, 2})
	require.NoError(t, err)

	r := b.Clip(x, 0, 100)
	p := b.MaxPool2D(r, 2, 2)
	flat := b.Reshape(p, 1, 1)

	grads, err := b.Backward(flat, tensor.Full(tensor.Shape{1, 1}, 5))
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 5, 0}, grads.Of(x).Data())
}

func TestBackward_IsolatesBranches(t *testing.T) {
	b := New(cpu.New())
	b.Tape().StartRecording()

	x := tensor.Full(tensor.Shape{1, 1, 1, 2}, 1)
	// x feeds two independent branches; each walk only sees its own
	a := b.Reshape(x, 1, 2)
	c := b.Reshape(x, 1, 2)
	w, err := tensor.FromSlice([]float32{1, 3}, tensor.Shape{1, 2})
	require.NoError(t, err)
	ya := b.Dense(a, w, nil)
	yc := b.Dense(c, w, nil)

	ga, err := b.Backward(ya, tensor.Full(ya.Shape(), 1))
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 3}, ga.Of(x).Data())
	assert.Nil(t, ga.Of(c), "yc branch must not receive gradient from ya")

	gc, err := b.Backward(yc, tensor.Full(yc.Shape(), 2))
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 6}, gc.Of(x).Data())
}

func TestBackward_ResidualSumsBothPaths(t *testing.T) {
	b := New(cpu.New())
	b.Tape().StartRecording()

	x, err := tensor.FromSlice([]float32{2, -3}, tensor.Shape{1, 1, 1, 2})
	require.NoError(t, err)
	h := b.Clip(x, 0, 100)
	s := b.Add(h, x)
	flat := b.Reshape(s, 1, 2)
	w, err := tensor.FromSlice([]float32{1, 3}, tensor.Shape{1, 2})
	require.NoError(t, err)
	y := b.Dense(flat, w, nil)
	assert.Equal(t, []float32{-5}, y.Data())
	assert.Equal(t, 4, b.Tape().NumOps())

	grads, err := b.Backward(y, tensor.Full(y.Shape(), 1))
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 3}, grads.Of(h).Data())
	// shortcut [1, 3] plus the clipped branch [1, 0]
	assert.Equal(t, []float32{2, 3}, grads.Of(x).Data())
}

func TestBackward_AddSameTensor(t *testing.T) {
	b := New(cpu.New())
	b.Tape().StartRecording()

	x := tensor.Full(tensor.Shape{1, 2}, 1)
	y := b.Add(x, x)

	grads, err := b.Backward(y, tensor.Full(y.Shape(), 3))
	require.NoError(t, err)
	assert.Equal(t, []float32{6, 6}, grads.Of(x).Data())
}

func TestBackward_SeedShapeMismatch(t *testing.T) {
	b := New(cpu.New())
	b.Tape().StartRecording()
	out := b.Clip(tensor.Zeros(tensor.Shape{1, 3}), 0, 1)

	_, err := b.Backward(out, tensor.Zeros(tensor.Shape{1, 4}))
	assert.Error(t, err)
}

func TestTape_RecordsOnlyWhileRecording(t *testing.T) {
	b := New(cpu.New())
	x := tensor.Zeros(tensor.Shape{1, 1, 2, 2})

	b.Clip(x, 0, 1)
	assert.Equal(t, 0, b.Tape().NumOps())
	assert.False(t, b.Tape().IsRecording())

	b.Tape().StartRecording()
	b.Clip(x, 0, 1)
	b.Tape().StopRecording()
	b.Clip(x, 0, 1)
	assert.Equal(t, 1, b.Tape().NumOps())

	b.Tape().Clear()
	assert.Equal(t, 0, b.Tape().NumOps())
}

func TestBackward_ConcurrentWalksAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	net := linearNet{
		kernel: randomTensor(rng, tensor.Shape{3, 2, 3, 3}),
		weight: randomTensor(rng, tensor.Shape{4, 3}),
		scale:  []float32{1, 1, 1},
		shift:  []float32{0, 0, 0},
	}
	x := randomTensor(rng, tensor.Shape{1, 2, 8, 8})

	b := New(cpu.New())
	b.Tape().StartRecording()
	logits, feature := net.forward(b, x)
	b.Tape().StopRecording()

	results := make([]*tensor.Tensor, 4)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(target int) {
			defer wg.Done()
			seed := tensor.Zeros(logits.Shape())
			seed.Set(1, 0, target)
			grads, err := b.Backward(logits, seed)
			if err == nil {
				results[target] = grads.Of(feature)
			}
		}(i)
	}
	wg.Wait()

	for target, g := range results {
		require.NotNil(t, g, "target %d", target)
		// Gradient at the pooled feature map is weight[target, c] / plane.
		plane := float32(g.Shape()[2] * g.Shape()[3])
		for c := 0; c < 3; c++ {
			assert.InDelta(t, net.weight.At(target, c)/plane, g.At(0, c, 0, 0), 1e-6)
		}
	}
}
