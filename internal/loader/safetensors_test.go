package loader

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/gradcam/internal/tensor"
)

// writeRawSafeTensors writes a file with a hand-built header and payload.
func writeRawSafeTensors(t *testing.T, header map[string]any, payload []byte) string {
	t.Helper()

	headerJSON, err := json.Marshal(header)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(len(headerJSON))))
	buf.Write(headerJSON)
	buf.Write(payload)

	path := filepath.Join(t.TempDir(), "model.safetensors")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func le(values ...any) []byte {
	var buf bytes.Buffer
	for _, v := range values {
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}
	return buf.Bytes()
}

func TestNewSafeTensorsReader(t *testing.T) {
	path := writeRawSafeTensors(t, map[string]any{
		"__metadata__": map[string]string{"format": "pt"},
		"weight":       SafeTensorInfo{DType: SafeTensorsF32, Shape: []int{2, 3}, DataOffsets: [2]int64{0, 24}},
		"bias":         SafeTensorInfo{DType: SafeTensorsF32, Shape: []int{3}, DataOffsets: [2]int64{24, 36}},
	}, le(
		[]float32{1, 2, 3, 4, 5, 6},
		[]float32{0.1, 0.2, 0.3},
	))

	r, err := NewSafeTensorsReader(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, "pt", r.Metadata()["format"])
	assert.Equal(t, []string{"bias", "weight"}, r.TensorNames())

	weight, err := r.LoadTensor("weight")
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, weight.Shape())
	assert.Equal(t, float32(6), weight.At(1, 2))

	bias, err := r.LoadTensor("bias")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, bias.Data())

	_, err = r.LoadTensor("missing")
	assert.ErrorIs(t, err, ErrTensorNotFound)
}

func TestLoadTensor_ConvertsDTypes(t *testing.T) {
	// 1.5 in binary16 is 0x3E00, -2 is 0xC000.
	// bfloat16 keeps the upper half of the float32 bits.
	bf16 := func(f float32) uint16 { return uint16(math.Float32bits(f) >> 16) }

	path := writeRawSafeTensors(t, map[string]any{
		"f16":  SafeTensorInfo{DType: SafeTensorsF16, Shape: []int{2}, DataOffsets: [2]int64{0, 4}},
		"bf16": SafeTensorInfo{DType: SafeTensorsBF16, Shape: []int{2}, DataOffsets: [2]int64{4, 8}},
		"f64":  SafeTensorInfo{DType: SafeTensorsF64, Shape: []int{1}, DataOffsets: [2]int64{8, 16}},
	}, le(
		[]uint16{0x3E00, 0xC000},
		[]uint16{bf16(0.5), bf16(-3)},
		[]float64{2.25},
	))

	tensors, err := LoadSafeTensors(path)
	require.NoError(t, err)

	assert.Equal(t, []float32{1.5, -2}, tensors["f16"].Data())
	assert.Equal(t, []float32{0.5, -3}, tensors["bf16"].Data())
	assert.Equal(t, []float32{2.25}, tensors["f64"].Data())
}

func TestLoadTensor_Errors(t *testing.T) {
	path := writeRawSafeTensors(t, map[string]any{
		"ints":  SafeTensorInfo{DType: "I64", Shape: []int{1}, DataOffsets: [2]int64{0, 8}},
		"short": SafeTensorInfo{DType: SafeTensorsF32, Shape: []int{4}, DataOffsets: [2]int64{0, 8}},
	}, make([]byte, 8))

	r, err := NewSafeTensorsReader(path)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.LoadTensor("ints")
	assert.ErrorIs(t, err, ErrUnsupportedDType)

	_, err = r.LoadTensor("short")
	assert.ErrorIs(t, err, ErrInvalidHeader)
}

func TestLoadTensor_OffsetsBeyondFile(t *testing.T) {
	path := writeRawSafeTensors(t, map[string]any{
		"huge":    SafeTensorInfo{DType: SafeTensorsF32, Shape: []int{1}, DataOffsets: [2]int64{0, 1 << 50}},
		"past":    SafeTensorInfo{DType: SafeTensorsF32, Shape: []int{4}, DataOffsets: [2]int64{8, 24}},
		"reverse": SafeTensorInfo{DType: SafeTensorsF32, Shape: []int{1}, DataOffsets: [2]int64{8, 4}},
		"ok":      SafeTensorInfo{DType: SafeTensorsF32, Shape: []int{2}, DataOffsets: [2]int64{0, 8}},
	}, le(float32(1), float32(2)))

	r, err := NewSafeTensorsReader(path)
	require.NoError(t, err)
	defer r.Close()

	for _, name := range []string{"huge", "past", "reverse"} {
		_, err = r.LoadTensor(name)
		assert.ErrorIs(t, err, ErrInvalidHeader, name)

		_, err = r.ReadTensorData(name)
		assert.ErrorIs(t, err, ErrInvalidHeader, name)
	}

	ok, err := r.LoadTensor("ok")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, ok.Data())

	_, err = LoadSafeTensors(path)
	assert.ErrorIs(t, err, ErrInvalidHeader)
}

func TestNewSafeTensorsReader_HeaderBeyondFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.safetensors")
	require.NoError(t, os.WriteFile(path, append(le(uint64(1<<20)), []byte("{}")...), 0o600))

	_, err := NewSafeTensorsReader(path)
	assert.ErrorIs(t, err, ErrInvalidHeader)
}

func TestNewSafeTensorsReader_InvalidFile(t *testing.T) {
	dir := t.TempDir()

	truncated := filepath.Join(dir, "truncated.safetensors")
	require.NoError(t, os.WriteFile(truncated, []byte{1, 2}, 0o600))
	_, err := NewSafeTensorsReader(truncated)
	assert.ErrorIs(t, err, ErrInvalidHeader)

	garbage := filepath.Join(dir, "garbage.safetensors")
	require.NoError(t, os.WriteFile(garbage, append(le(uint64(4)), []byte("nope")...), 0o600))
	_, err = NewSafeTensorsReader(garbage)
	assert.ErrorIs(t, err, ErrInvalidHeader)

	_, err = NewSafeTensorsReader(filepath.Join(dir, "missing.safetensors"))
	assert.Error(t, err)
}

func TestSaveSafeTensors_RoundTrip(t *testing.T) {
	kernel, err := tensor.FromSlice([]float32{1, -1, 0.5, 0.25}, tensor.Shape{1, 1, 2, 2})
	require.NoError(t, err)
	tensors := map[string]*tensor.Tensor{
		"conv1.weight": kernel,
		"fc.bias":      tensor.Full(tensor.Shape{3}, -2),
	}

	path := filepath.Join(t.TempDir(), "weights.safetensors")
	require.NoError(t, SaveSafeTensors(path, tensors, map[string]string{"format": "born"}))

	r, err := NewSafeTensorsReader(path)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, "born", r.Metadata()["format"])
	assert.Zero(t, r.dataOffset%8, "header must be 8-byte aligned")

	loaded, err := r.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	for name, want := range tensors {
		assert.Equal(t, want.Shape(), loaded[name].Shape(), name)
		assert.Equal(t, want.Data(), loaded[name].Data(), name)
	}
}

func TestHalfToFloat32(t *testing.T) {
	assert.Equal(t, float32(0), halfToFloat32(0x0000))
	assert.Equal(t, float32(1), halfToFloat32(0x3C00))
	assert.Equal(t, float32(65504), halfToFloat32(0x7BFF))
	assert.Equal(t, float32(math.Pow(2, -24)), halfToFloat32(0x0001))
	assert.True(t, math.IsInf(float64(halfToFloat32(0xFC00)), -1))
}
