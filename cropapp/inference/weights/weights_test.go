package weights

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndOpen(t *testing.T) {
	tensors := []Tensor{
		{Name: "dense/kernel", Shape: []int{2, 3}, Data: []float32{1, 2, 3, 4, 5, 6}},
		{Name: "dense/bias", Shape: []int{3}, Data: []float32{0.5, -0.5, 0}},
		{Name: "dense_1/kernel", Shape: []int{3, 1}, Data: []float32{7, 8, 9}},
	}

	path := filepath.Join(t.TempDir(), "model.safetensors")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, Write(f, tensors, map[string]string{"format": "keras"}))
	require.NoError(t, f.Close())

	a, err := Open(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"dense/kernel", "dense/bias", "dense_1/kernel"}, a.Names())
	assert.Equal(t, "keras", a.Metadata["format"])

	bias, ok := a.Tensor("dense/bias")
	require.True(t, ok)
	assert.Equal(t, []int{3}, bias.Shape)
	assert.Equal(t, []float32{0.5, -0.5, 0}, bias.Data)

	_, ok = a.Tensor("missing")
	assert.False(t, ok)
}

func TestReadHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []Tensor{
		{Name: "b", Shape: []int{1}, Data: []float32{1}},
		{Name: "a", Shape: []int{2}, Data: []float32{1, 2}},
	}, nil))

	entries, metadata, start, err := ReadHeader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Nil(t, metadata)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].Name)
	assert.Equal(t, [2]int64{4, 12}, entries[1].DataOffsets)
	assert.Equal(t, int64(buf.Len()-12), start)
}

func TestParseRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"hdf5 signature", []byte("\x89HDF\r\n\x1a\n\x00\x00\x00\x00\x00\x00\x00\x00")},
		{"huge header", func() []byte {
			b := make([]byte, 8)
			binary.LittleEndian.PutUint64(b, 1<<40)
			return b
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			assert.True(t, errors.Is(err, ErrNotArchive), "got %v", err)
		})
	}
}

func TestParseRejectsBadTensors(t *testing.T) {
	header := []byte(`{"w":{"dtype":"F32","shape":[2],"data_offsets":[0,16]}}`)
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(len(header)))
	b = append(b, header...)
	b = append(b, make([]byte, 8)...)

	_, err := Parse(b)
	assert.ErrorContains(t, err, "out of range")

	header = []byte(`{"w":{"dtype":"I8","shape":[2],"data_offsets":[0,2]}}`)
	b = make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(len(header)))
	b = append(b, header...)
	b = append(b, 1, 2)

	_, err = Parse(b)
	assert.ErrorContains(t, err, "unsupported dtype")
}

func TestWriteShapeMismatch(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, []Tensor{{Name: "w", Shape: []int{2, 2}, Data: []float32{1}}}, nil)
	assert.Error(t, err)
}

func TestNewKeepsOrder(t *testing.T) {
	a, err := New([]Tensor{
		{Name: "dense_1/dense_1/kernel:0", Shape: []int{2, 1}, Data: []float32{1, 2}},
		{Name: "dense/dense/bias:0", Shape: []int{2}, Data: []float32{3, 4}},
	}, map[string]string{"format": "h5"})
	require.NoError(t, err)

	assert.Equal(t, []string{"dense_1/dense_1/kernel:0", "dense/dense/bias:0"}, a.Names())
	b, ok := a.Tensor("dense/dense/bias:0")
	require.True(t, ok)
	assert.Equal(t, []float32{3, 4}, b.Data)
	assert.Equal(t, "h5", a.Metadata["format"])

	_, err = New([]Tensor{{Name: "k", Shape: []int{2, 2}, Data: []float32{1}}}, nil)
	assert.Error(t, err)

	_, err = New([]Tensor{
		{Name: "k", Shape: []int{1}, Data: []float32{1}},
		{Name: "k", Shape: []int{1}, Data: []float32{2}},
	}, nil)
	assert.Error(t, err)
}
