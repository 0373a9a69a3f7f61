package arch

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harrison-roh/crop-disease-classification/cropapp/inference"
	"github.com/harrison-roh/crop-disease-classification/cropapp/inference/weights"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackbone struct {
	out    *inference.Tensor
	err    error
	closed bool
}

func (f *fakeBackbone) Extract(input *inference.Tensor) (*inference.Tensor, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

func (f *fakeBackbone) Close() error {
	f.closed = true
	return nil
}

// 2x1 특징맵의 채널 평균은 [2, 4]
func featureMap() *inference.Tensor {
	return &inference.Tensor{Shape: []int{1, 1, 2, 2}, Data: []float32{1, 3, 3, 5}}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.InputSize = 4
	cfg.HiddenUnits = 2
	return cfg
}

func headTensors(named bool) []weights.Tensor {
	name := func(layer, param string) string {
		if !named {
			return ""
		}
		return layer + "/" + param
	}
	return []weights.Tensor{
		{Name: name("dense", "kernel"), Shape: []int{2, 2}, Data: []float32{1, 0, 0, 1}},
		{Name: name("dense", "bias"), Shape: []int{2}, Data: []float32{0, -5}},
		{Name: name("dense_1", "kernel"), Shape: []int{2, 3}, Data: []float32{1, 0, 0, 0, 0, 0}},
		{Name: name("dense_1", "bias"), Shape: []int{3}, Data: []float32{0, 0, 0}},
	}
}

func writeHead(t *testing.T, path string, tensors []weights.Tensor) string {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, weights.Write(f, tensors, map[string]string{"format": "keras"}))
	return path
}

func assertExpectedProbs(t *testing.T, probs []float32) {
	t.Helper()

	require.Len(t, probs, 3)
	e2 := math.Exp(2)
	assert.InDelta(t, e2/(e2+2), probs[0], 1e-5)
	assert.InDelta(t, 1/(e2+2), probs[1], 1e-5)
	assert.InDelta(t, 1/(e2+2), probs[2], 1e-5)

	var sum float32
	for _, p := range probs {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
}

func TestModelPredict(t *testing.T) {
	path := writeHead(t, filepath.Join(t.TempDir(), "head.safetensors"), headTensors(true))

	hidden, output, err := LoadHead(path, testConfig(), 3)
	require.NoError(t, err)

	m, err := Build(testConfig(), &fakeBackbone{out: featureMap()}, hidden, output)
	require.NoError(t, err)

	probs, err := m.Predict(inference.NewTensor(1, 4, 4, 3))
	require.NoError(t, err)
	assertExpectedProbs(t, probs)

	assert.Equal(t, 3, m.NumClasses())
	assert.Equal(t, []string{
		"random_flip", "random_rotation", "random_zoom", "backbone",
		"global_average_pooling2d", "dense", "dropout", "dense_1",
	}, m.Layers())
}

func TestModelPredictPooledBackbone(t *testing.T) {
	path := writeHead(t, filepath.Join(t.TempDir(), "head.safetensors"), headTensors(true))
	hidden, output, err := LoadHead(path, testConfig(), 3)
	require.NoError(t, err)

	pooled := &inference.Tensor{Shape: []int{1, 2}, Data: []float32{2, 4}}
	m, err := Build(testConfig(), &fakeBackbone{out: pooled}, hidden, output)
	require.NoError(t, err)

	probs, err := m.Predict(inference.NewTensor(1, 4, 4, 3))
	require.NoError(t, err)
	assertExpectedProbs(t, probs)
}

func TestModelPredictRejectsInput(t *testing.T) {
	path := writeHead(t, filepath.Join(t.TempDir(), "head.safetensors"), headTensors(true))
	hidden, output, err := LoadHead(path, testConfig(), 3)
	require.NoError(t, err)

	backbone := &fakeBackbone{out: featureMap()}
	m, err := Build(testConfig(), backbone, hidden, output)
	require.NoError(t, err)

	_, err = m.Predict(inference.NewTensor(1, 8, 8, 3))
	assert.Error(t, err)

	backbone.err = errors.New("graph not found")
	_, err = m.Predict(inference.NewTensor(1, 4, 4, 3))
	assert.ErrorContains(t, err, "graph not found")

	require.NoError(t, m.Close())
	assert.True(t, backbone.closed)
}

func TestLoadHeadFileOrderFallback(t *testing.T) {
	// 레이어 이름이 없는 텐서는 기록 순서대로 사용
	tensors := headTensors(false)
	for i := range tensors {
		tensors[i].Name = []string{"w0", "b0", "w1", "b1"}[i]
	}
	path := writeHead(t, filepath.Join(t.TempDir(), "head.safetensors"), tensors)

	hidden, output, err := LoadHead(path, testConfig(), 3)
	require.NoError(t, err)
	assert.Equal(t, "dense", hidden.Name)
	assert.Equal(t, []float32{0, -5}, hidden.Bias)
	assert.Equal(t, 3, output.Out)
}

func TestLoadHeadShapeMismatch(t *testing.T) {
	path := writeHead(t, filepath.Join(t.TempDir(), "head.safetensors"), headTensors(true))

	_, _, err := LoadHead(path, testConfig(), 5)
	assert.ErrorContains(t, err, "dense_1")

	cfg := testConfig()
	cfg.HiddenUnits = 8
	_, _, err = LoadHead(path, cfg, 3)
	assert.Error(t, err)
}

func TestLoadHeadMissingLayers(t *testing.T) {
	path := writeHead(t, filepath.Join(t.TempDir(), "head.safetensors"), headTensors(true)[:2])

	_, _, err := LoadHead(path, testConfig(), 3)
	assert.ErrorContains(t, err, "dense_1")
}

func TestBuildValidation(t *testing.T) {
	hidden, err := NewDense("dense", 2, 2, make([]float32, 4), make([]float32, 2), ReLU)
	require.NoError(t, err)
	output, err := NewDense("dense_1", 2, 3, make([]float32, 6), make([]float32, 3), Softmax)
	require.NoError(t, err)

	_, err = Build(testConfig(), nil, hidden, output)
	assert.Error(t, err)

	cfg := testConfig()
	cfg.HiddenUnits = 4
	_, err = Build(cfg, &fakeBackbone{}, hidden, output)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Dropout = 1
	_, err = Build(cfg, &fakeBackbone{}, hidden, output)
	assert.Error(t, err)

	_, err = NewDense("dense", 2, 2, make([]float32, 3), make([]float32, 2), ReLU)
	assert.Error(t, err)
}

func TestSoftmaxStable(t *testing.T) {
	x := []float32{1000, 1000, -1000}
	softmax(x)
	assert.InDelta(t, 0.5, x[0], 1e-6)
	assert.InDelta(t, 0.5, x[1], 1e-6)
	assert.InDelta(t, 0.0, x[2], 1e-6)
}

func TestHeadWeightsPath(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, filepath.Join(dir, "head.safetensors"), HeadWeightsPath(dir))
	assert.Equal(t, "/m/plant_disease_model.safetensors", HeadWeightsPath("/m/plant_disease_model.safetensors"))
	assert.Equal(t, "/m/plant_disease_model.safetensors", HeadWeightsPath("/m/plant_disease_model.h5"))
}

func TestStrategyResolves(t *testing.T) {
	path := writeHead(t, filepath.Join(t.TempDir(), "plant_disease_model.safetensors"), headTensors(true))
	backbone := &fakeBackbone{out: featureMap()}

	var opened []string
	r := inference.Resolver{
		Strategies: []inference.Strategy{
			Strategy("reconstructed", DefaultConfig(), func(a inference.Artifact) (FeatureExtractor, error) {
				opened = append(opened, a.Path)
				return backbone, nil
			}, nil),
		},
		Inspect: func(string) inference.Inspection { return inference.Inspection{} },
	}

	res, err := r.Resolve(context.Background(), inference.Artifact{
		Path:       path,
		Kind:       inference.KindSafetensors,
		Model:      inference.ModelConfig{InputShape: []int32{4, 4, 3}},
		NumClasses: 3,
	})
	require.Error(t, err, "default config expects 256 hidden units")
	assert.Nil(t, res)
	assert.Empty(t, opened, "backbone is not opened when head weights do not fit")

	r.Strategies[0] = Strategy("reconstructed", testConfig(), func(a inference.Artifact) (FeatureExtractor, error) {
		opened = append(opened, a.Path)
		return backbone, nil
	}, nil)
	res, err = r.Resolve(context.Background(), inference.Artifact{
		Path:       path,
		Kind:       inference.KindSafetensors,
		Model:      inference.ModelConfig{InputShape: []int32{4, 4, 3}},
		NumClasses: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "reconstructed", res.Strategy)
	assert.Equal(t, []string{path}, opened)

	probs, err := res.Predictor.Predict(inference.NewTensor(1, 4, 4, 3))
	require.NoError(t, err)
	assertExpectedProbs(t, probs)
}

func TestStrategyBackboneFailureIsReported(t *testing.T) {
	path := writeHead(t, filepath.Join(t.TempDir(), "plant_disease_model.safetensors"), headTensors(true))

	s := Strategy("reconstructed", testConfig(), func(inference.Artifact) (FeatureExtractor, error) {
		return nil, errors.New("backbone graph not configured")
	}, nil)

	_, err := s.Load(context.Background(), inference.Artifact{
		Path:       path,
		Model:      inference.ModelConfig{InputShape: []int32{4, 4, 3}},
		NumClasses: 3,
	})
	assert.ErrorContains(t, err, "backbone graph not configured")
}

func kerasH5Tensors() []weights.Tensor {
	var out []weights.Tensor
	for _, tt := range headTensors(true) {
		layer, param, _ := strings.Cut(tt.Name, "/")
		tt.Name = layer + "/" + layer + "/" + param + ":0"
		out = append(out, tt)
	}
	return out
}

func TestStrategyReadsHDF5Weights(t *testing.T) {
	h5 := filepath.Join(t.TempDir(), "plant_disease_model.h5")

	var read []string
	var layers []string
	readHDF5 := func(path string, names ...string) (*weights.Archive, error) {
		read = append(read, path)
		layers = names
		return weights.New(kerasH5Tensors(), nil)
	}

	s := Strategy("reconstructed", testConfig(), func(inference.Artifact) (FeatureExtractor, error) {
		return &fakeBackbone{out: featureMap()}, nil
	}, readHDF5)

	p, err := s.Load(context.Background(), inference.Artifact{
		Path:       h5,
		Kind:       inference.KindHDF5,
		Model:      inference.ModelConfig{InputShape: []int32{4, 4, 3}},
		NumClasses: 3,
	})
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, []string{h5}, read, "weights come from the artifact, not a sibling archive")
	assert.Equal(t, []string{"dense", "dense_1"}, layers)

	probs, err := p.Predict(inference.NewTensor(1, 4, 4, 3))
	require.NoError(t, err)
	assertExpectedProbs(t, probs)
}

func TestStrategyHDF5ReadFailure(t *testing.T) {
	opened := false
	s := Strategy("reconstructed", testConfig(), func(inference.Artifact) (FeatureExtractor, error) {
		opened = true
		return &fakeBackbone{out: featureMap()}, nil
	}, func(string, ...string) (*weights.Archive, error) {
		return nil, errors.New("unable to open file")
	})

	_, err := s.Load(context.Background(), inference.Artifact{
		Path:       "/models/plant_disease_model.h5",
		Kind:       inference.KindHDF5,
		Model:      inference.ModelConfig{InputShape: []int32{4, 4, 3}},
		NumClasses: 3,
	})
	assert.ErrorContains(t, err, "/models/plant_disease_model.h5: unable to open file")
	assert.False(t, opened)
}
