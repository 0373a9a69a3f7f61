// Package tfmodel TensorFlow SavedModel, GraphDef 기반 Predictor
package tfmodel

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/harrison-roh/crop-disease-classification/cropapp/inference"
	tf "github.com/tensorflow/tensorflow/tensorflow/go"
)

const (
	defaultInputOperation  = "serving_default_input_1"
	defaultOutputOperation = "StatefulPartitionedCall"
)

// Model 하나의 그래프와 세션으로 구성된 추론 모델
type Model struct {
	graph   *tf.Graph
	session *tf.Session
	input   tf.Output
	output  tf.Output

	// session.Run은 동시 호출 가능, Close만 배타적으로 수행
	mu     sync.RWMutex
	closed bool
}

// LoadSavedModel SavedModel 디렉토리 전체(그래프, 가중치, 서빙 시그니처) 로드
func LoadSavedModel(a inference.Artifact) (*Model, error) {
	if a.Kind != inference.KindSavedModel {
		return nil, fmt.Errorf("Not a SavedModel directory: %s (%s)", a.Path, a.Kind)
	}

	sm, err := tf.LoadSavedModel(a.Path, a.Model.Tags, nil)
	if err != nil {
		return nil, err
	}

	m, err := newModel(sm.Graph, sm.Session, a.Model.InputOperationName, a.Model.OutputOperationName)
	if err != nil {
		sm.Session.Close()
		return nil, err
	}

	return m, nil
}

// ImportGraph 학습 상태 없이 고정된 GraphDef만 새 그래프로 가져옴
//
// 파일 아티팩트는 그 자체를, 디렉토리 아티팩트는 frozenGraphFile을 사용한다.
func ImportGraph(a inference.Artifact) (*Model, error) {
	path, err := graphDefPath(a)
	if err != nil {
		return nil, err
	}

	return OpenGraph(path, a.Model.InputOperationName, a.Model.OutputOperationName)
}

// OpenGraph GraphDef 파일로 추론 모델 생성
func OpenGraph(path, inputOp, outputOp string) (*Model, error) {
	def, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	graph := tf.NewGraph()
	if err := graph.Import(def, ""); err != nil {
		return nil, fmt.Errorf("Fail to import graph %s: %w", path, err)
	}

	session, err := tf.NewSession(graph, nil)
	if err != nil {
		return nil, err
	}

	m, err := newModel(graph, session, inputOp, outputOp)
	if err != nil {
		session.Close()
		return nil, err
	}

	return m, nil
}

func graphDefPath(a inference.Artifact) (string, error) {
	switch a.Kind {
	case inference.KindGraphDef:
		fi, err := os.Stat(a.Path)
		if err != nil {
			return "", err
		}
		if fi.IsDir() {
			return filepath.Join(a.Path, a.Model.FrozenGraphFile), nil
		}
		return a.Path, nil
	case inference.KindSavedModel:
		path := filepath.Join(a.Path, a.Model.FrozenGraphFile)
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("No frozen graph in SavedModel directory: %w", err)
		}
		return path, nil
	case inference.KindONNX:
		return "", errors.New("ONNX model carries no training state to drop")
	case inference.KindHDF5:
		return "", errors.New("HDF5 model has no graph definition; re-export it as a SavedModel or frozen GraphDef")
	}

	return "", fmt.Errorf("No graph definition in %s artifact", a.Kind)
}

func newModel(graph *tf.Graph, session *tf.Session, inputOp, outputOp string) (*Model, error) {
	if inputOp == "" {
		inputOp = defaultInputOperation
	}
	if outputOp == "" {
		outputOp = defaultOutputOperation
	}

	input, err := operationOutput(graph, inputOp)
	if err != nil {
		return nil, err
	}
	output, err := operationOutput(graph, outputOp)
	if err != nil {
		return nil, err
	}

	return &Model{
		graph:   graph,
		session: session,
		input:   input,
		output:  output,
	}, nil
}

// "name" 또는 "name:index"
func operationOutput(graph *tf.Graph, name string) (tf.Output, error) {
	idx := 0
	if i := strings.LastIndex(name, ":"); i > 0 {
		n, err := strconv.Atoi(name[i+1:])
		if err == nil {
			name, idx = name[:i], n
		}
	}

	op := graph.Operation(name)
	if op == nil {
		return tf.Output{}, fmt.Errorf("No such operation in graph: %s", name)
	}

	return op.Output(idx), nil
}

// Predict 단일 이미지의 클래스 확률
func (m *Model) Predict(input *inference.Tensor) ([]float32, error) {
	out, err := m.Run(input)
	if err != nil {
		return nil, err
	}

	if len(out.Shape) != 2 || out.Shape[0] < 1 {
		return nil, fmt.Errorf("Unexpected output shape %v", out.Shape)
	}

	return out.Data[:out.Shape[1]], nil
}

// Extract backbone으로 사용할 때의 특징 추출
func (m *Model) Extract(input *inference.Tensor) (*inference.Tensor, error) {
	return m.Run(input)
}

// Run 입력 텐서로 그래프를 실행하여 출력 텐서 반환
func (m *Model) Run(input *inference.Tensor) (*inference.Tensor, error) {
	value, err := toTFValue(input)
	if err != nil {
		return nil, err
	}

	t, err := tf.NewTensor(value)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, errors.New("Model already closed")
	}
	results, err := m.session.Run(
		map[tf.Output]*tf.Tensor{
			m.input: t,
		},
		[]tf.Output{
			m.output,
		},
		nil,
	)
	m.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	return fromTFValue(results[0].Value())
}

// Close 세션 종료
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	return m.session.Close()
}

func toTFValue(t *inference.Tensor) ([][][][]float32, error) {
	n, h, w, c, err := t.Dims4()
	if err != nil {
		return nil, err
	}

	value := make([][][][]float32, n)
	off := 0
	for b := 0; b < n; b++ {
		value[b] = make([][][]float32, h)
		for y := 0; y < h; y++ {
			value[b][y] = make([][]float32, w)
			for x := 0; x < w; x++ {
				value[b][y][x] = t.Data[off : off+c]
				off += c
			}
		}
	}

	return value, nil
}

func fromTFValue(v interface{}) (*inference.Tensor, error) {
	switch val := v.(type) {
	case [][]float32:
		if len(val) == 0 {
			return nil, errors.New("Empty model output")
		}
		t := &inference.Tensor{Shape: []int{len(val), len(val[0])}}
		for _, row := range val {
			t.Data = append(t.Data, row...)
		}
		return t, nil
	case [][][][]float32:
		if len(val) == 0 || len(val[0]) == 0 || len(val[0][0]) == 0 {
			return nil, errors.New("Empty model output")
		}
		t := &inference.Tensor{Shape: []int{len(val), len(val[0]), len(val[0][0]), len(val[0][0][0])}}
		for _, img := range val {
			for _, row := range img {
				for _, px := range row {
					t.Data = append(t.Data, px...)
				}
			}
		}
		return t, nil
	}

	return nil, fmt.Errorf("Unsupported model output type %T", v)
}
