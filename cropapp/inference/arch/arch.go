// Package arch 학습 시 사용한 분류 모델 구조를 메모리에 재구성
//
// 증강(추론 시 항등) -> 고정된 사전학습 backbone -> global average pooling ->
// dense(relu) -> dropout(추론 시 항등) -> dense(softmax)
package arch

import (
	"errors"
	"fmt"

	"github.com/harrison-roh/crop-disease-classification/cropapp/constants"
	"github.com/harrison-roh/crop-disease-classification/cropapp/inference"
)

// Config 재구성할 모델 구조 설정
type Config struct {
	InputSize   int
	HiddenUnits int
	Dropout     float64
	HiddenLayer string
	OutputLayer string

	// 데이터 증강 파라미터, 추론 시에는 적용되지 않음
	Flip     string
	Rotation float64
	Zoom     float64
}

// DefaultConfig 학습 스크립트와 동일한 기본 구조
func DefaultConfig() Config {
	return Config{
		InputSize:   constants.ImageSize,
		HiddenUnits: constants.HiddenUnits,
		Dropout:     constants.Dropout,
		HiddenLayer: constants.HiddenLayer,
		OutputLayer: constants.OutputLayer,
		Flip:        "horizontal",
		Rotation:    0.1,
		Zoom:        0.1,
	}
}

func (c Config) validate() error {
	if c.InputSize <= 0 {
		return fmt.Errorf("Invalid input size: %d", c.InputSize)
	}
	if c.HiddenUnits <= 0 {
		return fmt.Errorf("Invalid hidden units: %d", c.HiddenUnits)
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("Invalid dropout rate: %v", c.Dropout)
	}
	if c.HiddenLayer == "" || c.OutputLayer == "" || c.HiddenLayer == c.OutputLayer {
		return fmt.Errorf("Invalid layer names: %q, %q", c.HiddenLayer, c.OutputLayer)
	}

	return nil
}

// FeatureExtractor 고정된 사전학습 backbone
//
// (1, S, S, 3) 입력을 (1, h, w, C) 특징맵 또는 (1, C) 벡터로 변환한다.
type FeatureExtractor interface {
	Extract(input *inference.Tensor) (*inference.Tensor, error)
	Close() error
}

// Model 재구성된 분류 모델
type Model struct {
	cfg      Config
	backbone FeatureExtractor
	hidden   *Dense
	output   *Dense
}

// Build backbone과 head 레이어로 모델 구성
func Build(cfg Config, backbone FeatureExtractor, hidden, output *Dense) (*Model, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if backbone == nil {
		return nil, errors.New("No backbone")
	}
	if hidden == nil || output == nil {
		return nil, errors.New("Missing head layers")
	}
	if hidden.Out != cfg.HiddenUnits {
		return nil, fmt.Errorf("Layer %s: width %d, expected %d hidden units", hidden.Name, hidden.Out, cfg.HiddenUnits)
	}
	if output.In != hidden.Out {
		return nil, fmt.Errorf("Layer %s: input width %d does not match %s width %d",
			output.Name, output.In, hidden.Name, hidden.Out)
	}

	hidden.Activation = ReLU
	output.Activation = Softmax

	return &Model{
		cfg:      cfg,
		backbone: backbone,
		hidden:   hidden,
		output:   output,
	}, nil
}

// Predict 단일 이미지 추론
func (m *Model) Predict(input *inference.Tensor) ([]float32, error) {
	n, h, w, c, err := input.Dims4()
	if err != nil {
		return nil, err
	}
	if n != 1 || h != m.cfg.InputSize || w != m.cfg.InputSize || c != constants.Channels {
		return nil, fmt.Errorf("Input shape %v, expected [1 %d %d %d]",
			input.Shape, m.cfg.InputSize, m.cfg.InputSize, constants.Channels)
	}

	features, err := m.backbone.Extract(input)
	if err != nil {
		return nil, fmt.Errorf("Backbone failed: %w", err)
	}

	var pooled []float32
	switch len(features.Shape) {
	case 4:
		if pooled, err = globalAveragePool(features.Shape, features.Data); err != nil {
			return nil, err
		}
	case 2:
		if features.Shape[1] > len(features.Data) {
			return nil, fmt.Errorf("Backbone output has %d values for shape %v", len(features.Data), features.Shape)
		}
		pooled = features.Data[:features.Shape[1]]
	default:
		return nil, fmt.Errorf("Unexpected backbone output shape %v", features.Shape)
	}

	x, err := m.hidden.Forward(pooled)
	if err != nil {
		return nil, err
	}

	return m.output.Forward(x)
}

// Close backbone 해제
func (m *Model) Close() error {
	return m.backbone.Close()
}

// NumClasses 출력 클래스 수
func (m *Model) NumClasses() int {
	return m.output.Out
}

// Layers 모델을 구성하는 레이어 이름 목록
func (m *Model) Layers() []string {
	return []string{
		"random_flip",
		"random_rotation",
		"random_zoom",
		"backbone",
		"global_average_pooling2d",
		m.hidden.Name,
		"dropout",
		m.output.Name,
	}
}
