// Package loader 아티팩트 종류별 런타임으로 모델 로드 전략 구성
//
// 런타임(TensorFlow, ONNX Runtime, HDF5)은 Backends로 주입한다.
package loader

import (
	"context"
	"errors"
	"fmt"

	"github.com/harrison-roh/crop-disease-classification/cropapp/inference"
	"github.com/harrison-roh/crop-disease-classification/cropapp/inference/arch"
)

// 전략 이름
const (
	Full          = "full"
	Reconstructed = "reconstructed"
	Uncompiled    = "uncompiled"
)

var (
	// ErrHDF5Model Keras 모델 구성은 Go에서 역직렬화할 수 없음
	ErrHDF5Model = errors.New("HDF5 models cannot be deserialized here; re-export as a SavedModel directory or ONNX file")
	// ErrNoTrainingState ONNX 모델은 제거할 학습 상태가 없음
	ErrNoTrainingState = errors.New("ONNX model carries no training state to drop")
	// ErrNoBackbone 재구성에 사용할 backbone 그래프 미설정
	ErrNoBackbone = errors.New("No backbone graph configured (architecture.backbone_graph)")
)

// LoadFunc 런타임 하나로 아티팩트 로드
type LoadFunc func(a inference.Artifact) (inference.Predictor, error)

// Backends 전략이 사용하는 런타임, nil이면 해당 종류는 실패로 처리
type Backends struct {
	SavedModel LoadFunc
	ONNX       LoadFunc
	Graph      LoadFunc
	OpenGraph  func(path, inputOp, outputOp string) (arch.FeatureExtractor, error)
	ReadHDF5   arch.WeightsReader
}

// Backbone 재구성 전략의 고정 backbone GraphDef
type Backbone struct {
	Graph  string
	Input  string
	Output string
}

// Strategies 전체 모델 -> 구조 재구성 -> 학습 상태 없이 그래프만 로드 순서
func Strategies(cfg arch.Config, bb Backbone, b Backends) []inference.Strategy {
	return []inference.Strategy{
		{Name: Full, Load: b.full},
		arch.Strategy(Reconstructed, cfg, b.backbone(bb), b.ReadHDF5),
		{Name: Uncompiled, Load: b.uncompiled},
	}
}

func (b Backends) full(ctx context.Context, a inference.Artifact) (inference.Predictor, error) {
	switch a.Kind {
	case inference.KindSavedModel:
		return call(b.SavedModel, "TensorFlow", a)
	case inference.KindONNX:
		return call(b.ONNX, "ONNX Runtime", a)
	case inference.KindHDF5:
		return nil, ErrHDF5Model
	}

	return nil, fmt.Errorf("No complete model in %s artifact %s", a.Kind, a.Path)
}

func (b Backends) uncompiled(ctx context.Context, a inference.Artifact) (inference.Predictor, error) {
	switch a.Kind {
	case inference.KindONNX:
		return nil, ErrNoTrainingState
	case inference.KindHDF5:
		return nil, ErrHDF5Model
	}

	return call(b.Graph, "TensorFlow", a)
}

func (b Backends) backbone(bb Backbone) arch.BackboneOpener {
	return func(a inference.Artifact) (arch.FeatureExtractor, error) {
		if bb.Graph == "" {
			return nil, ErrNoBackbone
		}
		if b.OpenGraph == nil {
			return nil, errors.New("No TensorFlow backend for the backbone graph")
		}

		return b.OpenGraph(bb.Graph, bb.Input, bb.Output)
	}
}

func call(load LoadFunc, runtime string, a inference.Artifact) (inference.Predictor, error) {
	if load == nil {
		return nil, fmt.Errorf("No %s backend for %s artifact %s", runtime, a.Kind, a.Path)
	}

	return load(a)
}
