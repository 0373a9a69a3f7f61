package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harrison-roh/crop-disease-classification/cropapp/logging"
)

// ErrClassMismatch 모델 출력 크기와 레이블 수 불일치
var ErrClassMismatch = errors.New("Model output width does not match the label table")

// Artifact 로드 대상 모델 아티팩트
type Artifact struct {
	Path       string
	Kind       Kind
	Model      ModelConfig
	NumClasses int
}

// LoadFunc 아티팩트로부터 Predictor 생성
type LoadFunc func(ctx context.Context, a Artifact) (Predictor, error)

// Strategy 이름 붙은 모델 로드 전략
type Strategy struct {
	Name string
	Load LoadFunc
}

// Failure 실패한 전략과 원인
type Failure struct {
	Strategy string
	Err      error
}

// ResolutionError 모든 전략이 실패했을 때의 집계 에러
type ResolutionError struct {
	Path     string
	Failures []Failure
}

func (e *ResolutionError) Error() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Fail to load model %s (all %d strategies failed):", e.Path, len(e.Failures))
	for _, f := range e.Failures {
		fmt.Fprintf(&sb, "\n  %s: %v", f.Strategy, f.Err)
	}
	sb.WriteString("\nRe-export the model as a TensorFlow SavedModel directory or an ONNX file " +
		"(or its head weights as safetensors) and provide label_map.json in the training label order.")

	return sb.String()
}

func (e *ResolutionError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}

	return errs
}

// Resolution 모델 로드 결과
type Resolution struct {
	Predictor  Predictor
	Strategy   string
	Inspection *Inspection
}

// Resolver 순서가 정해진 전략을 차례로 시도하여 처음 성공한 Predictor를 사용
type Resolver struct {
	Strategies []Strategy

	// 첫 전략이 실패한 뒤 호출, 기본값 Inspect
	Inspect func(path string) Inspection
}

// Resolve 모델 로드
//
// 전략이 반환한 Predictor는 0 텐서로 한 번 추론하여 출력 크기가 레이블 수와 같은지 확인한다.
func (r *Resolver) Resolve(ctx context.Context, a Artifact) (*Resolution, error) {
	if len(r.Strategies) == 0 {
		return nil, errors.New("No model loading strategy configured")
	}

	inspect := r.Inspect
	if inspect == nil {
		inspect = Inspect
	}

	res := &Resolution{}
	rerr := &ResolutionError{Path: a.Path}

	for i, s := range r.Strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		logging.Info().Str("strategy", s.Name).Str("path", a.Path).Msg("Attempting model load")

		p, err := s.Load(ctx, a)
		if err == nil && p == nil {
			err = errors.New("Strategy returned no model")
		}
		if err == nil {
			if err = verify(p, a); err != nil {
				if cerr := p.Close(); cerr != nil {
					logging.Warn().Err(cerr).Str("strategy", s.Name).Msg("Fail to close rejected model")
				}
			}
		}

		if err == nil {
			logging.Info().Str("strategy", s.Name).Msg("Model load succeeded")
			res.Predictor = p
			res.Strategy = s.Name
			return res, nil
		}

		logging.Warn().Err(err).Str("strategy", s.Name).Msg("Model load failed")
		rerr.Failures = append(rerr.Failures, Failure{Strategy: s.Name, Err: err})

		if i == 0 {
			info := inspect(a.Path)
			res.Inspection = &info
			logging.Info().
				Str("kind", string(info.Kind)).
				Bool("has_model_config", info.HasModelConfig).
				Bool("has_model_weights", info.HasModelWeights).
				Bool("weights_only", info.WeightsOnly()).
				Strs("weights_layers", info.WeightsLayers).
				Str("inspect_error", info.Error).
				Msg("Artifact inspection")
		}
	}

	return nil, rerr
}

func verify(p Predictor, a Artifact) error {
	probs, err := p.Predict(NewTensor(a.Model.BatchShape()...))
	if err != nil {
		return fmt.Errorf("Warm-up inference failed: %w", err)
	}

	if len(probs) != a.NumClasses {
		return fmt.Errorf("%w: model outputs %d classes, label table has %d",
			ErrClassMismatch, len(probs), a.NumClasses)
	}

	return nil
}
