package inference

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/harrison-roh/crop-disease-classification/cropapp/constants"
	"github.com/harrison-roh/crop-disease-classification/cropapp/logging"
)

// Config 이미지 추론 모델 생성 설정정보
type Config struct {
	ModelPath       string
	LabelsPath      string
	ModelConfigFile string

	ImageSize int
	TopK      int

	// 순서대로 시도할 모델 로드 전략
	Strategies []Strategy

	// 비어 있으면 HDF5 파일 내용에서 키 이름을 찾음
	InspectHDF5 HDF5Inspector
}

// Classifier 시작 시 한 번 로드된 추론 모델과 레이블
//
// 생성 후에는 변경되지 않으며 모든 요청 핸들러가 공유한다.
type Classifier struct {
	predictor Predictor
	labels    Labels
	cfg       ModelConfig

	modelPath  string
	strategy   string
	inspection *Inspection
	topK       int
}

// Info 상태 확인 응답
type Info struct {
	Status   string `json:"status"`
	Model    string `json:"model"`
	Labels   int    `json:"labels"`
	Strategy string `json:"strategy"`
}

// New 레이블과 모델을 로드하여 Classifier 생성
func New(ctx context.Context, c Config) (*Classifier, error) {
	labels, err := LoadLabels(c.LabelsPath)
	if err != nil {
		return nil, err
	}
	logging.Info().
		Int("labels", len(labels)).
		Strs("first", labels.Head(10)).
		Str("path", c.LabelsPath).
		Msg("Labels loaded")

	mcfg, err := LoadModelConfig(c.ModelPath, c.ModelConfigFile, c.ImageSize)
	if err != nil {
		return nil, err
	}

	kind, err := DetectKind(c.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("Fail to read model: %s: %w", c.ModelPath, err)
	}

	r := Resolver{
		Strategies: c.Strategies,
		Inspect: func(path string) Inspection {
			return InspectWith(path, c.InspectHDF5)
		},
	}
	res, err := r.Resolve(ctx, Artifact{
		Path:       c.ModelPath,
		Kind:       kind,
		Model:      mcfg,
		NumClasses: len(labels),
	})
	if err != nil {
		return nil, err
	}

	topK := c.TopK
	if topK <= 0 {
		topK = constants.TopK
	}

	logging.Info().
		Str("model", c.ModelPath).
		Str("kind", string(kind)).
		Str("strategy", res.Strategy).
		Ints("input_shape", mcfg.BatchShape()).
		Msg("Model ready")

	return &Classifier{
		predictor:  res.Predictor,
		labels:     labels,
		cfg:        mcfg,
		modelPath:  c.ModelPath,
		strategy:   res.Strategy,
		inspection: res.Inspection,
		topK:       topK,
	}, nil
}

// Predict base64 이미지 추론
func (cl *Classifier) Predict(ctx context.Context, image string) (*Result, error) {
	input, err := Preprocess(image, cl.cfg.ImageSize())
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	probs, err := cl.predictor.Predict(input)
	if err != nil {
		return nil, fmt.Errorf("Inference failed: %w", err)
	}

	preds, err := TopK(probs, cl.labels, cl.topK)
	if err != nil {
		return nil, err
	}

	return &Result{
		TopK:             cl.topK,
		Predictions:      preds,
		RawProbabilities: probs,
	}, nil
}

// Info 모델 정보 반환
func (cl *Classifier) Info() Info {
	return Info{
		Status:   "ok",
		Model:    filepath.Base(cl.modelPath),
		Labels:   len(cl.labels),
		Strategy: cl.strategy,
	}
}

// Labels 레이블 목록 반환
func (cl *Classifier) Labels() Labels {
	return cl.labels
}

// Inspection 첫 로드 전략이 실패했을 때의 아티팩트 조사 결과, 없으면 nil
func (cl *Classifier) Inspection() *Inspection {
	return cl.inspection
}

// Destroy 추론 모델 해제
func (cl *Classifier) Destroy() {
	if err := cl.predictor.Close(); err != nil {
		logging.Error().Err(err).Str("model", cl.modelPath).Msg("Model close failed")
	} else {
		logging.Info().Str("model", cl.modelPath).Msg("Model successfully closed")
	}
}
