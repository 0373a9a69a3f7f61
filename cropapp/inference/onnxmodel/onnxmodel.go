// Package onnxmodel ONNX Runtime 기반 Predictor
package onnxmodel

import (
	"errors"
	"fmt"
	"sync"

	"github.com/harrison-roh/crop-disease-classification/cropapp/inference"
	"github.com/harrison-roh/crop-disease-classification/cropapp/logging"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	defaultInputName  = "input"
	defaultOutputName = "output"
)

var (
	envOnce     sync.Once
	envErr      error
	initialized bool
)

// Init ONNX Runtime 환경 초기화, 여러 번 호출해도 한 번만 수행
func Init(libraryPath string) error {
	envOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if envErr = ort.InitializeEnvironment(); envErr != nil {
			envErr = fmt.Errorf("Fail to initialize ONNX environment: %w", envErr)
			return
		}
		initialized = true
		logging.Info().Str("library", libraryPath).Msg("ONNX runtime initialized")
	})

	return envErr
}

// Destroy ONNX Runtime 환경 해제
func Destroy() {
	if initialized {
		if err := ort.DestroyEnvironment(); err != nil {
			logging.Warn().Err(err).Msg("Fail to destroy ONNX environment")
		}
	}
}

// Session 입출력 텐서가 고정된 ONNX 세션
//
// 텐서 버퍼를 공유하므로 Predict는 직렬화된다.
type Session struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// Load ONNX 모델 파일로 세션 생성
//
// 입력 (1, H, W, 3), 출력 (1, NumClasses)
func Load(a inference.Artifact) (*Session, error) {
	if a.Kind != inference.KindONNX {
		return nil, fmt.Errorf("Not an ONNX model: %s (%s)", a.Path, a.Kind)
	}
	if a.NumClasses <= 0 {
		return nil, errors.New("Unknown number of classes")
	}
	if !initialized {
		return nil, errors.New("ONNX runtime not initialized")
	}

	inputName := a.Model.InputOperationName
	if inputName == "" {
		inputName = defaultInputName
	}
	outputName := a.Model.OutputOperationName
	if outputName == "" {
		outputName = defaultOutputName
	}

	inputShape := make([]int64, 0, 4)
	for _, d := range a.Model.BatchShape() {
		inputShape = append(inputShape, int64(d))
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(inputShape...))
	if err != nil {
		return nil, fmt.Errorf("Fail to create input tensor: %w", err)
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(a.NumClasses)))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("Fail to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(a.Path,
		[]string{inputName}, []string{outputName},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output},
		nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("Fail to create ONNX session: %w", err)
	}

	return &Session{
		session: session,
		input:   input,
		output:  output,
	}, nil
}

// Predict 단일 이미지의 클래스 확률
func (s *Session) Predict(t *inference.Tensor) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, errors.New("Session already closed")
	}

	data := s.input.GetData()
	if len(t.Data) != len(data) {
		return nil, fmt.Errorf("Input has %d values, session expects %d", len(t.Data), len(data))
	}
	copy(data, t.Data)

	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("Inference failed: %w", err)
	}

	out := s.output.GetData()
	probs := make([]float32, len(out))
	copy(probs, out)

	return probs, nil
}

// Close 세션과 텐서 해제
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.session != nil {
		errs = append(errs, s.session.Destroy())
		s.session = nil
	}
	if s.input != nil {
		errs = append(errs, s.input.Destroy())
		s.input = nil
	}
	if s.output != nil {
		errs = append(errs, s.output.Destroy())
		s.output = nil
	}

	return errors.Join(errs...)
}
