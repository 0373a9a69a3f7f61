package inference

import "fmt"

// Tensor 행 우선(row-major) NHWC float32 텐서
type Tensor struct {
	Shape []int
	Data  []float32
}

// NewTensor 0으로 채워진 텐서 생성
func NewTensor(shape ...int) *Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}

	s := make([]int, len(shape))
	copy(s, shape)

	return &Tensor{
		Shape: s,
		Data:  make([]float32, n),
	}
}

// Len 원소 개수
func (t *Tensor) Len() int {
	return len(t.Data)
}

// Dims4 4차원 텐서의 각 차원 크기 반환
func (t *Tensor) Dims4() (n, h, w, c int, err error) {
	if len(t.Shape) != 4 {
		return 0, 0, 0, 0, fmt.Errorf("Expected 4-D tensor, got shape %v", t.Shape)
	}

	return t.Shape[0], t.Shape[1], t.Shape[2], t.Shape[3], nil
}

// Predictor (1, H, W, 3) 입력을 클래스 확률 벡터로 변환하는 추론 핸들
//
// 시작 시 한 번 생성되어 모든 요청이 공유하므로 동시 호출에 안전해야 한다.
type Predictor interface {
	Predict(input *Tensor) ([]float32, error)
	Close() error
}
