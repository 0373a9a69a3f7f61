package arch

import (
	"fmt"
	"math"
)

// Activation 활성 함수
type Activation string

const (
	Linear  Activation = "linear"
	ReLU    Activation = "relu"
	Softmax Activation = "softmax"
)

// Dense 완전 연결 레이어, Kernel은 [In][Out] 행 우선
type Dense struct {
	Name       string
	In         int
	Out        int
	Kernel     []float32
	Bias       []float32
	Activation Activation
}

// NewDense 형태를 확인하고 Dense 레이어 생성
func NewDense(name string, in, out int, kernel, bias []float32, act Activation) (*Dense, error) {
	if in <= 0 || out <= 0 {
		return nil, fmt.Errorf("Layer %s: invalid shape [%d, %d]", name, in, out)
	}
	if len(kernel) != in*out {
		return nil, fmt.Errorf("Layer %s: kernel has %d values, expected %dx%d", name, len(kernel), in, out)
	}
	if len(bias) != out {
		return nil, fmt.Errorf("Layer %s: bias has %d values, expected %d", name, len(bias), out)
	}

	return &Dense{
		Name:       name,
		In:         in,
		Out:        out,
		Kernel:     kernel,
		Bias:       bias,
		Activation: act,
	}, nil
}

// Forward 단일 입력 벡터에 대한 출력 계산
func (d *Dense) Forward(x []float32) ([]float32, error) {
	if len(x) != d.In {
		return nil, fmt.Errorf("Layer %s: input width %d, expected %d", d.Name, len(x), d.In)
	}

	out := make([]float32, d.Out)
	copy(out, d.Bias)
	for i, v := range x {
		if v == 0 {
			continue
		}
		row := d.Kernel[i*d.Out : (i+1)*d.Out]
		for j, w := range row {
			out[j] += v * w
		}
	}

	switch d.Activation {
	case ReLU:
		relu(out)
	case Softmax:
		softmax(out)
	}

	return out, nil
}

func relu(x []float32) {
	for i, v := range x {
		if v < 0 {
			x[i] = 0
		}
	}
}

// 최대값을 빼서 exp overflow 방지
func softmax(x []float32) {
	if len(x) == 0 {
		return
	}

	top := x[0]
	for _, v := range x[1:] {
		if v > top {
			top = v
		}
	}

	var sum float64
	for i, v := range x {
		e := math.Exp(float64(v - top))
		x[i] = float32(e)
		sum += e
	}
	for i := range x {
		x[i] = float32(float64(x[i]) / sum)
	}
}

// globalAveragePool (N, H, W, C) 텐서의 첫 샘플을 채널별 평균으로 축약
func globalAveragePool(shape []int, data []float32) ([]float32, error) {
	if len(shape) != 4 {
		return nil, fmt.Errorf("Expected 4-D feature map, got shape %v", shape)
	}

	h, w, c := shape[1], shape[2], shape[3]
	if h*w == 0 || c == 0 {
		return nil, fmt.Errorf("Empty feature map %v", shape)
	}
	if len(data) < h*w*c {
		return nil, fmt.Errorf("Feature map has %d values for shape %v", len(data), shape)
	}

	out := make([]float32, c)
	for p := 0; p < h*w; p++ {
		px := data[p*c : (p+1)*c]
		for k, v := range px {
			out[k] += v
		}
	}

	n := float32(h * w)
	for k := range out {
		out[k] /= n
	}

	return out, nil
}
