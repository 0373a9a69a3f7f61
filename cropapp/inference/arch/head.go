package arch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harrison-roh/crop-disease-classification/cropapp/inference/weights"
)

const headWeightsExt = ".safetensors"

// HeadWeightsPath 아티팩트에 대응하는 head 가중치 경로
//
// 가중치 아카이브 자체가 아티팩트이면 그대로, 디렉토리는 <dir>/head.safetensors,
// 그 외 파일은 확장자를 .safetensors로 바꾼 경로
func HeadWeightsPath(artifactPath string) string {
	if strings.EqualFold(filepath.Ext(artifactPath), headWeightsExt) {
		return artifactPath
	}
	if fi, err := os.Stat(artifactPath); err == nil && fi.IsDir() {
		return filepath.Join(artifactPath, "head"+headWeightsExt)
	}

	return strings.TrimSuffix(artifactPath, filepath.Ext(artifactPath)) + headWeightsExt
}

// WeightsReader 아티팩트 자체에 저장된 레이어 가중치를 읽음
//
// 텐서 이름은 Keras HDF5와 같은 <layer>/<layer>/<param>:0 형식을 따른다.
type WeightsReader func(path string, layers ...string) (*weights.Archive, error)

// LoadHead safetensors 가중치 아카이브에서 hidden, output 레이어 로드
func LoadHead(path string, cfg Config, numClasses int) (hidden, output *Dense, err error) {
	a, err := weights.Open(path)
	if err != nil {
		return nil, nil, err
	}

	return HeadFromArchive(a, cfg, numClasses)
}

// HeadFromArchive 아카이브에서 hidden, output 레이어 구성
//
// <layer>/kernel, <layer>/bias 이름으로 찾고, 이름이 맞지 않으면
// 저장된 순서의 2차원 텐서 두 개와 1차원 텐서 두 개를 사용한다.
func HeadFromArchive(a *weights.Archive, cfg Config, numClasses int) (hidden, output *Dense, err error) {
	kernels, biases, err := matchByName(a, cfg.HiddenLayer, cfg.OutputLayer)
	if err != nil {
		var ok bool
		if kernels, biases, ok = matchByOrder(a); !ok {
			return nil, nil, err
		}
	}

	hk, hb := kernels[0], biases[0]
	outK, outB := kernels[1], biases[1]

	if hk.Shape[1] != cfg.HiddenUnits {
		return nil, nil, fmt.Errorf("Layer %s: kernel shape %v, expected [*, %d]", cfg.HiddenLayer, hk.Shape, cfg.HiddenUnits)
	}
	if outK.Shape[0] != cfg.HiddenUnits || outK.Shape[1] != numClasses {
		return nil, nil, fmt.Errorf("Layer %s: kernel shape %v, expected [%d, %d]",
			cfg.OutputLayer, outK.Shape, cfg.HiddenUnits, numClasses)
	}

	if hidden, err = NewDense(cfg.HiddenLayer, hk.Shape[0], hk.Shape[1], hk.Data, hb.Data, ReLU); err != nil {
		return nil, nil, err
	}
	if output, err = NewDense(cfg.OutputLayer, outK.Shape[0], outK.Shape[1], outK.Data, outB.Data, Softmax); err != nil {
		return nil, nil, err
	}

	return hidden, output, nil
}

func lookup(a *weights.Archive, layer, param string) (weights.Tensor, bool) {
	for _, name := range []string{
		layer + "/" + param,
		layer + "/" + param + ":0",
		layer + "/" + layer + "/" + param + ":0",
	} {
		if t, ok := a.Tensor(name); ok {
			return t, true
		}
	}

	return weights.Tensor{}, false
}

func matchByName(a *weights.Archive, layers ...string) (kernels, biases []weights.Tensor, err error) {
	for _, layer := range layers {
		k, ok := lookup(a, layer, "kernel")
		if !ok {
			return nil, nil, fmt.Errorf("No kernel for layer %s in %v", layer, a.Names())
		}
		b, ok := lookup(a, layer, "bias")
		if !ok {
			return nil, nil, fmt.Errorf("No bias for layer %s in %v", layer, a.Names())
		}
		if len(k.Shape) != 2 || len(b.Shape) != 1 {
			return nil, nil, fmt.Errorf("Layer %s: kernel shape %v, bias shape %v", layer, k.Shape, b.Shape)
		}
		kernels = append(kernels, k)
		biases = append(biases, b)
	}

	return kernels, biases, nil
}

func matchByOrder(a *weights.Archive) (kernels, biases []weights.Tensor, ok bool) {
	for _, t := range a.Tensors() {
		switch len(t.Shape) {
		case 2:
			kernels = append(kernels, t)
		case 1:
			biases = append(biases, t)
		}
	}

	if len(kernels) != 2 || len(biases) != 2 {
		return nil, nil, false
	}

	return kernels, biases, true
}
