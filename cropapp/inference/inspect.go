package inference

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/harrison-roh/crop-disease-classification/cropapp/inference/weights"
)

// Kind 모델 아티팩트 종류
type Kind string

const (
	KindSavedModel  Kind = "savedmodel"
	KindGraphDef    Kind = "graphdef"
	KindONNX        Kind = "onnx"
	KindHDF5        Kind = "hdf5"
	KindSafetensors Kind = "safetensors"
	KindUnknown     Kind = "unknown"
)

const (
	savedModelFile = "saved_model.pb"
	variablesDir   = "variables"
	maxLayerNames  = 10
	scanChunkSize  = 64 << 10
)

// HDF5Inspector HDF5 파일의 속성과 그룹을 읽어 info를 채움
type HDF5Inspector func(path string, info *Inspection) error

var hdf5Signature = []byte("\x89HDF\r\n\x1a\n")

// Inspection 아티팩트 내부 구조 조사 결과
type Inspection struct {
	Path            string   `json:"path"`
	Kind            Kind     `json:"kind"`
	HasModelConfig  bool     `json:"has_model_config"`
	HasModelWeights bool     `json:"has_model_weights"`
	WeightsLayers   []string `json:"weights_layers,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// WeightsOnly 구조 정보 없이 가중치만 저장된 아티팩트로 보이는지 여부
func (i Inspection) WeightsOnly() bool {
	return i.HasModelWeights && !i.HasModelConfig
}

// DetectKind 디렉토리 구성, 매직 넘버, 확장자로 아티팩트 종류 판별
func DetectKind(path string) (Kind, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return KindUnknown, err
	}

	if fi.IsDir() {
		if fileExists(filepath.Join(path, savedModelFile)) {
			return KindSavedModel, nil
		}
		if fileExists(filepath.Join(path, defaultFrozenGraph)) {
			return KindGraphDef, nil
		}
		return KindUnknown, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return KindUnknown, err
	}
	defer f.Close()

	head := make([]byte, len(hdf5Signature))
	n, _ := io.ReadFull(f, head)
	head = head[:n]

	if bytes.Equal(head, hdf5Signature) {
		return KindHDF5, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err == nil {
		if _, _, _, err := weights.ReadHeader(f); err == nil {
			return KindSafetensors, nil
		}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".onnx":
		return KindONNX, nil
	case ".pb":
		return KindGraphDef, nil
	}

	return KindUnknown, nil
}

// Inspect 아티팩트가 전체 모델 저장본인지 가중치 저장본인지 조사
//
// 조사 실패는 Error 필드에 기록될 뿐 치명적이지 않다.
func Inspect(path string) Inspection {
	return InspectWith(path, nil)
}

// InspectWith HDF5 아티팩트는 h5로 조사, nil이면 파일 내용에서 키 이름을 찾음
func InspectWith(path string, h5 HDF5Inspector) Inspection {
	info := Inspection{
		Path: path,
		Kind: KindUnknown,
	}

	kind, err := DetectKind(path)
	info.Kind = kind
	if err != nil {
		info.Error = err.Error()
		return info
	}

	switch kind {
	case KindSavedModel:
		info.HasModelConfig = true
		info.HasModelWeights = dirExists(filepath.Join(path, variablesDir))
	case KindGraphDef, KindONNX:
		// 상수로 고정된 가중치와 그래프를 함께 포함
		info.HasModelConfig = true
		info.HasModelWeights = true
	case KindHDF5:
		if h5 == nil {
			h5 = scanHDF5
		}
		if err := h5(path, &info); err != nil {
			info.Error = err.Error()
		}
	case KindSafetensors:
		a, err := weights.Open(path)
		if err != nil {
			info.Error = err.Error()
			break
		}
		names := a.Names()
		info.HasModelWeights = len(names) > 0
		if len(names) > maxLayerNames {
			names = names[:maxLayerNames]
		}
		info.WeightsLayers = names
	}

	return info
}

// scanHDF5 전체 모델 HDF5는 model_config 속성과 model_weights 그룹을 가진다
//
// 속성과 링크 이름은 오브젝트 헤더에 그대로 기록되므로 파일을 나눠 읽으며 찾는다.
func scanHDF5(path string, info *Inspection) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	keys := [][]byte{[]byte("model_config"), []byte("model_weights"), []byte("layer_names")}
	found := make([]bool, len(keys))

	overlap := 0
	for _, k := range keys {
		if len(k)-1 > overlap {
			overlap = len(k) - 1
		}
	}

	buf := make([]byte, 0, scanChunkSize+overlap)
	chunk := make([]byte, scanChunkSize)
	for {
		n, rerr := f.Read(chunk)
		buf = append(buf, chunk[:n]...)
		for i, k := range keys {
			if !found[i] && bytes.Contains(buf, k) {
				found[i] = true
			}
		}
		if len(buf) > overlap {
			buf = append(buf[:0], buf[len(buf)-overlap:]...)
		}

		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return rerr
		}
	}

	info.HasModelConfig = found[0]
	info.HasModelWeights = found[1] || found[2]
	return nil
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

func dirExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
