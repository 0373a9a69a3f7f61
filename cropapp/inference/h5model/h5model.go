// Package h5model Keras HDF5 모델 파일 조사와 레이어 가중치 읽기
//
// 전체 모델 저장본은 루트에 model_config 속성과 model_weights 그룹을,
// 가중치만 저장한 파일은 루트에 레이어 그룹을 바로 가진다.
package h5model

import (
	"fmt"
	"path"

	"github.com/harrison-roh/crop-disease-classification/cropapp/inference"
	"github.com/harrison-roh/crop-disease-classification/cropapp/inference/weights"
	"gonum.org/v1/hdf5"
)

const (
	modelConfigAttr   = "model_config"
	modelWeightsGroup = "model_weights"
	maxLayerNames     = 10
)

// Inspect model_config 속성 유무와 가중치 레이어 이름 조사
func Inspect(filename string, info *inference.Inspection) error {
	f, err := hdf5.OpenFile(filename, hdf5.F_ACC_RDONLY)
	if err != nil {
		return fmt.Errorf("Fail to open HDF5 file %s: %w", filename, err)
	}
	defer f.Close()

	root, err := f.OpenGroup("/")
	if err != nil {
		return err
	}
	defer root.Close()

	if attr, err := root.OpenAttribute(modelConfigAttr); err == nil {
		info.HasModelConfig = true
		attr.Close()
	}

	g, err := weightsGroup(f)
	if err != nil {
		return err
	}
	defer g.Close()

	layers, err := childNames(g, hdf5.H5G_GROUP)
	if err != nil {
		return err
	}

	info.HasModelWeights = len(layers) > 0
	if len(layers) > maxLayerNames {
		layers = layers[:maxLayerNames]
	}
	info.WeightsLayers = layers

	return nil
}

// ReadWeights 주어진 레이어 그룹의 데이터셋을 읽음
//
// 텐서 이름은 가중치 그룹 기준 상대 경로(dense/dense/kernel:0)이다.
// 이름이 맞는 레이어가 하나도 없으면 그룹 전체를 저장된 순서로 읽는다.
func ReadWeights(filename string, layers ...string) (*weights.Archive, error) {
	f, err := hdf5.OpenFile(filename, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("Fail to open HDF5 file %s: %w", filename, err)
	}
	defer f.Close()

	g, err := weightsGroup(f)
	if err != nil {
		return nil, err
	}
	defer g.Close()

	var tensors []weights.Tensor
	for _, layer := range layers {
		lg, err := g.OpenGroup(layer)
		if err != nil {
			continue
		}
		ts, err := readDatasets(lg, layer)
		lg.Close()
		if err != nil {
			return nil, err
		}
		tensors = append(tensors, ts...)
	}

	if len(tensors) == 0 {
		if tensors, err = readDatasets(g, ""); err != nil {
			return nil, err
		}
	}

	return weights.New(tensors, map[string]string{"format": "hdf5"})
}

// 전체 모델은 model_weights, 가중치만 저장한 파일은 루트
func weightsGroup(f *hdf5.File) (*hdf5.Group, error) {
	if g, err := f.OpenGroup(modelWeightsGroup); err == nil {
		return g, nil
	}

	return f.OpenGroup("/")
}

func childNames(g *hdf5.Group, typ hdf5.GType) ([]string, error) {
	n, err := g.NumObjects()
	if err != nil {
		return nil, err
	}

	var names []string
	for i := uint(0); i < n; i++ {
		t, err := g.ObjectTypeByIndex(i)
		if err != nil {
			return nil, err
		}
		if t != typ {
			continue
		}
		name, err := g.ObjectNameByIndex(i)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}

	return names, nil
}

func readDatasets(g *hdf5.Group, prefix string) ([]weights.Tensor, error) {
	n, err := g.NumObjects()
	if err != nil {
		return nil, err
	}

	var tensors []weights.Tensor
	for i := uint(0); i < n; i++ {
		name, err := g.ObjectNameByIndex(i)
		if err != nil {
			return nil, err
		}
		typ, err := g.ObjectTypeByIndex(i)
		if err != nil {
			return nil, err
		}

		full := path.Join(prefix, name)
		switch typ {
		case hdf5.H5G_GROUP:
			sub, err := g.OpenGroup(name)
			if err != nil {
				return nil, err
			}
			ts, err := readDatasets(sub, full)
			sub.Close()
			if err != nil {
				return nil, err
			}
			tensors = append(tensors, ts...)
		case hdf5.H5G_DATASET:
			t, err := readDataset(g, name, full)
			if err != nil {
				return nil, err
			}
			tensors = append(tensors, t)
		}
	}

	return tensors, nil
}

func readDataset(g *hdf5.Group, name, full string) (weights.Tensor, error) {
	ds, err := g.OpenDataset(name)
	if err != nil {
		return weights.Tensor{}, err
	}
	defer ds.Close()

	space := ds.Space()
	defer space.Close()

	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return weights.Tensor{}, fmt.Errorf("Dataset %s: %w", full, err)
	}
	shape := make([]int, len(dims))
	for i, d := range dims {
		shape[i] = int(d)
	}

	data := make([]float32, space.SimpleExtentNPoints())
	if err := ds.Read(&data); err != nil {
		return weights.Tensor{}, fmt.Errorf("Fail to read dataset %s: %w", full, err)
	}

	return weights.Tensor{
		Name:  full,
		Shape: shape,
		Data:  data,
	}, nil
}
