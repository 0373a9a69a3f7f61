package arch

import (
	"context"
	"fmt"

	"github.com/harrison-roh/crop-disease-classification/cropapp/inference"
	"github.com/harrison-roh/crop-disease-classification/cropapp/logging"
)

// BackboneOpener 아티팩트에 사용할 backbone 생성
type BackboneOpener func(a inference.Artifact) (FeatureExtractor, error)

// Strategy 구조를 재구성하고 head 가중치만 로드하는 전략
//
// HDF5 아티팩트는 readHDF5로 파일 안의 가중치를 읽고, 그 외에는 HeadWeightsPath의
// safetensors 아카이브를 사용한다. readHDF5가 nil이면 HDF5도 safetensors를 찾는다.
func Strategy(name string, cfg Config, open BackboneOpener, readHDF5 WeightsReader) inference.Strategy {
	return inference.Strategy{
		Name: name,
		Load: func(ctx context.Context, a inference.Artifact) (inference.Predictor, error) {
			cfg := cfg
			cfg.InputSize = a.Model.ImageSize()
			if err := cfg.validate(); err != nil {
				return nil, err
			}

			path, hidden, output, err := loadHead(a, cfg, readHDF5)
			if err != nil {
				return nil, fmt.Errorf("Fail to load head weights %s: %w", path, err)
			}

			if err := ctx.Err(); err != nil {
				return nil, err
			}

			backbone, err := open(a)
			if err != nil {
				return nil, fmt.Errorf("Fail to open backbone: %w", err)
			}

			m, err := Build(cfg, backbone, hidden, output)
			if err != nil {
				backbone.Close()
				return nil, err
			}

			logging.Info().
				Str("weights", path).
				Strs("layers", m.Layers()).
				Int("hidden_units", cfg.HiddenUnits).
				Int("classes", m.NumClasses()).
				Msg("Model reconstructed")

			return m, nil
		},
	}
}

func loadHead(a inference.Artifact, cfg Config, readHDF5 WeightsReader) (string, *Dense, *Dense, error) {
	if a.Kind == inference.KindHDF5 && readHDF5 != nil {
		archive, err := readHDF5(a.Path, cfg.HiddenLayer, cfg.OutputLayer)
		if err != nil {
			return a.Path, nil, nil, err
		}
		hidden, output, err := HeadFromArchive(archive, cfg, a.NumClasses)
		return a.Path, hidden, output, err
	}

	path := HeadWeightsPath(a.Path)
	hidden, output, err := LoadHead(path, cfg, a.NumClasses)
	return path, hidden, output, err
}
