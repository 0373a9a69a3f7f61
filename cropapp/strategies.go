package main

import (
	"github.com/harrison-roh/crop-disease-classification/cropapp/config"
	"github.com/harrison-roh/crop-disease-classification/cropapp/inference"
	"github.com/harrison-roh/crop-disease-classification/cropapp/inference/arch"
	"github.com/harrison-roh/crop-disease-classification/cropapp/inference/h5model"
	"github.com/harrison-roh/crop-disease-classification/cropapp/inference/loader"
	"github.com/harrison-roh/crop-disease-classification/cropapp/inference/onnxmodel"
	"github.com/harrison-roh/crop-disease-classification/cropapp/inference/tfmodel"
)

func loadStrategies(cfg *config.Config) []inference.Strategy {
	ac := cfg.Architecture

	return loader.Strategies(
		arch.Config{
			HiddenUnits: ac.HiddenUnits,
			Dropout:     ac.Dropout,
			HiddenLayer: ac.HiddenLayer,
			OutputLayer: ac.OutputLayer,
			Flip:        ac.Flip,
			Rotation:    ac.Rotation,
			Zoom:        ac.Zoom,
		},
		loader.Backbone{
			Graph:  ac.BackboneGraph,
			Input:  ac.BackboneInput,
			Output: ac.BackboneOutput,
		},
		backends(cfg.ONNX),
	)
}

func backends(oc config.ONNXConfig) loader.Backends {
	return loader.Backends{
		SavedModel: func(a inference.Artifact) (inference.Predictor, error) {
			m, err := tfmodel.LoadSavedModel(a)
			if err != nil {
				return nil, err
			}
			return m, nil
		},
		ONNX: func(a inference.Artifact) (inference.Predictor, error) {
			if err := onnxmodel.Init(oc.LibraryPath); err != nil {
				return nil, err
			}
			s, err := onnxmodel.Load(a)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
		Graph: func(a inference.Artifact) (inference.Predictor, error) {
			m, err := tfmodel.ImportGraph(a)
			if err != nil {
				return nil, err
			}
			return m, nil
		},
		OpenGraph: func(path, inputOp, outputOp string) (arch.FeatureExtractor, error) {
			m, err := tfmodel.OpenGraph(path, inputOp, outputOp)
			if err != nil {
				return nil, err
			}
			return m, nil
		},
		ReadHDF5: h5model.ReadWeights,
	}
}
