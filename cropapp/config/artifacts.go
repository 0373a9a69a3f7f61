package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/harrison-roh/crop-disease-classification/cropapp/constants"
)

const (
	// ModelPathEnvVar 모델 아티팩트 경로 지정
	ModelPathEnvVar = "MODEL_PATH"
	// LabelsPathEnvVar 레이블 파일 경로 지정
	LabelsPathEnvVar = "LABELS_PATH"
)

var (
	ErrModelNotFound  = errors.New("model file not found. Set MODEL_PATH or place the model in ./models/")
	ErrLabelsNotFound = errors.New("labels file not found. Set LABELS_PATH or place label_map.json in ./models/")
)

// modelFileNames 모델 디렉토리에서 찾는 아티팩트 이름
var modelFileNames = []string{
	constants.DefaultModelName,
	constants.DefaultModelName + ".onnx",
	constants.DefaultModelName + "_full.h5",
	constants.DefaultModelName + ".h5",
	constants.DefaultModelName + ".safetensors",
	constants.DefaultModelName + ".pb",
}

// FindExistingPath 처음으로 존재하는 경로를 절대경로로 반환
func FindExistingPath(candidates []string) (string, bool) {
	for _, p := range candidates {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			return abs, true
		}
		return p, true
	}

	return "", false
}

// modelSearchPaths 모델 아티팩트 탐색 순서
//
// MODEL_PATH, model.path, 그 다음 model.model_candidates 또는
// <실행파일 디렉토리>/../models, ./models 의 기본 이름들
func (c *ModelConfig) modelSearchPaths(exeDir string) []string {
	candidates := []string{os.Getenv(ModelPathEnvVar), c.Path}
	if len(c.ModelCandidates) > 0 {
		return append(candidates, c.ModelCandidates...)
	}

	for _, dir := range modelDirs(exeDir) {
		for _, name := range modelFileNames {
			candidates = append(candidates, filepath.Join(dir, name))
		}
	}

	return candidates
}

// labelSearchPaths 레이블 파일 탐색 순서
func (c *ModelConfig) labelSearchPaths(exeDir string) []string {
	candidates := []string{os.Getenv(LabelsPathEnvVar), c.LabelsPath}
	if len(c.LabelCandidates) > 0 {
		return append(candidates, c.LabelCandidates...)
	}

	return append(candidates,
		filepath.Join(exeDir, "..", constants.ModelsDir, constants.LabelsFileName),
		filepath.Join(exeDir, "..", constants.LabelsFileName),
		filepath.Join(constants.ModelsDir, constants.LabelsFileName),
	)
}

func modelDirs(exeDir string) []string {
	return []string{
		filepath.Join(exeDir, "..", constants.ModelsDir),
		constants.ModelsDir,
	}
}

// ResolveArtifacts 모델과 레이블 파일 경로 결정
func (c *ModelConfig) ResolveArtifacts(exeDir string) (modelPath, labelsPath string, err error) {
	var ok bool

	if modelPath, ok = FindExistingPath(c.modelSearchPaths(exeDir)); !ok {
		return "", "", ErrModelNotFound
	}
	if labelsPath, ok = FindExistingPath(c.labelSearchPaths(exeDir)); !ok {
		return "", "", ErrLabelsNotFound
	}

	return modelPath, labelsPath, nil
}

// ExecutableDir 실행 파일이 있는 디렉토리, 알 수 없으면 현재 디렉토리
func ExecutableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}

	return filepath.Dir(exe)
}
