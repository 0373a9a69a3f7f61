package inference

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harrison-roh/crop-disease-classification/cropapp/constants"
	"gopkg.in/yaml.v2"
)

// ModelConfig 모델 아티팩트 옆에 두는 config.yaml
type ModelConfig struct {
	Name                string   `yaml:"name"`
	Type                string   `yaml:"type"`
	Tags                []string `yaml:"tags"`
	InputShape          []int32  `yaml:"inputShape"`
	InputOperationName  string   `yaml:"inputOperationName"`
	OutputOperationName string   `yaml:"outputOperationName"`
	FrozenGraphFile     string   `yaml:"frozenGraphFile"`
	Description         string   `yaml:"description"`
}

const (
	modelConfigFile    = "config.yaml"
	modelConfigExt     = ".yaml"
	defaultFrozenGraph = "frozen_graph.pb"
	defaultServingTag  = "serve"
)

// ModelConfigPath 아티팩트에 대응하는 config.yaml 경로
//
// 디렉토리 아티팩트는 <dir>/config.yaml, 파일 아티팩트는 확장자를 .yaml로 바꾼 경로
func ModelConfigPath(artifactPath string) string {
	if fi, err := os.Stat(artifactPath); err == nil && fi.IsDir() {
		return filepath.Join(artifactPath, modelConfigFile)
	}

	return strings.TrimSuffix(artifactPath, filepath.Ext(artifactPath)) + modelConfigExt
}

// LoadModelConfig 모델 설정 로드, 설정 파일이 없으면 기본값 사용
//
// inputShape가 없으면 imageSize x imageSize x 3 으로 간주한다.
func LoadModelConfig(artifactPath, cfgFile string, imageSize int) (ModelConfig, error) {
	var cfg ModelConfig

	if cfgFile == "" {
		cfgFile = ModelConfigPath(artifactPath)
	}

	b, err := os.ReadFile(cfgFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("Fail to read model config: %s: %w", cfgFile, err)
	default:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("Fail to parse model config: %s: %w", cfgFile, err)
		}
	}

	cfg.applyDefaults(artifactPath, imageSize)

	if len(cfg.InputShape) != 3 || cfg.InputShape[0] <= 0 ||
		cfg.InputShape[0] != cfg.InputShape[1] || cfg.InputShape[2] != int32(constants.Channels) {
		return cfg, fmt.Errorf("Invalid inputShape %v: expected [size, size, %d]",
			cfg.InputShape, constants.Channels)
	}

	return cfg, nil
}

func (c *ModelConfig) applyDefaults(artifactPath string, imageSize int) {
	if c.Name == "" {
		c.Name = strings.TrimSuffix(filepath.Base(artifactPath), filepath.Ext(artifactPath))
	}
	if len(c.Tags) == 0 {
		c.Tags = []string{defaultServingTag}
	}
	if len(c.InputShape) == 0 {
		if imageSize <= 0 {
			imageSize = constants.ImageSize
		}
		size := int32(imageSize)
		c.InputShape = []int32{size, size, int32(constants.Channels)}
	}
	if c.FrozenGraphFile == "" {
		c.FrozenGraphFile = defaultFrozenGraph
	}
}

// ImageSize 입력 이미지 한 변의 크기
func (c ModelConfig) ImageSize() int {
	return int(c.InputShape[0])
}

// BatchShape 배치 차원을 포함한 입력 형태 (1, H, W, C)
func (c ModelConfig) BatchShape() []int {
	shape := []int{1}
	for _, d := range c.InputShape {
		shape = append(shape, int(d))
	}

	return shape
}
