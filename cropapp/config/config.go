// Package config cropapp 설정
//
// 기본값 -> YAML 설정 파일 -> CROPAPP_* 환경변수 순으로 덮어쓴다.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/harrison-roh/crop-disease-classification/cropapp/constants"
)

// Config 전체 설정
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Model        ModelConfig        `koanf:"model"`
	Architecture ArchitectureConfig `koanf:"architecture"`
	ONNX         ONNXConfig         `koanf:"onnx"`
	Store        StoreConfig        `koanf:"store"`
	Logging      LoggingConfig      `koanf:"logging"`
}

// ServerConfig HTTP 서버
type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	Mode            string        `koanf:"mode" validate:"oneof=debug release test"`
}

// ModelConfig 추론 모델과 레이블 탐색
type ModelConfig struct {
	Path       string `koanf:"path"`
	LabelsPath string `koanf:"labels_path"`

	// 비어 있으면 실행 파일 기준 ../models 와 ./models 에서 탐색
	ModelCandidates []string `koanf:"model_candidates"`
	LabelCandidates []string `koanf:"label_candidates"`

	TopK       int    `koanf:"top_k" validate:"gte=1"`
	ImageSize  int    `koanf:"image_size" validate:"gte=1"`
	ConfigFile string `koanf:"config_file"`
}

// ArchitectureConfig 가중치만 저장된 모델을 재구성할 때의 구조
type ArchitectureConfig struct {
	BackboneGraph  string  `koanf:"backbone_graph"`
	BackboneInput  string  `koanf:"backbone_input"`
	BackboneOutput string  `koanf:"backbone_output"`
	HiddenUnits    int     `koanf:"hidden_units" validate:"gte=1"`
	Dropout        float64 `koanf:"dropout" validate:"gte=0,lt=1"`
	HiddenLayer    string  `koanf:"hidden_layer" validate:"required"`
	OutputLayer    string  `koanf:"output_layer" validate:"required,nefield=HiddenLayer"`
	Flip           string  `koanf:"flip" validate:"omitempty,oneof=horizontal vertical horizontal_and_vertical"`
	Rotation       float64 `koanf:"rotation" validate:"gte=0"`
	Zoom           float64 `koanf:"zoom" validate:"gte=0"`
}

// ONNXConfig ONNX Runtime
type ONNXConfig struct {
	LibraryPath string `koanf:"library_path"`
}

// StoreConfig 농민 정보 저장소
type StoreConfig struct {
	Driver        string        `koanf:"driver" validate:"oneof=mongo badger mysql memory"`
	MongoURI      string        `koanf:"mongo_uri" validate:"required_if=Driver mongo"`
	MongoDatabase string        `koanf:"mongo_database"`
	Collection    string        `koanf:"collection"`
	BadgerPath    string        `koanf:"badger_path"`
	MySQLDSN      string        `koanf:"mysql_dsn" validate:"required_if=Driver mysql"`
	Table         string        `koanf:"table"`
	Timeout       time.Duration `koanf:"timeout" validate:"gt=0"`
}

// LoggingConfig 로그
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error fatal panic disabled off"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":5000",
			CORSOrigins:     []string{"*"},
			ShutdownTimeout: 10 * time.Second,
			Mode:            "release",
		},
		Model: ModelConfig{
			TopK:      constants.TopK,
			ImageSize: constants.ImageSize,
		},
		Architecture: ArchitectureConfig{
			BackboneInput:  "input_1",
			BackboneOutput: "out_relu",
			HiddenUnits:    constants.HiddenUnits,
			Dropout:        constants.Dropout,
			HiddenLayer:    constants.HiddenLayer,
			OutputLayer:    constants.OutputLayer,
			Flip:           "horizontal",
			Rotation:       0.1,
			Zoom:           0.1,
		},
		Store: StoreConfig{
			Driver:        "mongo",
			MongoURI:      "mongodb://localhost:27017",
			MongoDatabase: constants.FarmersDatabase,
			Collection:    constants.FarmersCollection,
			BadgerPath:    "data/farmers",
			Table:         constants.FarmersTable,
			Timeout:       5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

var validate = validator.New()

// Validate 설정값 검증
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("Invalid configuration: %w", err)
	}

	return nil
}
