package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths 설정 파일 탐색 순서, 처음 발견된 파일 사용
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/cropapp/config.yaml",
}

const (
	// ConfigPathEnvVar 설정 파일 경로 지정
	ConfigPathEnvVar = "CONFIG_PATH"

	// EnvPrefix 설정 키를 덮어쓰는 환경변수 접두어
	EnvPrefix = "CROPAPP_"
)

// 환경변수로는 쉼표로 구분된 문자열이 들어오는 목록 필드
var sliceConfigPaths = []string{
	"server.cors_origins",
	"model.model_candidates",
	"model.label_candidates",
}

// Load 기본값, 설정 파일, 환경변수 순으로 설정 로드
func Load() (*Config, error) {
	return load(findConfigFile())
}

// LoadFile 지정한 설정 파일 사용, 빈 경로면 파일 없이 로드
func LoadFile(path string) (*Config, error) {
	return load(path)
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("Fail to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("Fail to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("Fail to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("Fail to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envTransformFunc 환경변수 이름을 설정 키로 변환
//
//	CROPAPP_SERVER_ADDR       -> server.addr
//	CROPAPP_MODEL_LABELS_PATH -> model.labels_path
//	CROPAPP_STORE_MONGO_URI   -> store.mongo_uri
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))

	return strings.Replace(key, "_", ".", 1)
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}

		var parts []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}

		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("Fail to set %s: %w", path, err)
		}
	}

	return nil
}
