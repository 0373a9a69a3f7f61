// Package logging 프로세스 전역 zerolog 로거
//
// 설정 로드 후 main에서 Init을 호출한다. 그 전에는 stderr로 info 레벨 JSON을 출력한다.
//
//	logging.Init(logging.Config{Level: "debug", Format: "console"})
//	logging.Info().Str("model", path).Msg("Model loaded")
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config 로깅 설정
type Config struct {
	// 최소 레벨: trace, debug, info, warn, error, fatal, panic, disabled
	Level string

	// json 또는 console
	Format string

	// 로그마다 file:line 추가
	Caller bool

	// 기본값 os.Stderr
	Output io.Writer
}

var (
	log zerolog.Logger
	mu  sync.RWMutex
)

//nolint:gochecknoinits // Init 호출 전에도 로깅 가능해야 함
func init() {
	initLogger(Config{})
}

// Init 전역 로거 (재)설정
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	initLogger(cfg)
}

func initLogger(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	output := cfg.Output
	if strings.EqualFold(cfg.Format, "console") {
		output = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}

	ctx := zerolog.New(output).With().Timestamp()
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	log = ctx.Logger()
}

// ParseLevel 레벨 이름을 zerolog 레벨로 변환, 알 수 없으면 info
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Logger 전역 로거 복사본 반환
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// With 하위 로거 컨텍스트 생성
func With() zerolog.Context {
	l := Logger()
	return l.With()
}

func Debug() *zerolog.Event {
	l := Logger()
	return l.Debug()
}

func Info() *zerolog.Event {
	l := Logger()
	return l.Info()
}

func Warn() *zerolog.Event {
	l := Logger()
	return l.Warn()
}

func Error() *zerolog.Event {
	l := Logger()
	return l.Error()
}

// Fatal 이벤트 전송 후 프로세스를 종료(status 1)
func Fatal() *zerolog.Event {
	l := Logger()
	return l.Fatal()
}
