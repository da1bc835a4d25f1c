package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu  sync.RWMutex
	Log *zap.Logger
)

func init() {
	Log = build(zapcore.DebugLevel, "console")
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stack",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}
}

func build(level zapcore.Level, format string) *zap.Logger {
	encCfg := encoderConfig()

	var enc zapcore.Encoder
	if strings.EqualFold(format, "json") {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), level)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}

// Init 重建全局 logger，format 为 "console" 或 "json"
func Init(level, format string) error {
	var lvl zapcore.Level
	if level == "" {
		level = "info"
	}
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("log level %q: %w", level, err)
	}
	Set(build(lvl, format))
	return nil
}

// Set 替换全局 logger（单测传 zap.NewNop()）
func Set(l *zap.Logger) {
	if l == nil {
		return
	}
	mu.Lock()
	Log = l
	mu.Unlock()
}

// L returns the current logger without the helper caller skip.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return Log.WithOptions(zap.AddCallerSkip(-1))
}

// Named 组件子 logger，如 logger.Named("hub")
func Named(name string) *zap.Logger { return L().Named(name) }

func Sync() { _ = current().Sync() }

func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return Log
}

// 快捷方法
func Info(msg string, fields ...zap.Field) { current().Info(msg, fields...) }
func Infof(format string, args ...interface{}) {
	current().Info(fmt.Sprintf(format, args...))
}
func Warn(msg string, fields ...zap.Field) { current().Warn(msg, fields...) }
func Warnf(format string, args ...interface{}) {
	current().Warn(fmt.Sprintf(format, args...))
}
func Error(msg string, fields ...zap.Field) { current().Error(msg, fields...) }

func Errorf(format string, args ...interface{}) {
	current().Error(fmt.Sprintf(format, args...))
}

func Debug(msg string, fields ...zap.Field) { current().Debug(msg, fields...) }
