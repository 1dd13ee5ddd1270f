package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// До Init пишем в никуда, чтобы пакеты можно было гонять в тестах.
var InfoLogger, FatalLogger *zap.Logger = zap.NewNop(), zap.NewNop()

var (
	serviceName = "default"
)

type Config struct {
	Level       string
	Development bool
}

// Init собирает zap-логгеры из конфига.
func Init(conf Config) error {
	level := zapcore.InfoLevel
	if conf.Level != "" {
		if err := level.UnmarshalText([]byte(conf.Level)); err != nil {
			return fmt.Errorf("logger: bad level %q: %w", conf.Level, err)
		}
	}

	zcfg := zap.NewProductionConfig()
	if conf.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	l, err := zcfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("logger: build: %w", err)
	}

	InfoLogger = l
	FatalLogger = l
	return nil
}

func Sync() {
	_ = InfoLogger.Sync()
}

func SetServiceName(newName string) string {
	oldName := serviceName
	serviceName = newName

	return oldName
}

func Debug(format string, args ...interface{}) {
	InfoLogger.With(
		zap.String("service", serviceName),
	).Debug(fmt.Sprintf(format, args...))
}

func Info(format string, args ...interface{}) {
	if InfoLogger == nil {
		panic("InfoLogger is not initialized")
	}

	msg := fmt.Sprintf(format, args...)
	InfoLogger.With(
		zap.String("service", serviceName),
	).Info(msg)
}

func Warn(format string, args ...interface{}) {
	if InfoLogger == nil {
		panic("InfoLogger is not initialized")
	}

	msg := fmt.Sprintf(format, args...)
	InfoLogger.With(
		zap.String("service", serviceName),
	).Warn(msg)
}

func Error(format string, args ...interface{}) {
	if InfoLogger == nil {
		panic("InfoLogger is not initialized")
	}

	msg := fmt.Sprintf(format, args...)
	InfoLogger.With(
		zap.String("service", serviceName),
	).Error(msg)
}

func Fatal(format string, args ...interface{}) {
	if FatalLogger == nil {
		panic("FatalLogger is not initialized")
	}

	msg := fmt.Sprintf(format, args...)
	FatalLogger.With(
		zap.String("service", serviceName),
	).Fatal(msg)
}
