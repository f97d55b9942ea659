// Package logger - логирование с префиксом сервиса поверх zap.
// Поддерживается логирование времени выполнения функций (DeferLogDuration).
package logger

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// SlowThreshold - порог, после которого длительность вызова пишется и на уровне info.
const SlowThreshold = 100 * time.Millisecond

var (
	mu     sync.RWMutex
	base   = zap.NewNop()
	prefix string
)

// Init настраивает глобальный логгер. Пустой level берётся из LOG_LEVEL.
func Init(level string) error {
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if level == "trace" {
		level = "debug"
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	mu.Lock()
	base = l
	mu.Unlock()
	return nil
}

// SetPrefix задаёт префикс (имя логгера) для всех последующих логов, например "api".
func SetPrefix(p string) {
	mu.Lock()
	prefix = p
	mu.Unlock()
}

// L возвращает текущий zap-логгер с префиксом.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if prefix == "" {
		return base
	}
	return base.Named(prefix)
}

// Sync сбрасывает буферы; вызывается при остановке процесса.
func Sync() error {
	return L().Sync()
}

func Info(v ...any) {
	L().Info(fmt.Sprint(v...))
}

func Infof(format string, v ...any) {
	L().Info(fmt.Sprintf(format, v...))
}

func Debugf(format string, v ...any) {
	L().Debug(fmt.Sprintf(format, v...))
}

// Warnf - для ошибок, которые не должны прерывать операцию (например, запись журнала действий).
func Warnf(format string, v ...any) {
	L().Warn(fmt.Sprintf(format, v...))
}

func Error(v ...any) {
	L().Error(fmt.Sprint(v...))
}

func Errorf(format string, v ...any) {
	L().Error(fmt.Sprintf(format, v...))
}

// LogDuration пишет имя функции и время выполнения.
// На уровне info пишутся только вызовы дольше 100ms, на debug - все.
func LogDuration(fn string, start time.Time) {
	elapsed := time.Since(start)
	l := L()
	if elapsed >= SlowThreshold {
		l.Info("slow call", zap.String("fn", fn), zap.Int64("duration_ms", elapsed.Milliseconds()))
		return
	}
	if ce := l.Check(zapcore.DebugLevel, "call"); ce != nil {
		ce.Write(zap.String("fn", fn), zap.Int64("duration_ms", elapsed.Milliseconds()))
	}
}

// DeferLogDuration возвращает функцию для defer: defer logger.DeferLogDuration("user.GetByID", time.Now())().
func DeferLogDuration(fn string, start time.Time) func() {
	return func() { LogDuration(fn, start) }
}
