package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nhle/remindly/internal/model"
)

// maxBackups is how many rotated log files are kept.
const maxBackups = 3

// Level converts a configured level name to a zap level. Unknown names
// select info.
func Level(name string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05 MST"))
}

// New builds the application logger. Console output goes to stderr; when
// cfg.File is set, JSON lines go to a size-rotated file instead. The
// returned func flushes buffered entries.
func New(cfg model.LogConfig) (*zap.SugaredLogger, func()) {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "component",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var (
		encoder zapcore.Encoder
		sink    zapcore.WriteSyncer
	)
	if cfg.File == "" {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderConfig.EncodeTime = timeEncoder
		encoderConfig.ConsoleSeparator = " | "
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
		sink = zapcore.Lock(os.Stderr)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
		sink = zapcore.AddSync(rotatingFile(cfg))
	}

	core := zapcore.NewCore(encoder, sink, zap.NewAtomicLevelAt(Level(cfg.Level)))
	logger := zap.New(core, zap.AddCaller())
	return logger.Sugar(), func() { _ = logger.Sync() }
}

func rotatingFile(cfg model.LogConfig) io.Writer {
	size := cfg.MaxSizeMB
	if size <= 0 {
		size = 10
	}
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    size,
		MaxBackups: maxBackups,
		Compress:   true,
	}
}
