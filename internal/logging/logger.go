package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how verbosely a process logs.
type Options struct {
	Name  string // logger name, e.g. "speedcheck"
	Dir   string // rotated JSON log directory; empty disables the file sink
	Level string // debug | info | warn | error
}

// NewLogger returns a logger writing human readable lines to stderr and,
// when Dir is set, JSON lines to a rotated file in Dir.
func NewLogger(opts Options) (*zap.Logger, error) {
	level := zap.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, err
		}
	}

	console := zap.NewProductionEncoderConfig()
	console.TimeKey = "ts"
	console.EncodeTime = zapcore.ISO8601TimeEncoder
	console.EncodeLevel = zapcore.CapitalLevelEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(console), zapcore.Lock(os.Stderr), level),
	}

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, err
		}
		name := opts.Name
		if name == "" {
			name = "speedcheck"
		}
		w := zapcore.AddSync(&lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, name+".log"),
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		})
		cfg := zap.NewProductionEncoderConfig()
		cfg.TimeKey = "ts"
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(cfg), w, level))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	if opts.Name != "" {
		logger = logger.Named(opts.Name)
	}
	return logger, nil
}
