package main

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"stat-arb-engine/internal/config"
)

// newLogger 创建 JSON 日志；配置了 log_file 时同时写入滚动文件
func newLogger(app config.AppConfig) *zap.Logger {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(app.LogLevel); err != nil {
		lvl = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewJSONEncoder(encCfg)

	cores := []zapcore.Core{zapcore.NewCore(enc, zapcore.Lock(os.Stdout), lvl)}
	if app.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(app.LogFile), 0o755); err == nil {
			fileWriter := &lumberjack.Logger{
				Filename:   app.LogFile,
				MaxSize:    app.LogMaxSizeMB,
				MaxBackups: app.LogMaxBackups,
				MaxAge:     app.LogMaxAgeDays,
				Compress:   true,
			}
			cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(fileWriter), lvl))
		}
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	if app.Name != "" {
		logger = logger.With(zap.String("app", app.Name))
	}
	return logger
}
