package logger

import (
	"os"
	"strings"

	"sleepswap-engine/internal/models"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var sugaredLogger *zap.SugaredLogger

// InitLogger 初始化 zap 日志记录器，支持控制台、文件或两者同时输出。
func InitLogger(cfg models.LogConfig) {
	logLevel := zap.NewAtomicLevel()
	if err := logLevel.UnmarshalText([]byte(cfg.Level)); err != nil {
		logLevel.SetLevel(zap.InfoLevel)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)

	var cores []zapcore.Core

	output := strings.ToLower(cfg.Output)
	if output == "file" || output == "both" {
		// lumberjack 负责日志切割
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
		cores = append(cores, zapcore.NewCore(consoleEncoder, fileWriter, logLevel))
	}
	if output == "console" || output == "both" || len(cores) == 0 {
		cores = append(cores, zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), logLevel))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	sugaredLogger = logger.Sugar()
}

// S 返回全局的 sugared logger 实例
func S() *zap.SugaredLogger {
	if sugaredLogger == nil {
		// logger 未初始化时提供一个应急 logger
		logger, _ := zap.NewDevelopment()
		return logger.Sugar()
	}
	return sugaredLogger
}

// L 返回非 sugared 的 logger，供需要结构化字段的组件使用。
func L() *zap.Logger {
	return S().Desugar()
}
