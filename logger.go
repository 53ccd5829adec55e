/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-24 10:02:11
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-25 19:37:50
 * @FilePath: \go-rtcc\logger.go
 * @Description: go-rtcc 日志接口，直接复用 go-logger
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package rtcc

import (
	"os"
	"time"

	wscconfig "github.com/kamalyes/go-config/pkg/wsc"
	"github.com/kamalyes/go-logger"
)

// RTCCLogger 直接使用 go-logger.ILogger
type RTCCLogger = logger.ILogger

// NewRTCCLogger 创建新的RTCC日志器，基于 go-logger
func NewRTCCLogger(config *logger.Logger) RTCCLogger {
	return config
}

// NewDefaultRTCCLogger 创建默认配置的RTCC日志器
func NewDefaultRTCCLogger() RTCCLogger {
	return logger.NewLogger().
		WithLevel(logger.INFO).
		WithPrefix("[RTCC] ").
		WithShowCaller(false).
		WithColorful(true).
		WithTimeFormat("2006-01-02 15:04:05")
}

// NewNoOpLogger 创建空日志实例
func NewNoOpLogger() RTCCLogger {
	return logger.NewEmptyLogger()
}

// 全局日志器
var (
	// DefaultLogger 默认日志器实例
	DefaultLogger RTCCLogger = NewDefaultRTCCLogger()

	// NoOpLoggerInstance 空日志器实例
	NoOpLoggerInstance RTCCLogger = NewNoOpLogger()
)

// SetDefaultLogger 设置默认日志器
func SetDefaultLogger(l RTCCLogger) {
	DefaultLogger = l
}

// initLogger 根据配置初始化日志器
func initLogger(config *wscconfig.WSC) RTCCLogger {
	// 如果配置中有日志配置且启用，使用配置中的
	if config != nil && config.Logging != nil && config.Logging.Enabled {
		loggerConfig := logger.NewLogger().
			WithLevel(parseLogLevel(config.Logging.Level)).
			WithPrefix("[RTCC] ").
			WithShowCaller(false).
			WithColorful(true).
			WithTimeFormat(time.DateTime)

		switch config.Logging.Output {
		case "file":
			if config.Logging.FilePath != "" {
				if config.Logging.MaxSize > 0 && config.Logging.MaxBackups > 0 {
					rotateWriter := logger.NewRotateWriter(
						logger.WithFilePath(config.Logging.FilePath),
						logger.WithMaxSize(int64(config.Logging.MaxSize)*1024*1024),
						logger.WithMaxFiles(config.Logging.MaxBackups),
					)
					loggerConfig = loggerConfig.WithOutput(rotateWriter)
				} else {
					fileWriter := logger.NewFileWriter(logger.WithFileWriterPath(config.Logging.FilePath))
					loggerConfig = loggerConfig.WithOutput(fileWriter)
				}
			}
		default:
			loggerConfig = loggerConfig.WithOutput(logger.NewConsoleWriter(logger.WithConsoleOutput(os.Stdout)))
		}

		return loggerConfig
	}

	return NewDefaultRTCCLogger()
}

// parseLogLevel 解析日志级别字符串
func parseLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug", "DEBUG":
		return logger.DEBUG
	case "info", "INFO":
		return logger.INFO
	case "warn", "WARN", "warning", "WARNING":
		return logger.WARN
	case "error", "ERROR":
		return logger.ERROR
	case "fatal", "FATAL":
		return logger.FATAL
	default:
		return logger.INFO
	}
}
