package logger

import "go.uber.org/zap"

var (
	defaultLogger = NewLogger("bootvol", zap.InfoLevel)
)

// SetupDefaultLogger 替换默认日志, 未注入日志的组件使用它.
func SetupDefaultLogger(l *zap.SugaredLogger) {
	defaultLogger = l
}

// Default 返回当前的默认日志.
func Default() *zap.SugaredLogger {
	return defaultLogger
}
