package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options 日志构造参数.
type Options struct {
	Name    string
	Level   zapcore.Level
	Format  string // console 或 json, 默认 console.
	Writers []io.Writer
}

func NewLogger(name string, level zapcore.Level, writers ...io.Writer) *zap.SugaredLogger {
	return New(Options{Name: name, Level: level, Writers: writers})
}

// New 按 Options 构造日志, 多个输出目标共享同一编码配置.
func New(opts Options) *zap.SugaredLogger {
	writers := opts.Writers
	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}
	name := opts.Name
	cfg := zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		FunctionKey:   zapcore.OmitKey,
		MessageKey:    "msg",
		StacktraceKey: "stacktrace",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel: func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(fmt.Sprintf("%-7s", "["+level.CapitalString()+"]"))
		},
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			if name != "" {
				enc.AppendString("[" + name + "]")
			}
			enc.AppendString("[" + t.Format("2006-01-02 15:04:05.000") + "]")
		},
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller: func(caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString("[" + caller.TrimmedPath() + "]")
		},
		ConsoleSeparator: " ",
	}
	switch runtime.GOOS {
	case "windows":
		cfg.LineEnding = "\r\n"
	}

	var encoder zapcore.Encoder
	if opts.Format == FormatJSON {
		jsonCfg := cfg
		jsonCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		jsonCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		jsonCfg.EncodeCaller = zapcore.ShortCallerEncoder
		encoder = zapcore.NewJSONEncoder(jsonCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(cfg)
	}

	var cores []zapcore.Core
	for _, w := range writers {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(w), opts.Level))
	}
	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if opts.Format == FormatJSON && name != "" {
		l = l.Named(name)
	}
	return l.Sugar()
}

// ParseLevel 解析 debug/info/warn/error 等级别名, 不区分大小写.
func ParseLevel(s string) (zapcore.Level, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(s)))); err != nil {
		return zapcore.InfoLevel, errors.Wrapf(err, "parse log level %q", s)
	}
	return level, nil
}
