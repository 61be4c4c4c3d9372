package utils

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel enumerates supported logging levels.
type LogLevel string

// LogFormat enumerates supported log encodings.
type LogFormat string

// Supported log levels.
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Supported log formats.
const (
	LogFormatStructured LogFormat = "structured"
	LogFormatConsole    LogFormat = "console"
	LogFormatAuto       LogFormat = "auto"
)

const (
	unsupportedLogLevelTemplateConstant  = "unsupported log level %q"
	unsupportedLogFormatTemplateConstant = "unsupported log format %q"
	timestampKeyConstant                 = "ts"
	messageKeyConstant                   = "msg"
	levelKeyConstant                     = "level"
	nameKeyConstant                      = "logger"
	consoleTimeLayoutConstant            = "15:04:05"
)

// LoggerOutputs carries the diagnostic logger and the human-facing console logger. The console
// logger is a no-op unless the console format is selected.
type LoggerOutputs struct {
	DiagnosticLogger *zap.Logger
	ConsoleLogger    *zap.Logger
}

// LoggerFactory builds zap loggers writing to standard error.
type LoggerFactory struct {
	terminalDetector func(fileDescriptor uintptr) bool
}

// NewLoggerFactory creates a LoggerFactory.
func NewLoggerFactory() *LoggerFactory {
	return &LoggerFactory{terminalDetector: func(fileDescriptor uintptr) bool {
		return isatty.IsTerminal(fileDescriptor) || isatty.IsCygwinTerminal(fileDescriptor)
	}}
}

// ResolveFormat maps LogFormatAuto to console on a terminal and structured otherwise.
func (factory *LoggerFactory) ResolveFormat(format LogFormat) LogFormat {
	normalized := LogFormat(strings.ToLower(strings.TrimSpace(string(format))))
	if normalized != LogFormatAuto && len(normalized) > 0 {
		return normalized
	}
	if factory.terminalDetector != nil && factory.terminalDetector(os.Stderr.Fd()) {
		return LogFormatConsole
	}
	return LogFormatStructured
}

// CreateLoggerOutputs builds loggers for the requested level and format.
func (factory *LoggerFactory) CreateLoggerOutputs(level LogLevel, format LogFormat) (LoggerOutputs, error) {
	zapLevel, levelError := parseLogLevel(level)
	if levelError != nil {
		return LoggerOutputs{}, levelError
	}

	sink := zapcore.Lock(zapcore.AddSync(os.Stderr))
	switch factory.ResolveFormat(format) {
	case LogFormatStructured:
		encoderConfiguration := zap.NewProductionEncoderConfig()
		encoderConfiguration.TimeKey = timestampKeyConstant
		encoderConfiguration.EncodeTime = zapcore.ISO8601TimeEncoder
		diagnosticLogger := zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfiguration), sink, zapLevel))
		return LoggerOutputs{DiagnosticLogger: diagnosticLogger, ConsoleLogger: zap.NewNop()}, nil
	case LogFormatConsole:
		diagnosticLogger := zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoderConfiguration(true)), sink, zapLevel))
		consoleLogger := zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoderConfiguration(false)), sink, zapLevel))
		return LoggerOutputs{DiagnosticLogger: diagnosticLogger, ConsoleLogger: consoleLogger}, nil
	default:
		return LoggerOutputs{}, fmt.Errorf(unsupportedLogFormatTemplateConstant, format)
	}
}

func consoleEncoderConfiguration(includeLevel bool) zapcore.EncoderConfig {
	encoderConfiguration := zapcore.EncoderConfig{
		TimeKey:        timestampKeyConstant,
		MessageKey:     messageKeyConstant,
		NameKey:        nameKeyConstant,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.TimeEncoderOfLayout(consoleTimeLayoutConstant),
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
	}
	if includeLevel {
		encoderConfiguration.LevelKey = levelKeyConstant
	}
	return encoderConfiguration
}

func parseLogLevel(level LogLevel) (zapcore.Level, error) {
	switch LogLevel(strings.ToLower(strings.TrimSpace(string(level)))) {
	case LogLevelDebug:
		return zapcore.DebugLevel, nil
	case LogLevelInfo:
		return zapcore.InfoLevel, nil
	case LogLevelWarn:
		return zapcore.WarnLevel, nil
	case LogLevelError:
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf(unsupportedLogLevelTemplateConstant, level)
	}
}
