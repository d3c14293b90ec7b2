package utils

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	logLevelDebugStringConstant          = "debug"
	logLevelInfoStringConstant           = "info"
	logLevelWarnStringConstant           = "warn"
	logLevelErrorStringConstant          = "error"
	logFormatStructuredStringConstant    = "structured"
	logFormatConsoleStringConstant       = "console"
	unsupportedLogLevelTemplateConstant  = "unsupported log level: %s"
	unsupportedLogFormatTemplateConstant = "unsupported log format: %s"
	consoleTimeLayoutConstant            = "15:04:05.000"
)

// LogLevel enumerates supported logging granularities.
type LogLevel string

// Log levels accepted by ParseLogLevel.
const (
	LogLevelDebug LogLevel = LogLevel(logLevelDebugStringConstant)
	LogLevelInfo  LogLevel = LogLevel(logLevelInfoStringConstant)
	LogLevelWarn  LogLevel = LogLevel(logLevelWarnStringConstant)
	LogLevelError LogLevel = LogLevel(logLevelErrorStringConstant)
)

// LogFormat enumerates supported logger output encodings.
type LogFormat string

// Log formats accepted by ParseLogFormat.
const (
	LogFormatStructured LogFormat = LogFormat(logFormatStructuredStringConstant)
	LogFormatConsole    LogFormat = LogFormat(logFormatConsoleStringConstant)
)

var logLevelMapping = map[LogLevel]zapcore.Level{
	LogLevelDebug: zapcore.DebugLevel,
	LogLevelInfo:  zapcore.InfoLevel,
	LogLevelWarn:  zapcore.WarnLevel,
	LogLevelError: zapcore.ErrorLevel,
}

// LogLevelNames lists the accepted log levels in display order.
func LogLevelNames() []string {
	return []string{string(LogLevelDebug), string(LogLevelInfo), string(LogLevelWarn), string(LogLevelError)}
}

// LogFormatNames lists the accepted log formats in display order.
func LogFormatNames() []string {
	return []string{string(LogFormatConsole), string(LogFormatStructured)}
}

// ParseLogLevel normalizes a textual log level.
func ParseLogLevel(raw string) (LogLevel, error) {
	level := LogLevel(strings.ToLower(strings.TrimSpace(raw)))
	if _, exists := logLevelMapping[level]; !exists {
		return "", fmt.Errorf(unsupportedLogLevelTemplateConstant, raw)
	}
	return level, nil
}

// ParseLogFormat normalizes a textual log format.
func ParseLogFormat(raw string) (LogFormat, error) {
	format := LogFormat(strings.ToLower(strings.TrimSpace(raw)))
	switch format {
	case LogFormatConsole, LogFormatStructured:
		return format, nil
	default:
		return "", fmt.Errorf(unsupportedLogFormatTemplateConstant, raw)
	}
}

// LoggerFactoryOption customizes a LoggerFactory.
type LoggerFactoryOption func(*LoggerFactory)

// WithLogOutput directs every logger built by the factory to writer instead of standard error.
func WithLogOutput(writer io.Writer) LoggerFactoryOption {
	return func(factory *LoggerFactory) {
		if writer != nil {
			factory.output = zapcore.Lock(zapcore.AddSync(writer))
		}
	}
}

// LoggerFactory builds zap.Logger instances that share one output destination.
type LoggerFactory struct {
	output zapcore.WriteSyncer
}

// NewLoggerFactory constructs a factory writing to standard error unless overridden.
func NewLoggerFactory(options ...LoggerFactoryOption) *LoggerFactory {
	factory := &LoggerFactory{output: zapcore.Lock(os.Stderr)}
	for _, option := range options {
		option(factory)
	}
	return factory
}

// CreateLogger produces a zap.Logger honoring the requested log level and format.
// Console output is human oriented and omits stack traces; structured output is JSON.
func (factory *LoggerFactory) CreateLogger(requestedLogLevel LogLevel, requestedLogFormat LogFormat) (*zap.Logger, error) {
	zapLogLevel, levelExists := logLevelMapping[requestedLogLevel]
	if !levelExists {
		return nil, fmt.Errorf(unsupportedLogLevelTemplateConstant, requestedLogLevel)
	}

	var encoder zapcore.Encoder
	loggerOptions := []zap.Option{zap.AddCaller(), zap.ErrorOutput(factory.output)}
	switch requestedLogFormat {
	case LogFormatConsole:
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(consoleTimeLayoutConstant)
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	case LogFormatStructured:
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		loggerOptions = append(loggerOptions, zap.AddStacktrace(zapcore.ErrorLevel))
	default:
		return nil, fmt.Errorf(unsupportedLogFormatTemplateConstant, requestedLogFormat)
	}

	core := zapcore.NewCore(encoder, factory.output, zap.NewAtomicLevelAt(zapLogLevel))
	return zap.New(core, loggerOptions...), nil
}
