package utils

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultLogFile receives a copy of everything written to stdout
const DefaultLogFile = "arbbot.log"

var (
	log  *zap.Logger
	once sync.Once
)

// InitLogger builds the process-wide logger once. Later calls return the
// same instance regardless of their arguments.
func InitLogger(debug bool) *zap.Logger {
	return InitLoggerWithFile(debug, DefaultLogFile)
}

// InitLoggerWithFile is InitLogger with a custom log file; an empty name
// logs to stdout only
func InitLoggerWithFile(debug bool, logFile string) *zap.Logger {
	once.Do(func() {
		config := zap.NewProductionConfig()
		if debug {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}

		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}
		if logFile != "" {
			config.OutputPaths = append(config.OutputPaths, logFile)
			config.ErrorOutputPaths = append(config.ErrorOutputPaths, logFile)
		}

		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.StacktraceKey = "stacktrace"

		logger, err := config.Build(
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
			zap.Fields(zap.String("service", "arbbot")),
		)
		if err != nil {
			panic(err)
		}

		log = logger
	})

	return log
}

// GetLogger returns the global logger, building a default one if needed
func GetLogger() *zap.Logger {
	if log == nil {
		return InitLogger(false)
	}
	return log
}

// CleanupLogger flushes any buffered log entries
func CleanupLogger() {
	if log != nil {
		_ = log.Sync()
	}
}
