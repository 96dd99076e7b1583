// Package logger - Process-wide zap logger shared by the detector binaries.
package logger

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logMu sync.RWMutex
	log   *zap.Logger
	sugar *zap.SugaredLogger
)

// Init builds the production or development logger at the given level and
// installs it as the zap global.
//
// Arguments:
//   - development: Console encoding with caller and stack traces when true.
//   - level: One of debug, info, warn, error. Empty means info.
//
// Returns:
//   - error: If the level does not parse or the logger cannot be built.
func Init(development bool, level string) error {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return errors.Wrapf(err, "log level %q", level)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	l, err := cfg.Build()
	if err != nil {
		return errors.Wrap(err, "build logger")
	}
	setLogger(l)
	return nil
}

// InitProduction installs a JSON production logger at info level.
func InitProduction() error {
	return Init(false, "")
}

// InitDevelopment installs a console development logger at debug level.
func InitDevelopment() error {
	return Init(true, "")
}

// setLogger replaces the package logger and the zap globals.
func setLogger(l *zap.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	zap.ReplaceGlobals(l)
	if log != nil {
		_ = log.Sync()
	}
	log = l
	sugar = l.Sugar()
}

// Log returns the package logger, or the zap global (a no-op until
// replaced) when Init was never called.
func Log() *zap.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	if log != nil {
		return log
	}
	return zap.L()
}

// S returns the sugared package logger.
func S() *zap.SugaredLogger {
	logMu.RLock()
	defer logMu.RUnlock()
	if sugar != nil {
		return sugar
	}
	return zap.S()
}

// Sync flushes buffered log entries.
func Sync() {
	logMu.RLock()
	defer logMu.RUnlock()
	if log != nil {
		_ = log.Sync()
	}
}
