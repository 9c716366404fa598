package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// EnvLogPath enables the rotated log file when set
	EnvLogPath = "GUARD_LOG_PATH"
	// EnvLogLevel overrides the default debug level (debug, info, warn, error)
	EnvLogLevel = "GUARD_LOG_LEVEL"
)

// CustomFormatter 自定义日志格式
type CustomFormatter struct {
	logrus.JSONFormatter
}

// Format 实现自定义格式化
func (f *CustomFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	if _, ok := entry.Data["file"]; !ok {
		if pc, file, line, ok := runtime.Caller(8); ok {
			funcName := runtime.FuncForPC(pc).Name()
			entry.Data["file"] = filepath.Base(file)
			entry.Data["line"] = line
			entry.Data["func"] = filepath.Base(funcName)
		}
	}

	entry.Data["@timestamp"] = entry.Time.Format(time.RFC3339)
	entry.Data["pid"] = os.Getpid()
	entry.Data["goroutine_id"] = getGoroutineID()

	return f.JSONFormatter.Format(entry)
}

// Log is the global logger instance
var (
	Log  *logrus.Logger
	once sync.Once
)

// initLogger initializes the logger. An empty logFilePath keeps output on stdout only.
func initLogger(logFilePath string, level string) {
	Log = logrus.New()

	Log.SetFormatter(&CustomFormatter{
		JSONFormatter: logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "@timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		},
	})

	var out io.Writer = os.Stdout
	if logFilePath != "" {
		if err := os.MkdirAll(filepath.Dir(logFilePath), 0755); err != nil {
			panic(fmt.Sprintf("failed to create log directory: %v", err))
		}
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   logFilePath,
			MaxSize:    10,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		})
	}
	Log.SetOutput(out)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.DebugLevel
	}
	Log.SetLevel(lvl)

	Log.SetReportCaller(true)
}

// GetLogger returns the singleton logger instance
func GetLogger() *logrus.Logger {
	once.Do(func() { initLogger(os.Getenv(EnvLogPath), os.Getenv(EnvLogLevel)) })
	return Log
}

// SetLevel changes the level of the singleton logger.
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	GetLogger().SetLevel(lvl)
	return nil
}

// getGoroutineID 获取当前协程ID
func getGoroutineID() uint64 {
	b := make([]byte, 64)
	b = b[:runtime.Stack(b, false)]
	var id uint64
	fmt.Sscanf(string(b), "goroutine %d", &id)
	return id
}
