package logger

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fachebot/meeting-issue-bot/internal/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	*logrus.Logger
	fileLogger *logrus.Logger
}

var (
	mu            sync.RWMutex
	defaultLogger *Logger
)

func init() {
	// 控制台日志配置，Setup 之前只输出到控制台
	consoleLogger := logrus.New()
	consoleLogger.SetFormatter(&logrus.TextFormatter{
		ForceColors:   true,
		FullTimestamp: true,
	})
	consoleLogger.SetOutput(os.Stdout)
	consoleLogger.SetLevel(logrus.DebugLevel)

	defaultLogger = &Logger{Logger: consoleLogger}
}

// Setup 按配置开启文件日志并设置日志级别
func Setup(c config.Log) error {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return err
	}

	// 文件日志配置
	fileLogger := logrus.New()
	fileLogger.SetFormatter(&logrus.JSONFormatter{
		PrettyPrint:     false,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	fileLogger.SetLevel(level)

	// 创建日志目录
	if err := os.MkdirAll(c.Dir, 0755); err != nil {
		return err
	}

	// 使用lumberjack进行日志轮转
	fileLogger.SetOutput(&lumberjack.Logger{
		Filename:   filepath.Join(c.Dir, c.File),
		MaxSize:    10,
		MaxBackups: 10,
		MaxAge:     30,
		Compress:   true,
	})

	mu.Lock()
	defer mu.Unlock()
	defaultLogger.Logger.SetLevel(level)
	defaultLogger.fileLogger = fileLogger
	return nil
}

func each(fn func(l *logrus.Logger)) {
	mu.RLock()
	console, file := defaultLogger.Logger, defaultLogger.fileLogger
	mu.RUnlock()

	fn(console)
	if file != nil {
		fn(file)
	}
}

func Infof(format string, args ...any) {
	each(func(l *logrus.Logger) { l.Infof(format, args...) })
}

func Warnf(format string, args ...any) {
	each(func(l *logrus.Logger) { l.Warnf(format, args...) })
}

func Errorf(format string, args ...any) {
	each(func(l *logrus.Logger) { l.Errorf(format, args...) })
}

func Debugf(format string, args ...any) {
	each(func(l *logrus.Logger) { l.Debugf(format, args...) })
}

// Fatalf 先写入文件日志，再由控制台日志退出进程
func Fatalf(format string, args ...any) {
	mu.RLock()
	console, file := defaultLogger.Logger, defaultLogger.fileLogger
	mu.RUnlock()

	if file != nil {
		file.Errorf(format, args...)
	}
	console.Fatalf(format, args...)
}

// AddHook 为控制台日志添加 hook，返回移除该 hook 的函数
func AddHook(hook logrus.Hook) (remove func()) {
	mu.RLock()
	console := defaultLogger.Logger
	mu.RUnlock()

	console.AddHook(hook)
	return func() {
		kept := make(logrus.LevelHooks)
		for level, hooks := range console.ReplaceHooks(make(logrus.LevelHooks)) {
			for _, h := range hooks {
				if h != hook {
					kept[level] = append(kept[level], h)
				}
			}
		}
		console.ReplaceHooks(kept)
	}
}
