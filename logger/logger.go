package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"papertrader/utils"
)

// LogLevel 日志级别
type LogLevel int

const (
	DEBUG LogLevel = iota // 调试信息（最详细）
	INFO                  // 一般信息（正常运行信息）
	WARN                  // 警告信息（需要注意但不影响运行）
	ERROR                 // 错误信息（需要关注的问题）
	FATAL                 // 致命错误（程序无法继续）
)

var (
	globalLevel LogLevel = INFO
	mu          sync.RWMutex

	logDir = "logs"

	// 应用日志文件（DEBUG 级别时启用）
	appFile = &rotatingFile{prefix: "app-papertrader"}
	// Web 访问日志文件（Gin 中间件写入）
	webFile = &rotatingFile{prefix: "web-gin"}

	// SQLite 日志存储（通过函数指针避免循环依赖）
	logStorageWriter func(level, message string)
	logStorageMu     sync.RWMutex
)

// String 返回日志级别的字符串表示
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel 解析日志级别字符串
func ParseLogLevel(level string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

// rotatingFile 按日期轮转的日志文件
type rotatingFile struct {
	mu          sync.Mutex
	prefix      string
	file        *os.File
	logger      *log.Logger
	currentDate string
}

// write 写入一行日志，必要时先轮转文件
func (rf *rotatingFile) write(message string) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	now := utils.NowCST()
	today := now.Format("2006-01-02")
	if rf.currentDate != today {
		if rf.file != nil {
			rf.file.Close()
			rf.file = nil
			rf.logger = nil
		}
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return
		}
		name := filepath.Join(logDir, fmt.Sprintf("%s-%s.log", rf.prefix, today))
		f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return
		}
		rf.file = f
		rf.currentDate = today
		rf.logger = log.New(f, "", 0)
	}

	if rf.logger != nil {
		rf.logger.Printf("%s %s", now.Format("2006/01/02 15:04:05"), message)
	}
}

// close 关闭日志文件
func (rf *rotatingFile) close() {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	if rf.file != nil {
		rf.file.Close()
		rf.file = nil
		rf.logger = nil
		rf.currentDate = ""
	}
}

// SetLevel 设置全局日志级别
func SetLevel(level LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	globalLevel = level
	if level != DEBUG {
		appFile.close()
	}
}

// GetLevel 获取全局日志级别
func GetLevel() LogLevel {
	mu.RLock()
	defer mu.RUnlock()
	return globalLevel
}

// InitLogStorage 初始化日志存储（通过函数指针避免循环依赖）
func InitLogStorage(writer func(level, message string)) {
	logStorageMu.Lock()
	defer logStorageMu.Unlock()
	logStorageWriter = writer
}

// WriteWebLog 写入 Web 访问日志（供 Gin 中间件使用）
func WriteWebLog(message string) {
	webFile.write(message)
}

// Close 关闭文件日志（程序退出时调用）
func Close() {
	appFile.close()
	webFile.close()
	logStorageMu.Lock()
	defer logStorageMu.Unlock()
	logStorageWriter = nil
}

func shouldLog(level LogLevel) bool {
	mu.RLock()
	defer mu.RUnlock()
	return level >= globalLevel
}

// logf 内部日志输出函数
func logf(level LogLevel, format string, args ...interface{}) {
	if !shouldLog(level) {
		return
	}
	prefix := fmt.Sprintf("[%s] ", level.String())
	message := fmt.Sprintf(prefix+format, args...)

	// 输出到控制台
	log.Printf(prefix+format, args...)

	// DEBUG 级别同时写入文件
	if GetLevel() == DEBUG {
		appFile.write(message)
	}

	// 写入 SQLite 数据库（异步，不阻塞）
	logStorageMu.RLock()
	writer := logStorageWriter
	logStorageMu.RUnlock()

	if writer != nil {
		go func() {
			defer func() {
				// 恢复 panic，避免循环日志
				_ = recover()
			}()
			writer(level.String(), message)
		}()
	}
}

// Debug 输出调试日志
func Debug(format string, args ...interface{}) {
	logf(DEBUG, format, args...)
}

// Info 输出一般信息日志
func Info(format string, args ...interface{}) {
	logf(INFO, format, args...)
}

// Warn 输出警告日志
func Warn(format string, args ...interface{}) {
	logf(WARN, format, args...)
}

// Error 输出错误日志
func Error(format string, args ...interface{}) {
	logf(ERROR, format, args...)
}

// Fatal 输出致命错误日志并退出程序
func Fatal(format string, args ...interface{}) {
	logf(FATAL, format, args...)
	os.Exit(1)
}
