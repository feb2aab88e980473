package util

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

// --- COLORS ---
var (
	Reset   = "\033[0m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	White   = "\033[37m"
)

// --- LOGGER STRUCT ---
type Logger struct {
	mu  sync.Mutex
	std *log.Logger
}

func New() *Logger {
	return NewWithWriter(os.Stdout)
}

// NewWithWriter builds a logger that prints to w. Tests pass io.Discard.
func NewWithWriter(w io.Writer) *Logger {
	return &Logger{
		std: log.New(w, "", 0), // we print our own timestamp
	}
}

// --- LOG HELPERS ---

func (l *Logger) Info(instance, message string) {
	l.printf(Green, "INFO", instance, message)
}

func (l *Logger) Debug(instance, message string) {
	l.printf(Cyan, "DEBUG", instance, message)
}

func (l *Logger) Warn(instance, message string) {
	l.printf(Yellow, "WARN", instance, message)
}

func (l *Logger) Error(instance, message string, err error) {
	if err != nil {
		message = message + ": " + err.Error()
	}
	l.printf(Red, "ERROR", instance, message)
}

func (l *Logger) Fatal(instance, message string, err error) {
	l.Error(instance, message, err)
	os.Exit(1)
}

func (l *Logger) OK(instance, message string) {
	l.printf(Green, "OK", instance, message)
}

func (l *Logger) printf(color, level, instance, message string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	l.mu.Lock()
	defer l.mu.Unlock()
	l.std.Printf("%s|%s|%s %s%-5s%s | %-28s | %s\n",
		Reset, timestamp, color, level, Reset, "", instance, message)
}

// --- HTTP LOGGING ---

func (l *Logger) HTTP(status int, elapsed time.Duration, host, method, path string) {
	coloredStatus := paintStatus(status)
	coloredMethod := paintMethod(method)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.std.Printf("|%s| %10s | %-20s | %s %s\n",
		coloredStatus, elapsed, host, coloredMethod, path)
}

// --- COLOR HELPERS ---

func paintMethod(method string) string {
	switch method {
	case "GET":
		return Blue + fmt.Sprintf("%-6s", method) + Reset
	case "POST":
		return Green + fmt.Sprintf("%-6s", method) + Reset
	case "PUT":
		return Magenta + fmt.Sprintf("%-6s", method) + Reset
	case "DELETE":
		return Red + fmt.Sprintf("%-6s", method) + Reset
	default:
		return White + fmt.Sprintf("%-6s", method) + Reset
	}
}

func paintStatus(code int) string {
	switch {
	case code >= 200 && code < 300:
		return Green + fmt.Sprintf("%d", code) + Reset
	case code >= 300 && code < 400:
		return Cyan + fmt.Sprintf("%d", code) + Reset
	case code >= 400 && code < 500:
		return Yellow + fmt.Sprintf("%d", code) + Reset
	case code >= 500:
		return Red + fmt.Sprintf("%d", code) + Reset
	default:
		return White + fmt.Sprintf("%d", code) + Reset
	}
}
