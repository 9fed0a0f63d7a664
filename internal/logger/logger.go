package logger

import (
	"fmt"
	"time"
)

// ANSI color codes for console output.
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
	white  = "\033[37m"
)

func stamp() string {
	return time.Now().Format("15:04:05")
}

func line(color, symbol, tag, msg string) {
	fmt.Printf("%s%s%s %s[%s]%s %s%s%s %s\n",
		dim, stamp(), reset,
		bold, tag, reset,
		color, symbol, reset,
		msg)
}

// Info logs a neutral message under a tag.
func Info(tag, msg string) {
	line(cyan, "•", tag, msg)
}

// Success logs a completed operation.
func Success(tag, msg string) {
	line(green, "✓", tag, msg)
}

// Warn logs a recoverable problem.
func Warn(tag, msg string) {
	line(yellow, "!", tag, msg)
}

// Error logs a failure.
func Error(tag, msg string) {
	line(red, "✗", tag, msg)
}

// Banner prints the startup banner with the build version.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	fmt.Printf("\n%s%s  craftdesk %s— workshop companion%s\n", bold, cyan, reset+dim, reset)
	fmt.Printf("%s  version %s%s\n\n", dim, version, reset)
}

// Section prints a visual section divider.
func Section(title string) {
	fmt.Printf("\n%s%s── %s %s\n", bold, white, title, reset)
}

// Stats prints a key/value statistic line.
func Stats(key string, value interface{}) {
	fmt.Printf("%s  %s:%s %v\n", dim, key, reset, value)
}

// Server logs the listen address once the HTTP server is up.
func Server(addr string) {
	line(green, "⇡", "Server", fmt.Sprintf("Listening on http://%s", addr))
}
