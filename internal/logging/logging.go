package logging

import (
	"os"
	"strings"

	"github.com/phuslu/log"
)

// Setup configures the process-wide logger. Text output goes to a console
// writer, anything else is emitted as JSON lines on stderr.
func Setup(level, format string) {
	logger := log.Logger{
		Level: log.ParseLevel(strings.ToLower(strings.TrimSpace(level))),
	}
	if strings.EqualFold(format, "json") {
		logger.Writer = &log.IOWriter{Writer: os.Stderr}
	} else {
		logger.Writer = &log.ConsoleWriter{
			Writer:      os.Stderr,
			ColorOutput: isTerminal(),
			QuoteString: true,
		}
	}
	log.DefaultLogger = logger
}

func isTerminal() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
