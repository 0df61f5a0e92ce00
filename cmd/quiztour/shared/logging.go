package shared

import (
	"os"

	"github.com/charmbracelet/log"
)

// SetupLogger returns the root logger: colourful text for terminals, JSON
// for log collectors.
func SetupLogger(debug, jsonOutput bool) *log.Logger {
	opts := log.Options{
		ReportTimestamp: true,
		Level:           log.InfoLevel,
	}
	if debug {
		opts.Level = log.DebugLevel
	}
	if jsonOutput {
		opts.Formatter = log.JSONFormatter
	}
	return log.NewWithOptions(os.Stderr, opts)
}
