// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

// Package logger provides the tool-wide logrus logger along with the CLI
// flags used to configure it.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

const (
	ColorFlag         = "log-color"
	ColorFlagHelp     = "Color setting for log output."
	ColorsPlaceholder = "(always|auto|never)"

	FileFlag     = "log-file"
	FileFlagHelp = "Path of a file to write the full debug log to."

	LevelsFlag         = "log-level"
	LevelsHelp         = "Minimum log level to output."
	LevelsPlaceholder  = "(panic|fatal|error|warn|info|debug|trace)"
	defaultStderrLevel = logrus.InfoLevel
	fileLogLevel       = logrus.DebugLevel
)

const (
	colorAlways = "always"
	colorAuto   = "auto"
	colorNever  = "never"
)

// Log is the shared logger used by the entire tool.
var Log *logrus.Logger

// LogFlags holds the values of the logger's CLI flags.
type LogFlags struct {
	LogColor *string
	LogFile  *string
	LogLevel *string
}

// Colors returns the allowed values for the log color flag.
func Colors() []string {
	return []string{colorAlways, colorAuto, colorNever}
}

// Levels returns the allowed values for the log level flag.
func Levels() []string {
	levels := make([]string, 0, len(logrus.AllLevels))
	for _, level := range logrus.AllLevels {
		levels = append(levels, level.String())
	}
	return levels
}

// InitStderrLog initializes the logger with default settings. Used by tests.
func InitStderrLog() {
	initLog(defaultStderrLevel, colorAuto, "")
}

// InitBestEffort initializes the logger from the given flags, falling back to
// defaults on any invalid value rather than failing.
func InitBestEffort(flags *LogFlags) {
	level := defaultStderrLevel
	colorSetting := colorAuto
	logFile := ""

	if flags != nil {
		if flags.LogLevel != nil && *flags.LogLevel != "" {
			parsedLevel, err := logrus.ParseLevel(*flags.LogLevel)
			if err == nil {
				level = parsedLevel
			}
		}

		if flags.LogColor != nil && *flags.LogColor != "" {
			colorSetting = *flags.LogColor
		}

		if flags.LogFile != nil {
			logFile = *flags.LogFile
		}
	}

	initLog(level, colorSetting, logFile)

	if flags != nil && flags.LogLevel != nil && *flags.LogLevel != "" {
		if _, err := logrus.ParseLevel(*flags.LogLevel); err != nil {
			Log.Warnf("Invalid log level (%s), using default (%s)", *flags.LogLevel, defaultStderrLevel)
		}
	}
}

func initLog(level logrus.Level, colorSetting string, logFilePath string) {
	Log = logrus.New()
	Log.SetOutput(os.Stderr)
	Log.SetLevel(level)
	Log.SetFormatter(&stderrFormatter{
		useColor: useColor(colorSetting),
	})

	if logFilePath != "" {
		logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			Log.Warnf("Failed to open log file (%s): %v", logFilePath, err)
			return
		}

		// The file always captures the full debug stream regardless of the
		// stderr level.
		Log.AddHook(&fileLogHook{writer: logFile})
		if Log.GetLevel() < fileLogLevel {
			Log.SetLevel(fileLogLevel)
		}
	}
}

func useColor(colorSetting string) bool {
	switch colorSetting {
	case colorAlways:
		return true
	case colorNever:
		return false
	default:
		return !color.NoColor
	}
}

type stderrFormatter struct {
	useColor bool
}

func (f *stderrFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	levelText := strings.ToUpper(entry.Level.String())

	if f.useColor {
		levelColor := levelColors[entry.Level]
		if levelColor != nil {
			levelText = levelColor.Sprint(levelText)
		}
	}

	line := fmt.Sprintf("%s [%s] %s\n", entry.Time.Format("2006-01-02T15:04:05Z07:00"), levelText, entry.Message)
	return []byte(line), nil
}

var levelColors = map[logrus.Level]*color.Color{
	logrus.PanicLevel: color.New(color.FgRed, color.Bold),
	logrus.FatalLevel: color.New(color.FgRed, color.Bold),
	logrus.ErrorLevel: color.New(color.FgRed),
	logrus.WarnLevel:  color.New(color.FgYellow),
	logrus.InfoLevel:  color.New(color.FgGreen),
	logrus.DebugLevel: color.New(color.FgCyan),
	logrus.TraceLevel: color.New(color.FgWhite),
}

type fileLogHook struct {
	writer io.Writer
}

func (h *fileLogHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *fileLogHook) Fire(entry *logrus.Entry) error {
	line := fmt.Sprintf("%s [%s] %s\n", entry.Time.Format("2006-01-02T15:04:05Z07:00"),
		strings.ToUpper(entry.Level.String()), entry.Message)
	_, err := h.writer.Write([]byte(line))
	return err
}
