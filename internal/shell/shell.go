// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

// Package shell runs external tools, streaming their output into the logger.
package shell

import (
	"fmt"
	"strings"

	"github.com/alpine-cloud/alpine-ami-tools/internal/logger"
	"github.com/sirupsen/logrus"
)

// Execute runs the given command, capturing its output. stdout and stderr are
// logged at trace level.
func Execute(program string, args ...string) (stdout string, stderr string, err error) {
	return NewExecBuilder(program, args...).
		LogLevel(logrus.TraceLevel, logrus.TraceLevel).
		ExecuteCaptureOutput()
}

// ExecuteLive runs the given command, streaming its output into the log as it
// is produced. If squashErrors is set, stderr is logged at debug level instead
// of warn level.
func ExecuteLive(squashErrors bool, program string, args ...string) error {
	stderrLevel := logrus.WarnLevel
	if squashErrors {
		stderrLevel = logrus.DebugLevel
	}

	return NewExecBuilder(program, args...).
		LogLevel(logrus.DebugLevel, stderrLevel).
		Execute()
}

// ExecuteLiveWithErr runs the given command, streaming its output into the
// log. On failure, the last stderrLines lines of stderr are included in the
// returned error.
func ExecuteLiveWithErr(stderrLines int, program string, args ...string) error {
	return NewExecBuilder(program, args...).
		LogLevel(logrus.DebugLevel, logrus.DebugLevel).
		ErrorStderrLines(stderrLines).
		Execute()
}

func logLine(level logrus.Level, line string) {
	if level == LogDisabledLevel {
		return
	}

	logger.Log.Log(level, line)
}

func commandString(program string, args []string) string {
	if len(args) == 0 {
		return program
	}
	return fmt.Sprintf("%s %s", program, strings.Join(args, " "))
}
