// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

package shell

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strings"
	"sync"

	"github.com/alpine-cloud/alpine-ami-tools/internal/logger"
	"github.com/sirupsen/logrus"
)

// LogDisabledLevel disables logging of an output stream entirely.
const LogDisabledLevel = logrus.Level(math.MaxUint32)

// ExecBuilder configures how an external command is run.
// Methods use value receivers so that partially-built configs can be reused.
type ExecBuilder struct {
	program          string
	args             []string
	stdinString      string
	workingDirectory string
	environment      []string
	stdoutLogLevel   logrus.Level
	stderrLogLevel   logrus.Level
	stdoutCallback   func(line string)
	stderrCallback   func(line string)
	errorStderrLines int
}

// NewExecBuilder creates an ExecBuilder for the given command. By default,
// stdout is logged at debug level and stderr at warn level.
func NewExecBuilder(program string, args ...string) ExecBuilder {
	return ExecBuilder{
		program:        program,
		args:           args,
		stdoutLogLevel: logrus.DebugLevel,
		stderrLogLevel: logrus.WarnLevel,
	}
}

// Stdin provides a string to write to the command's stdin.
func (b ExecBuilder) Stdin(value string) ExecBuilder {
	b.stdinString = value
	return b
}

// WorkingDirectory sets the command's working directory.
func (b ExecBuilder) WorkingDirectory(path string) ExecBuilder {
	b.workingDirectory = path
	return b
}

// EnvironmentVariables sets the command's environment ("KEY=value" strings).
func (b ExecBuilder) EnvironmentVariables(environment []string) ExecBuilder {
	b.environment = environment
	return b
}

// LogLevel sets the log levels of the stdout and stderr streams.
func (b ExecBuilder) LogLevel(stdoutLogLevel logrus.Level, stderrLogLevel logrus.Level) ExecBuilder {
	b.stdoutLogLevel = stdoutLogLevel
	b.stderrLogLevel = stderrLogLevel
	return b
}

// StdoutCallback registers a callback invoked for every stdout line.
func (b ExecBuilder) StdoutCallback(callback func(line string)) ExecBuilder {
	b.stdoutCallback = callback
	return b
}

// StderrCallback registers a callback invoked for every stderr line.
func (b ExecBuilder) StderrCallback(callback func(line string)) ExecBuilder {
	b.stderrCallback = callback
	return b
}

// ErrorStderrLines includes the last count lines of stderr in the error when
// the command fails.
func (b ExecBuilder) ErrorStderrLines(count int) ExecBuilder {
	b.errorStderrLines = count
	return b
}

// Execute runs the command.
func (b ExecBuilder) Execute() error {
	_, _, err := b.execute(false)
	return err
}

// ExecuteCaptureOutput runs the command and returns its stdout and stderr.
func (b ExecBuilder) ExecuteCaptureOutput() (string, string, error) {
	return b.execute(true)
}

func (b ExecBuilder) execute(captureOutput bool) (stdout string, stderr string, err error) {
	logger.Log.Debugf("Executing: %s", commandString(b.program, b.args))

	cmd := exec.Command(b.program, b.args...)
	cmd.Dir = b.workingDirectory
	cmd.Env = b.environment

	if b.stdinString != "" {
		cmd.Stdin = strings.NewReader(b.stdinString)
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return "", "", fmt.Errorf("failed to open stdout pipe:\n%w", err)
	}

	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return "", "", fmt.Errorf("failed to open stderr pipe:\n%w", err)
	}

	err = cmd.Start()
	if err != nil {
		return "", "", fmt.Errorf("failed to start command (%s):\n%w", b.program, err)
	}

	var stdoutBuilder, stderrBuilder strings.Builder
	errorLines := newLineTail(b.errorStderrLines)

	wg := sync.WaitGroup{}
	wg.Add(2)

	go func() {
		defer wg.Done()
		b.consumeStream(stdoutPipe, b.stdoutLogLevel, b.stdoutCallback, captureOutput, &stdoutBuilder, nil)
	}()

	go func() {
		defer wg.Done()
		b.consumeStream(stderrPipe, b.stderrLogLevel, b.stderrCallback, captureOutput, &stderrBuilder, errorLines)
	}()

	wg.Wait()

	err = cmd.Wait()
	if err != nil {
		if b.errorStderrLines > 0 && len(errorLines.lines) > 0 {
			err = fmt.Errorf("%s\n%w", strings.Join(errorLines.lines, "\n"), err)
		}
		return stdoutBuilder.String(), stderrBuilder.String(),
			fmt.Errorf("command (%s) failed:\n%w", b.program, err)
	}

	return stdoutBuilder.String(), stderrBuilder.String(), nil
}

func (b ExecBuilder) consumeStream(reader io.Reader, level logrus.Level, callback func(string),
	capture bool, builder *strings.Builder, tail *lineTail,
) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		logLine(level, line)

		if callback != nil {
			callback(line)
		}

		if capture {
			builder.WriteString(line)
			builder.WriteString("\n")
		}

		if tail != nil {
			tail.add(line)
		}
	}
}

// lineTail retains the last maxLines lines fed to it.
type lineTail struct {
	maxLines int
	lines    []string
}

func newLineTail(maxLines int) *lineTail {
	return &lineTail{maxLines: maxLines}
}

func (t *lineTail) add(line string) {
	if t.maxLines <= 0 {
		return
	}

	t.lines = append(t.lines, line)
	if len(t.lines) > t.maxLines {
		t.lines = t.lines[len(t.lines)-t.maxLines:]
	}
}
