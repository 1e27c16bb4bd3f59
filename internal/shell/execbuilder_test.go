// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

package shell

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alpine-cloud/alpine-ami-tools/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	logger.InitStderrLog()
	os.Exit(m.Run())
}

func TestExecBuilderStdin(t *testing.T) {
	stdout, _, err := NewExecBuilder("cat").
		Stdin("hello from stdin\n").
		ExecuteCaptureOutput()
	assert.NoError(t, err)
	assert.Equal(t, "hello from stdin\n", stdout)
}

func TestExecBuilderWorkingDirectory(t *testing.T) {
	dir := t.TempDir()

	// macOS and some CI hosts hand out symlinked temp dirs.
	resolvedDir, err := filepath.EvalSymlinks(dir)
	assert.NoError(t, err)

	stdout, _, err := NewExecBuilder("sh", "-c", "pwd").
		WorkingDirectory(dir).
		ExecuteCaptureOutput()
	assert.NoError(t, err)
	assert.Equal(t, resolvedDir, strings.TrimSpace(stdout))
}

func TestExecBuilderEnvironmentVariables(t *testing.T) {
	stdout, _, err := NewExecBuilder("sh", "-c", "echo \"$GREETING\"").
		EnvironmentVariables([]string{"GREETING=hello"}).
		ExecuteCaptureOutput()
	assert.NoError(t, err)
	assert.Equal(t, "hello", strings.TrimSpace(stdout))
}

func TestExecBuilderCallbacks(t *testing.T) {
	var stdoutLines, stderrLines []string

	err := NewExecBuilder("sh", "-c", "echo one; echo two; echo three >&2").
		LogLevel(LogDisabledLevel, LogDisabledLevel).
		StdoutCallback(func(line string) {
			stdoutLines = append(stdoutLines, line)
		}).
		StderrCallback(func(line string) {
			stderrLines = append(stderrLines, line)
		}).
		Execute()
	assert.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, stdoutLines)
	assert.Equal(t, []string{"three"}, stderrLines)
}

func TestExecBuilderErrorStderrLines(t *testing.T) {
	err := NewExecBuilder("sh", "-c", "echo boom >&2; exit 3").
		LogLevel(LogDisabledLevel, LogDisabledLevel).
		ErrorStderrLines(1).
		Execute()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
