// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

package logger

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	InitStderrLog()
	os.Exit(m.Run())
}

func TestMemoryLogHook(t *testing.T) {
	hook := NewMemoryLogHook()
	Log.AddHook(hook)

	Log.Warnf("target device (%s) busy", "/dev/xvdf")
	Log.Info("formatting complete")

	messages := hook.ConsumeMessages()
	assert.Len(t, messages, 2)
	assert.Equal(t, "target device (/dev/xvdf) busy", messages[0].Message)
	assert.Equal(t, logrus.WarnLevel, messages[0].Level)
	assert.Equal(t, logrus.InfoLevel, messages[1].Level)

	// Consuming resets the hook.
	assert.Empty(t, hook.ConsumeMessages())
}

func TestLevels(t *testing.T) {
	assert.Contains(t, Levels(), "trace")
	assert.Contains(t, Levels(), "info")
	assert.Contains(t, Colors(), "auto")
}

func TestInitBestEffortWithFile(t *testing.T) {
	logFile := t.TempDir() + "/build.log"

	level := "info"
	color := "never"
	InitBestEffort(&LogFlags{
		LogColor: &color,
		LogFile:  &logFile,
		LogLevel: &level,
	})
	defer InitStderrLog()

	Log.Info("written to the debug log")

	contents, err := os.ReadFile(logFile)
	assert.NoError(t, err)
	assert.Contains(t, string(contents), "written to the debug log")
}
