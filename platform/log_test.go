package platform

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFormatter(t *testing.T) {
	entry := &logrus.Entry{
		Time:    time.Date(2024, 3, 5, 10, 4, 5, 123000000, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "[req-1] something happened",
	}

	out, err := (&LogFormatter{}).Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "[2024-03-05 10:04:05.123] [warning] [req-1] something happened\n", string(out))
}

func TestHookWritesDailyFile(t *testing.T) {
	dir := t.TempDir()
	hook, err := NewHook(dir, "relaychat")
	require.NoError(t, err)
	defer hook.Close()

	logger := newLogger(&strings.Builder{})
	logger.AddHook(hook)
	logger.Info("hello file")

	name := filepath.Join(dir, time.Now().Format("2006-01-02")+"-relaychat.log")
	data, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello file")
}
