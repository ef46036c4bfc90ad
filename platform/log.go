package platform

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is the application logger. It writes to stderr until InitAppLogger attaches a file.
var Logger = newLogger(os.Stderr)

func newLogger(out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&LogFormatter{})
	logger.SetOutput(out)
	return logger
}

// Hook writes every entry to <logPath>/<date>-<fileName>.log and switches files at midnight.
type Hook struct {
	mu       sync.Mutex
	writer   *os.File
	logPath  string
	fileName string
	fileDate string
}

func NewHook(logPath, fileName string) (*Hook, error) {
	h := &Hook{logPath: logPath, fileName: fileName}
	if err := h.rotate(time.Now().Format("2006-01-02")); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Hook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *Hook) Fire(entry *logrus.Entry) error {
	line, err := entry.String()
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	//需要切换日志文件
	if today := entry.Time.Format("2006-01-02"); h.fileDate != today {
		if err := h.rotate(today); err != nil {
			return err
		}
	}
	_, err = h.writer.Write([]byte(line))
	return err
}

func (h *Hook) rotate(date string) error {
	if err := os.MkdirAll(h.logPath, os.ModePerm); err != nil {
		return err
	}
	name := filepath.Join(h.logPath, fmt.Sprintf("%s-%s.log", date, h.fileName))
	w, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	if h.writer != nil {
		h.writer.Close()
	}
	h.writer = w
	h.fileDate = date
	return nil
}

// Close releases the current log file.
func (h *Hook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.writer == nil {
		return nil
	}
	return h.writer.Close()
}

type LogFormatter struct {
}

func (m *LogFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	timestamp := entry.Time.Format("2006-01-02 15:04:05.000")
	fmt.Fprintf(b, "[%s] [%s] %s\n", timestamp, entry.Level, entry.Message)
	return b.Bytes(), nil
}

// InitAppLogger attaches a daily log file to Logger and to the logrus standard logger used by
// the access log. The returned hook must be closed on shutdown.
func InitAppLogger(logPath string, fileName string) (*Hook, error) {
	hook, err := NewHook(logPath, fileName)
	if err != nil {
		return nil, err
	}
	Logger.AddHook(hook)

	logrus.SetFormatter(&LogFormatter{})
	logrus.AddHook(hook)
	return hook, nil
}
