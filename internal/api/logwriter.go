package api

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

type entryWriter struct {
	log logrus.FieldLogger
}

func (w entryWriter) Write(p []byte) (int, error) {
	w.log.Info(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// logWriter routes Fiber's access log lines through logrus
func logWriter(log logrus.FieldLogger) io.Writer {
	return entryWriter{log: log.WithField("component", "http")}
}
