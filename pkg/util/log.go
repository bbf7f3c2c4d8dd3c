// Package util provides small cross-cutting helpers shared by the cluster
// manager packages: structured logging and common error types.
package util

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the process-wide logger instance.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(os.Stderr)
	Logger.SetLevel(logrus.InfoLevel)
	Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
}

// SetLogLevel parses and applies level, returning an error for an unknown
// level (a fatal configuration error per the control plane's startup rules).
func SetLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	Logger.SetLevel(lvl)
	return nil
}

// SetLogOutput redirects log output, used when LOG_FILE is configured.
func SetLogOutput(w io.Writer) {
	Logger.SetOutput(w)
}

// WithField returns a logger decorated with a single field.
func WithField(key string, value interface{}) *logrus.Entry {
	return Logger.WithField(key, value)
}

// WithFields returns a logger decorated with multiple fields.
func WithFields(fields map[string]interface{}) *logrus.Entry {
	return Logger.WithFields(fields)
}

// WithVpn returns a logger scoped to a Vpn id.
func WithVpn(id string) *logrus.Entry {
	return Logger.WithField("vpn", id)
}

// WithCluster returns a logger scoped to a Cluster id.
func WithCluster(id string) *logrus.Entry {
	return Logger.WithField("cluster", id)
}

// WithHandler returns a logger scoped to the name of a control-plane handler.
func WithHandler(name string) *logrus.Entry {
	return Logger.WithField("handler", name)
}
