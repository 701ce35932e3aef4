// Package logging sets up the engine's structured logger: one
// sirupsen/logrus instance, text-formatted, with a level derived from
// the -v flag, and a per-component *logrus.Entry handed to
// each core component.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Setup configures the standard logger's formatter and level. verbose
// raises the level to Debug; otherwise it is Info.
func Setup(verbose bool) {
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	level := logrus.InfoLevel
	if verbose {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)
}

// For returns a logger entry scoped to component.
func For(component string) *logrus.Entry {
	return logrus.WithField("component", component)
}
