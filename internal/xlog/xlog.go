// Package xlog provides the module's shared structured logger, a thin
// logrus setup following the logging conventions of the other JTAG/SWD
// host tools in this codebase's lineage (e.g. gostlink's package-level
// logger used throughout its USB/transport layers).
package xlog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Log is the shared logger. CLI entry points reconfigure its level via
// SetQuiet; library code should just call Log.WithField(...) etc.
var Log = newDefault()

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetQuiet raises the level to Warn so only failures and board status
// failures are printed, for the CLI's --quiet flag.
func SetQuiet(quiet bool) {
	if quiet {
		Log.SetLevel(logrus.WarnLevel)
	} else {
		Log.SetLevel(logrus.InfoLevel)
	}
}
