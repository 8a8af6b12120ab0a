package pgdump

import "github.com/sirupsen/logrus"

// defaultLogger is used by any ScanContext that doesn't supply its own.
// Tests and library callers embedding pgdump in a larger CLI are expected
// to override it via ScanContext.Log.
var defaultLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}()
