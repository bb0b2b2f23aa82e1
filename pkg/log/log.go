// Package log provides the leveled, printf-style logging facade used
// throughout the kernel. It is a thin wrapper over logrus so that call
// sites read as log.Infof/log.Warningf/log.Debugf regardless of which
// sink logrus is configured to write to.
package log

import (
	"github.com/sirupsen/logrus"
)

// std is the package-level logger. Tests may adjust it via SetLevel.
var std = logrus.New()

// SetLevel adjusts the minimum level emitted by std.
func SetLevel(level logrus.Level) {
	std.SetLevel(level)
}

// Debugf logs at debug level.
func Debugf(format string, args ...any) {
	std.Debugf(format, args...)
}

// Infof logs at info level.
func Infof(format string, args ...any) {
	std.Infof(format, args...)
}

// Warningf logs at warn level.
func Warningf(format string, args ...any) {
	std.Warnf(format, args...)
}

// Errorf logs at error level acknowledging the kernel keeps running;
// callers should never use this where a panic is warranted instead.
func Errorf(format string, args ...any) {
	std.Errorf(format, args...)
}
