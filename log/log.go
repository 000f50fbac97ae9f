// Copyright 2025 The Canopy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package log exports logging primitives that log to stderr.
package log

// We call this log instead of logging for two reasons:
// 1) It's shorter to type;
// 2) it mimics Go's log package and can be used as a drop-in replacement for it.

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the interface for logging messages.
type Logger interface {
	// Printf writes a formated message to the log.
	Printf(format string, v ...interface{})

	// Print writes a message to the log.
	Print(v ...interface{})

	// Println writes a line to the log.
	Println(v ...interface{})

	// Fatal writes a message to the log and aborts.
	Fatal(v ...interface{})

	// Fatalf writes a formated message to the log and aborts.
	Fatalf(format string, v ...interface{})
}

// Level represents the level of logging.
type Level int

// Different levels of logging.
const (
	LDebug Level = iota
	LInfo
	LError
	LDisabled
)

// Pre-allocated Loggers at each logging level.
var (
	Debug Logger = &logger{LDebug}
	Info  Logger = &logger{LInfo}
	Error Logger = &logger{LError}
)

var (
	currentLevel = LInfo
	base         = newBase()
)

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006/01/02 15:04:05.000000",
	})
	// Level filtering is done here, not in logrus, so that a single
	// backend serves all three front-end Loggers.
	l.SetLevel(logrus.DebugLevel)
	return l
}

type logger struct {
	level Level
}

var _ Logger = (*logger)(nil)

func (l *logger) logrusLevel() logrus.Level {
	switch l.level {
	case LDebug:
		return logrus.DebugLevel
	case LError:
		return logrus.ErrorLevel
	}
	return logrus.InfoLevel
}

// Printf writes a formated message to the log.
func (l *logger) Printf(format string, v ...interface{}) {
	if l.level < currentLevel {
		return // Don't log at lower levels.
	}
	base.Logf(l.logrusLevel(), format, v...)
}

// Print writes a message to the log.
func (l *logger) Print(v ...interface{}) {
	if l.level < currentLevel {
		return
	}
	base.Log(l.logrusLevel(), v...)
}

// Println writes a line to the log.
func (l *logger) Println(v ...interface{}) {
	if l.level < currentLevel {
		return
	}
	base.Logln(l.logrusLevel(), v...)
}

// Fatal writes a message to the log and aborts, regardless of the current log level.
func (l *logger) Fatal(v ...interface{}) {
	base.Fatal(v...)
}

// Fatalf writes a formated message to the log and aborts, regardless of the current log level.
func (l *logger) Fatalf(format string, v ...interface{}) {
	base.Fatalf(format, v...)
}

func (l Level) String() string {
	switch l {
	case LDebug:
		return "debug"
	case LInfo:
		return "info"
	case LError:
		return "error"
	case LDisabled:
		return "disabled"
	}
	return "unknown"
}

func toLevel(s string) (Level, bool) {
	switch s {
	case "debug":
		return LDebug, true
	case "info":
		return LInfo, true
	case "error":
		return LError, true
	case "disabled":
		return LDisabled, true
	}
	return LInfo, false
}

// SetLevel sets the current logging level from its name.
// Lower levels than current will not be logged.
func SetLevel(level string) error {
	l, ok := toLevel(level)
	if !ok {
		return &invalidLevelError{level}
	}
	currentLevel = l
	return nil
}

type invalidLevelError struct {
	level string
}

func (e *invalidLevelError) Error() string {
	return "invalid log level " + e.level
}

// CurrentLevel returns the current logging level.
func CurrentLevel() Level {
	return currentLevel
}

// At returns whether the level will be logged currently.
func At(level Level) bool {
	return currentLevel <= level
}

// Printf writes a formated message to the log.
func Printf(format string, v ...interface{}) {
	Info.Printf(format, v...)
}

// Print writes a message to the log.
func Print(v ...interface{}) {
	Info.Print(v...)
}

// Println writes a line to the log.
func Println(v ...interface{}) {
	Info.Println(v...)
}

// Fatal writes a message to the log and aborts.
func Fatal(v ...interface{}) {
	Info.Fatal(v...)
}

// Fatalf writes a formated message to the log and aborts.
func Fatalf(format string, v ...interface{}) {
	Info.Fatalf(format, v...)
}
