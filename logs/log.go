// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package logs provides the level-gated logger shared by the solvers.
package logs

import (
	"fmt"
	"io"
	"os"
)

// LogLevel controls the frequency and type of logger output
type LogLevel int

const (
	// LogNoop no output is generated (level < 0)
	LogNoop LogLevel = -1
	// LogLast print only the exit summary
	LogLast LogLevel = 0
	// LogEval print also f and |g| every `level` iterations for any (0 < level < 99)
	LogEval LogLevel = 1
	// LogTrace print details of every evaluation and iteration except n-vectors
	LogTrace LogLevel = 99
	// LogVerbose print also x and g at every iteration (level > 100)
	LogVerbose LogLevel = 101
)

// Logger handles logging output for the solvers.
// Note the writers must be thread-safe.
type Logger struct {
	Level LogLevel
	Msg   io.Writer // Writer to output log messages.
	Out   io.Writer // Writer for output data.
}

// NewLogger returns a logger with the given level writing messages to
// stdout and data to stderr.
func NewLogger(level LogLevel) *Logger {
	return &Logger{Level: level, Msg: os.Stdout, Out: os.Stderr}
}

// Enabled reports whether messages at level are printed.
// A nil logger prints nothing.
func (l *Logger) Enabled(level LogLevel) bool {
	return l != nil && l.Level >= level
}

// Logf writes a message.
func (l *Logger) Logf(format string, a ...any) {
	if l == nil || l.Msg == nil {
		return
	}
	if len(a) > 0 {
		_, _ = fmt.Fprintf(l.Msg, format, a...)
	} else {
		_, _ = fmt.Fprint(l.Msg, format)
	}
}

// Outf writes data.
func (l *Logger) Outf(format string, a ...any) {
	if l == nil || l.Out == nil {
		return
	}
	if len(a) > 0 {
		_, _ = fmt.Fprintf(l.Out, format, a...)
	} else {
		_, _ = fmt.Fprint(l.Out, format)
	}
}

// Vector writes a named n-vector as a message, six values per line.
func (l *Logger) Vector(name string, v []float64) {
	l.Logf("\n %s =", name)
	for i, x := range v {
		l.Logf(" %.2e", x)
		if (i+1)%6 == 0 {
			l.Logf("\n     ")
		}
	}
	l.Logf("\n")
}
