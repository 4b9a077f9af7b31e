// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package progress carries the human readable trace printed while an
// operation runs. It is separate from logging: the trace is meant for
// the operator watching the command, logs are for debugging.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Output receives trace lines. *cmd.Context satisfies it.
type Output interface {
	Infof(format string, params ...interface{})
}

// Discard is an Output dropping everything.
var Discard Output = discard{}

type discard struct{}

func (discard) Infof(string, ...interface{}) {}

// NewWriter returns an Output writing one line per call to w. It is
// safe for concurrent use.
func NewWriter(w io.Writer) Output {
	return &writer{w: w}
}

type writer struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *writer) Infof(format string, params ...interface{}) {
	msg := fmt.Sprintf(format, params...)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, _ = io.WriteString(w.w, msg)
}

// Indent returns an Output prefixing every line with a tab per level.
func Indent(out Output, level int) Output {
	return indented{out: out, prefix: strings.Repeat("\t", level)}
}

type indented struct {
	out    Output
	prefix string
}

func (i indented) Infof(format string, params ...interface{}) {
	i.out.Infof("%s%s", i.prefix, fmt.Sprintf(format, params...))
}
