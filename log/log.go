// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The ProbeChain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the ProbeChain. If not, see <http://www.gnu.org/licenses/>.

// Package log is a minimal, leveled, key-value logger in the same spirit as
// go-ethereum's log package: a small set of level-named methods taking a
// message followed by alternating key/value pairs, dispatched to a handler
// that is free to colorize, format, or ship the records elsewhere.
package log

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-stack/stack"
)

// Lvl is a logging severity level, ordered from most to least severe.
type Lvl int

const (
	LvlCrit Lvl = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

func (l Lvl) String() string {
	switch l {
	case LvlCrit:
		return "crit"
	case LvlError:
		return "eror"
	case LvlWarn:
		return "warn"
	case LvlInfo:
		return "info"
	case LvlDebug:
		return "dbug"
	case LvlTrace:
		return "trce"
	default:
		return "unkn"
	}
}

// LvlFromString parses a case-insensitive level name; it returns LvlInfo and
// an error for unrecognized input so callers can fall back to a sane default.
func LvlFromString(s string) (Lvl, error) {
	switch strings.ToLower(s) {
	case "crit":
		return LvlCrit, nil
	case "error", "eror":
		return LvlError, nil
	case "warn":
		return LvlWarn, nil
	case "info":
		return LvlInfo, nil
	case "debug", "dbug":
		return LvlDebug, nil
	case "trace", "trce":
		return LvlTrace, nil
	default:
		return LvlInfo, fmt.Errorf("log: unknown level %q", s)
	}
}

// Record is a single logged event.
type Record struct {
	Time    time.Time
	Lvl     Lvl
	Msg     string
	Ctx     []interface{}
	Call    stack.Call
}

// Handler processes log records. Implementations must be safe for concurrent
// use since a single Logger may be shared across goroutines.
type Handler interface {
	Log(r *Record) error
}

// FuncHandler adapts a plain function to the Handler interface.
type FuncHandler func(r *Record) error

func (h FuncHandler) Log(r *Record) error { return h(r) }

// Logger is the interface every component in this module logs through
// instead of fmt.Println or the standard library's log package.
type Logger interface {
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})
	New(ctx ...interface{}) Logger
}

type logger struct {
	ctx []interface{}
	h   *swapHandler
}

// swapHandler wraps a Handler behind a mutex so SetHandler can be called
// concurrently with logging.
type swapHandler struct {
	mu sync.RWMutex
	h  Handler
}

func (s *swapHandler) Log(r *Record) error {
	s.mu.RLock()
	h := s.h
	s.mu.RUnlock()
	if h == nil {
		return nil
	}
	return h.Log(r)
}

func (s *swapHandler) Swap(h Handler) {
	s.mu.Lock()
	s.h = h
	s.mu.Unlock()
}

var root = &logger{h: new(swapHandler)}

func init() {
	root.h.Swap(StreamHandler(os.Stderr, TerminalFormat(isTerminal(os.Stderr))))
}

// Root returns the root logger of the process. SetHandler on the root
// changes the destination for every Logger derived from it (the log
// appender is a process-wide singleton, as in go-ethereum and as assumed by
// every component of this module).
func Root() Logger { return root }

// SetHandler replaces the root logger's handler.
func SetHandler(h Handler) { root.h.Swap(h) }

func (l *logger) write(lvl Lvl, msg string, ctx []interface{}) {
	r := &Record{
		Time: time.Now(),
		Lvl:  lvl,
		Msg:  msg,
		Ctx:  append(l.ctx, ctx...),
	}
	if lvl <= LvlWarn {
		r.Call = stack.Caller(2)
	}
	_ = l.h.Log(r)
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.write(LvlTrace, msg, ctx) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }
func (l *logger) Crit(msg string, ctx ...interface{})  { l.write(LvlCrit, msg, ctx) }

func (l *logger) New(ctx ...interface{}) Logger {
	child := make([]interface{}, 0, len(l.ctx)+len(ctx))
	child = append(child, l.ctx...)
	child = append(child, ctx...)
	return &logger{ctx: child, h: l.h}
}

// New creates a Logger rooted at the process-wide root, with the supplied
// key-value pairs attached to every record it emits.
func New(ctx ...interface{}) Logger { return root.New(ctx...) }

// Package-level convenience functions mirroring Logger, dispatching straight
// to the root logger. Most call sites in this module use these directly,
// the way go-ethereum code calls log.Warn/log.Info at the package level.
func Trace(msg string, ctx ...interface{}) { root.Trace(msg, ctx...) }
func Debug(msg string, ctx ...interface{}) { root.Debug(msg, ctx...) }
func Info(msg string, ctx ...interface{})  { root.Info(msg, ctx...) }
func Warn(msg string, ctx ...interface{})  { root.Warn(msg, ctx...) }
func Error(msg string, ctx ...interface{}) { root.Error(msg, ctx...) }
func Crit(msg string, ctx ...interface{})  { root.Crit(msg, ctx...) }
