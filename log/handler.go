package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// StreamHandler writes formatted records to an io.Writer, one per line.
func StreamHandler(wr io.Writer, fmtr Format) Handler {
	var mu sync.Mutex
	return FuncHandler(func(r *Record) error {
		mu.Lock()
		defer mu.Unlock()
		_, err := wr.Write(fmtr.Format(r))
		return err
	})
}

// MultiHandler fans a record out to every handler, continuing even if one
// returns an error, returning the first error encountered (if any).
func MultiHandler(hs ...Handler) Handler {
	return FuncHandler(func(r *Record) error {
		var first error
		for _, h := range hs {
			if err := h.Log(r); err != nil && first == nil {
				first = err
			}
		}
		return first
	})
}

// LvlFilterHandler drops records below the given severity (higher Lvl value
// means more verbose; only records with Lvl <= maxLvl pass through).
func LvlFilterHandler(maxLvl Lvl, h Handler) Handler {
	return FuncHandler(func(r *Record) error {
		if r.Lvl > maxLvl {
			return nil
		}
		return h.Log(r)
	})
}

// isTerminal reports whether w is an interactive terminal that should
// receive ANSI color codes.
func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// ColorableStdoutHandler is the conventional interactive handler: ANSI
// colors when attached to a terminal, plain text when redirected to a file
// or pipe (e.g. under a process supervisor).
func ColorableStdoutHandler() Handler {
	out := colorable.NewColorableStdout()
	return StreamHandler(out, TerminalFormat(isTerminal(os.Stdout)))
}

// DailyFileHandler rolls a log file at dir/log.YYYY-MM-DD, opening a new file
// the first time a record is logged on a new calendar day. ANSI is always
// disabled for file output, matching the "rolling daily files ... with ANSI
// disabled" requirement for sedad_home/sedavm_logs.
type DailyFileHandler struct {
	mu      sync.Mutex
	dir     string
	day     string
	cur     *os.File
	fmtr    Format
}

// NewDailyFileHandler creates a DailyFileHandler rooted at dir, creating dir
// if it does not already exist.
func NewDailyFileHandler(dir string) (*DailyFileHandler, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("log: create log dir %s: %w", dir, err)
	}
	return &DailyFileHandler{dir: dir, fmtr: TerminalFormat(false)}, nil
}

func (h *DailyFileHandler) Log(r *Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	day := r.Time.Format("2006-01-02")
	if day != h.day {
		if h.cur != nil {
			h.cur.Close()
		}
		path := filepath.Join(h.dir, "log."+day)
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("log: open %s: %w", path, err)
		}
		h.cur = f
		h.day = day
	}
	_, err := h.cur.Write(h.fmtr.Format(r))
	return err
}

// Close releases the currently open log file, if any.
func (h *DailyFileHandler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cur == nil {
		return nil
	}
	err := h.cur.Close()
	h.cur = nil
	return err
}
