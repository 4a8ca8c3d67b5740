package log

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
)

// Format renders a Record to bytes for a particular Handler's sink.
type Format interface {
	Format(r *Record) []byte
}

// FormatFunc adapts a plain function to the Format interface.
type FormatFunc func(r *Record) []byte

func (f FormatFunc) Format(r *Record) []byte { return f(r) }

var levelColor = map[Lvl]*color.Color{
	LvlCrit:  color.New(color.FgMagenta, color.Bold),
	LvlError: color.New(color.FgRed, color.Bold),
	LvlWarn:  color.New(color.FgYellow),
	LvlInfo:  color.New(color.FgGreen),
	LvlDebug: color.New(color.FgCyan),
	LvlTrace: color.New(color.FgWhite),
}

// TerminalFormat returns a human-readable, optionally ANSI-colorized
// single-line format: "LVL[time] msg key=val key=val ... (call-site)".
// When useColor is false the output carries no escape codes, matching the
// "ANSI disabled" requirement for the rolling daily log files.
func TerminalFormat(useColor bool) Format {
	return FormatFunc(func(r *Record) []byte {
		var buf bytes.Buffer

		lvl := strings.ToUpper(r.Lvl.String())
		if useColor {
			if c, ok := levelColor[r.Lvl]; ok {
				lvl = c.Sprint(lvl)
			}
		}
		fmt.Fprintf(&buf, "%s[%s] %s", lvl, r.Time.Format("2006-01-02T15:04:05-0700"), r.Msg)

		ctx := formatCtx(r.Ctx)
		if ctx != "" {
			buf.WriteByte(' ')
			buf.WriteString(ctx)
		}
		if r.Call.String() != "" {
			fmt.Fprintf(&buf, " (%s)", r.Call)
		}
		buf.WriteByte('\n')
		return buf.Bytes()
	})
}

// JSONFormat renders a Record as a single-line JSON-ish object, useful for
// log aggregation pipelines that don't want to parse the terminal format.
func JSONFormat() Format {
	return FormatFunc(func(r *Record) []byte {
		var buf bytes.Buffer
		fmt.Fprintf(&buf, `{"t":%q,"lvl":%q,"msg":%q`, r.Time.Format("2006-01-02T15:04:05.000Z07:00"), r.Lvl.String(), r.Msg)
		for i := 0; i+1 < len(r.Ctx); i += 2 {
			fmt.Fprintf(&buf, `,%q:%q`, fmt.Sprint(r.Ctx[i]), fmt.Sprint(r.Ctx[i+1]))
		}
		buf.WriteString("}\n")
		return buf.Bytes()
	})
}

func formatCtx(ctx []interface{}) string {
	if len(ctx) == 0 {
		return ""
	}
	type pair struct{ k, v string }
	pairs := make([]pair, 0, len(ctx)/2)
	for i := 0; i+1 < len(ctx); i += 2 {
		pairs = append(pairs, pair{k: fmt.Sprint(ctx[i]), v: formatValue(ctx[i+1])})
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].k < pairs[j].k })

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.k + "=" + p.v
	}
	return strings.Join(parts, " ")
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case error:
		return strconvQuoteIfNeeded(x.Error())
	case string:
		return strconvQuoteIfNeeded(x)
	default:
		return strconvQuoteIfNeeded(fmt.Sprint(x))
	}
}

func strconvQuoteIfNeeded(s string) string {
	if strings.ContainsAny(s, " \t\"=") {
		return fmt.Sprintf("%q", s)
	}
	return s
}
