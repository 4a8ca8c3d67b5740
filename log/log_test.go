package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestStreamHandlerWritesLine(t *testing.T) {
	var buf bytes.Buffer
	h := StreamHandler(&buf, TerminalFormat(false))
	sh := new(swapHandler)
	sh.Swap(h)
	l := (&logger{h: sh}).New("component", "test")

	l.Info("hello world", "n", 42)

	out := buf.String()
	if !strings.Contains(out, "hello world") {
		t.Fatalf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "n=42") {
		t.Fatalf("expected context kv in output, got %q", out)
	}
	if !strings.Contains(out, "component=test") {
		t.Fatalf("expected logger context in output, got %q", out)
	}
}

func TestLvlFilterHandlerDropsVerbose(t *testing.T) {
	var buf bytes.Buffer
	inner := StreamHandler(&buf, TerminalFormat(false))
	filtered := LvlFilterHandler(LvlWarn, inner)

	if err := filtered.Log(&Record{Lvl: LvlDebug, Msg: "noisy"}); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected debug record to be filtered, got %q", buf.String())
	}

	if err := filtered.Log(&Record{Lvl: LvlWarn, Msg: "important"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "important") {
		t.Fatalf("expected warn record through, got %q", buf.String())
	}
}

func TestLvlFromString(t *testing.T) {
	cases := map[string]Lvl{"info": LvlInfo, "warn": LvlWarn, "eror": LvlError, "trce": LvlTrace}
	for s, want := range cases {
		got, err := LvlFromString(s)
		if err != nil {
			t.Fatalf("LvlFromString(%q): %v", s, err)
		}
		if got != want {
			t.Fatalf("LvlFromString(%q) = %v, want %v", s, got, want)
		}
	}
	if _, err := LvlFromString("bogus"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
