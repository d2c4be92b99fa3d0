package main

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"this is a long step description", 12, "this is a..."},
		{"multi\nline   text", 40, "multi line text"},
		{"héllo wörld", 8, "héllo..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1536, "1.5 KiB"},
		{2 << 20, "2.0 MiB"},
		{3 << 30, "3.0 GiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatTime_Zero(t *testing.T) {
	if got := formatTime(time.Time{}); got != "-" {
		t.Errorf("formatTime(zero) = %q, want -", got)
	}
	ts := time.Date(2026, 3, 4, 5, 6, 0, 0, time.Local)
	if got := formatTime(ts); got != "2026-03-04 05:06" {
		t.Errorf("formatTime = %q", got)
	}
}

func TestNewTable_Renders(t *testing.T) {
	var buf bytes.Buffer
	w := newTable(&buf)
	w.AppendHeader([]any{"ID", "NAME"})
	w.AppendRow([]any{1, "Login"})
	w.Render()

	out := buf.String()
	for _, want := range []string{"ID", "NAME", "Login", "┌"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestFolderLabel(t *testing.T) {
	if got := folderLabel(nil); got != "-" {
		t.Errorf("folderLabel(nil) = %q", got)
	}
	id := uint(4)
	if got := folderLabel(&id); got != "4" {
		t.Errorf("folderLabel(4) = %q", got)
	}
}
