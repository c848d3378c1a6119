package util

import (
	"reflect"
	"strings"
	"testing"
)

// TestParseArg tests the conversion of command line arguments
func TestParseArg(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"42", int64(42)},
		{"-7", int64(-7)},
		{"1.5", 1.5},
		{"1e3", 1000.0},
		{"true", true},
		{"false", false},
		{"null", nil},
		{"hello", "hello"},
		{"s:42", "42"},
		{"[1, 2.5, \"a\"]", []any{int64(1), 2.5, "a"}},
		{"{\"k\": [true]}", map[string]any{"k": []any{true}}},
		{"[broken", "[broken"},
		{"", ""},
		{"nan", "nan"},
	}

	for _, tt := range tests {
		if got := ParseArg(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseArg(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

// TestWrapString tests the wrapping of help texts
func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 40)
	for _, line := range strings.Split(WrapString(text), "\n") {
		if len(line) > Wrap {
			t.Errorf("line longer than %d characters: %q", Wrap, line)
		}
	}
	if WrapString("  a   b  ") != "a b" {
		t.Errorf("unexpected wrap of short text: %q", WrapString("  a   b  "))
	}
}

// TestFormatResult tests the terminal rendering of results
func TestFormatResult(t *testing.T) {
	if FormatResult("pong") != "pong" {
		t.Errorf("strings should be printed unquoted")
	}
	if got := FormatResult([]any{int64(1), "a"}); got != `[1, "a"]` {
		t.Errorf("unexpected list rendering %q", got)
	}
}
