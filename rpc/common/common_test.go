package common

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

// TestNormalize tests the conversion of Go values into the wire value set
func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"int", 42, int64(42)},
		{"int32", int32(-7), int64(-7)},
		{"uint16", uint16(7), int64(7)},
		{"float32", float32(0.5), float64(0.5)},
		{"string", "hello", "hello"},
		{"bytes", []byte("raw"), []byte("raw")},
		{"string slice", []string{"a", "b"}, []any{"a", "b"}},
		{"nested", []any{1, []int{2, 3}}, []any{int64(1), []any{int64(2), int64(3)}}},
		{"typed map", map[string]int{"a": 1}, map[string]any{"a": int64(1)}},
		{"error", errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Normalize(%#v) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

// TestNormalizeUnsupported tests that values without wire representation are rejected
func TestNormalizeUnsupported(t *testing.T) {
	unsupported := []any{
		make(chan int),
		func() {},
		struct{ A int }{1},
		map[int]string{1: "a"},
		uint64(1 << 63),
		[]any{1, make(chan int)},
	}

	for i, v := range unsupported {
		if _, err := Normalize(v); err == nil {
			t.Errorf("case %d: expected error for %T", i, v)
		}
	}
}

// TestNewCommand tests the command factories
func TestNewCommand(t *testing.T) {
	cmd, err := NewCommand("sum", 1, 2.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.MsgType != MsgTCommand || cmd.Name != "sum" || !reflect.DeepEqual(cmd.Args, []any{int64(1), 2.5}) {
		t.Errorf("unexpected command: %+v", cmd)
	}

	cmd, err = NewCommand("ping")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Args != nil {
		t.Errorf("expected nil args, got %#v", cmd.Args)
	}

	method, err := NewMethodCommand("foo", 42, 1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method.Name != ".foo" || !method.IsMethod() {
		t.Errorf("expected method name .foo, got %s", method.Name)
	}
	if !reflect.DeepEqual(method.Args, []any{int64(1), int64(2), int64(42)}) {
		t.Errorf("calculation id must be the last argument, got %#v", method.Args)
	}

	// the calculation id must not be written into the caller's slice
	backing := []any{"a", "keep-me"}
	if _, err := NewMethodCommand("foo", 7, backing[:1]...); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(backing, []any{"a", "keep-me"}) {
		t.Errorf("arguments of the caller were modified: %#v", backing)
	}

	if !NewStopCommand().IsStop() {
		t.Errorf("stop command not recognized")
	}

	if _, err := NewCommand("bad", make(chan int)); err == nil {
		t.Errorf("expected error for unsupported argument")
	}
}

// TestMessageValidate tests the validation of incoming commands
func TestMessageValidate(t *testing.T) {
	valid := Message{MsgType: MsgTCommand, Name: "ping"}
	if err := valid.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	invalid := []Message{
		{MsgType: MsgTReply, Name: "ping"},
		{MsgType: MsgTCommand},
		{MsgType: MsgTCommand, Name: MethodPrefix},
	}
	for i, msg := range invalid {
		if err := msg.Validate(); err == nil {
			t.Errorf("case %d: expected validation error for %+v", i, msg)
		}
	}
}

// TestMessageString tests the call-like representation used in error messages
func TestMessageString(t *testing.T) {
	cmd, _ := NewCommand("div", 1, 0)
	if got := cmd.String(); got != "div(1, 0)" {
		t.Errorf("got %q", got)
	}

	cmd, _ = NewCommand("echo", "a", []any{1, nil}, map[string]any{"b": 2, "a": 1})
	if got := cmd.String(); got != `echo("a", [1, null], {"a": 1, "b": 2})` {
		t.Errorf("got %q", got)
	}
}

// TestCommandErrorIs tests that sentinel errors match errors of the same kind
func TestCommandErrorIs(t *testing.T) {
	remote := &CommandError{Kind: ErrKindArithmetic, Msg: "div(1, 0): integer divide by zero"}
	local := NewCommandError(ErrKindArithmetic, "division by zero")

	for _, err := range []error{remote, local, fmt.Errorf("wrapped: %w", remote)} {
		if !errors.Is(err, ErrArithmetic) {
			t.Errorf("%v should match ErrArithmetic", err)
		}
		if errors.Is(err, ErrLookup) {
			t.Errorf("%v should not match ErrLookup", err)
		}
	}

	if errors.Is(remote, local) {
		t.Errorf("errors with different messages should not match")
	}

	if !strings.HasPrefix(remote.Error(), ErrKindArithmetic+": ") {
		t.Errorf("unexpected error text: %s", remote.Error())
	}
}

// TestKindOf tests the classification of errors
func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{errors.New("plain"), ErrKindRuntime},
		{ErrLookup, ErrKindLookup},
		{fmt.Errorf("ctx: %w", NewCommandError(ErrKindArgument, "bad")), ErrKindArgument},
		{context.DeadlineExceeded, ErrKindTimeout},
		{&CommandError{Msg: "boom"}, ErrKindRuntime},
		{fmt.Errorf("wrapped: %w", &CommandError{}), ErrKindRuntime},
	}

	for i, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("case %d: KindOf(%v) = %q, want %q", i, tt.err, got, tt.want)
		}
	}
}

// TestServerConfigValidate tests the struct tag validation of the server configuration
func TestServerConfigValidate(t *testing.T) {
	valid := ServerConfig{
		Endpoint: "localhost:1907",
		AuthKey:  "secret",
		Workers:  1,
		Store:    StoreConfig{Type: StoreTypeMemory},
		LogLevel: "info",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mutations := map[string]func(c *ServerConfig){
		"missing endpoint": func(c *ServerConfig) { c.Endpoint = "" },
		"missing auth key": func(c *ServerConfig) { c.AuthKey = "" },
		"zero workers":     func(c *ServerConfig) { c.Workers = 0 },
		"bad log level":    func(c *ServerConfig) { c.LogLevel = "verbose" },
		"bad store":        func(c *ServerConfig) { c.Store.Type = "sqlite" },
		"badger no dir":    func(c *ServerConfig) { c.Store.Type = StoreTypeBadger },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			c := valid
			mutate(&c)
			if err := c.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}

	if strings.Contains(valid.String(), "secret") {
		t.Errorf("configuration string must not contain the auth key")
	}
}
