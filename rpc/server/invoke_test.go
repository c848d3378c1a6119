package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dbsrv/rpc/common"
)

func run(t *testing.T, name string, args ...any) (any, string) {
	t.Helper()
	table, err := NewTable(DefaultFunctions())
	if err != nil {
		t.Fatalf("failed to build table: %v", err)
	}
	entry, err := table.Resolve(name)
	if err != nil {
		t.Fatalf("resolve %s failed: %v", name, err)
	}
	result, kind, _ := SafeCall(context.Background(), entry, &Call{Name: name, Args: args}, time.Second)
	return result, kind
}

// TestBuiltins tests the results of the builtin functions
func TestBuiltins(t *testing.T) {
	tests := []struct {
		name string
		args []any
		want any
	}{
		{"ping", nil, "pong"},
		{"version", nil, common.Version},
		{"echo", []any{int64(1), "a", []byte{2}}, []any{int64(1), "a", []byte{2}}},
		{"echo", nil, []any{}},
		{"sum", []any{int64(1), int64(2), int64(3)}, int64(6)},
		{"sum", []any{int64(1), 0.5}, 1.5},
		{"sum", nil, int64(0)},
		{"div", []any{int64(7), int64(2)}, int64(3)},
		{"div", []any{int64(1), 4.0}, 0.25},
		{"sleep", []any{0.01}, nil},
		{"print", []any{"hello", int64(42)}, "hello 42\n"},
	}

	for _, tt := range tests {
		got, kind := run(t, tt.name, tt.args...)
		if kind != "" {
			t.Errorf("%s%v failed with %s: %v", tt.name, tt.args, kind, got)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s%v = %#v, want %#v", tt.name, tt.args, got, tt.want)
		}
	}
}

// TestFailures tests the error kinds reported for failing commands
func TestFailures(t *testing.T) {
	tests := []struct {
		name string
		args []any
		kind string
	}{
		{"div", []any{int64(1), int64(0)}, common.ErrKindArithmetic},
		{"div", []any{int64(math.MinInt64), int64(-1)}, common.ErrKindArithmetic},
		{"div", []any{1.0, 0.0}, common.ErrKindArithmetic},
		{"div", []any{int64(1)}, common.ErrKindArgument},
		{"div", []any{"a", int64(1)}, common.ErrKindArgument},
		{"sum", []any{int64(9223372036854775807), int64(1)}, common.ErrKindArithmetic},
		{"ping", []any{int64(1)}, common.ErrKindArgument},
		{"sleep", []any{-1.0}, common.ErrKindArgument},
	}

	for _, tt := range tests {
		got, kind := run(t, tt.name, tt.args...)
		if kind != tt.kind {
			t.Errorf("%s%v: expected %s, got %q (%v)", tt.name, tt.args, tt.kind, kind, got)
			continue
		}
		msg, ok := got.(string)
		if !ok || !strings.HasPrefix(msg, tt.name+"(") {
			t.Errorf("%s%v: message should name the call, got %v", tt.name, tt.args, got)
		}
	}
}

// TestPanic tests that panics are reported with their stack
func TestPanic(t *testing.T) {
	entry := &Entry{Name: "boom", Fn: func(context.Context, *Call) (any, error) {
		panic("boom")
	}}
	got, kind, _ := SafeCall(context.Background(), entry, &Call{Name: "boom"}, 0)
	if kind != common.ErrKindPanic {
		t.Fatalf("expected PanicError, got %q", kind)
	}
	if msg := got.(string); !strings.Contains(msg, "boom") || !strings.Contains(msg, "goroutine") {
		t.Errorf("message should contain the panic value and the stack, got %q", msg)
	}

	// a panic with a kind keeps it
	entry.Fn = func(context.Context, *Call) (any, error) {
		panic(common.NewCommandError(common.ErrKindStore, "disk gone"))
	}
	if _, kind, _ := SafeCall(context.Background(), entry, &Call{Name: "boom"}, 0); kind != common.ErrKindStore {
		t.Errorf("expected StoreError, got %q", kind)
	}
}

// TestTimeout tests the per-call deadline
func TestTimeout(t *testing.T) {
	entry := &Entry{Name: "block", Fn: func(context.Context, *Call) (any, error) {
		time.Sleep(time.Second)
		return nil, nil
	}}
	start := time.Now()
	_, kind, _ := SafeCall(context.Background(), entry, &Call{Name: "block"}, 50*time.Millisecond)
	if kind != common.ErrKindTimeout {
		t.Errorf("expected TimeoutError, got %q", kind)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("SafeCall did not return at the deadline")
	}

	// commands honoring the context report the timeout as well
	got, kind := run(t, "sleep", 5.0)
	if kind != common.ErrKindTimeout {
		t.Errorf("expected TimeoutError for sleep, got %q (%v)", kind, got)
	}
}

// TestErrorKinds tests the conversion of plain and categorized errors
func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err  error
		kind string
	}{
		{errors.New("plain"), common.ErrKindRuntime},
		{fmt.Errorf("wrapped: %w", common.NewCommandError(common.ErrKindNotFound, "x")), common.ErrKindNotFound},
		{context.DeadlineExceeded, common.ErrKindTimeout},
		{&common.CommandError{Msg: "boom"}, common.ErrKindRuntime},
	}
	for _, tt := range tests {
		entry := &Entry{Name: "f", Fn: func(context.Context, *Call) (any, error) { return nil, tt.err }}
		if _, kind, _ := SafeCall(context.Background(), entry, &Call{Name: "f"}, 0); kind != tt.kind {
			t.Errorf("%v: expected %s, got %s", tt.err, tt.kind, kind)
		}
	}

	// results outside the value model are runtime errors
	entry := &Entry{Name: "f", Fn: func(context.Context, *Call) (any, error) { return make(chan int), nil }}
	if _, kind, _ := SafeCall(context.Background(), entry, &Call{Name: "f"}, 0); kind != common.ErrKindRuntime {
		t.Errorf("expected RuntimeError for an unsendable result, got %s", kind)
	}
}

// TestMethodMutex tests that methods of one adapter never run concurrently
func TestMethodMutex(t *testing.T) {
	var active, peak int
	var mu sync.Mutex
	slow := func(context.Context, *Call) (any, error) {
		mu.Lock()
		active++
		peak = max(peak, active)
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return nil, nil
	}

	table, _ := NewTable(nil, &testAdapter{name: "a", methods: map[string]HandlerFunc{"x": slow, "y": slow}})
	x, _ := table.Resolve(".x")
	y, _ := table.Resolve(".y")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		for _, e := range []*Entry{x, y} {
			wg.Add(1)
			go func(e *Entry) {
				defer wg.Done()
				SafeCall(context.Background(), e, &Call{Name: e.Name}, 0)
			}(e)
		}
	}
	wg.Wait()

	if peak != 1 {
		t.Errorf("methods of one adapter ran concurrently (peak %d)", peak)
	}
}
