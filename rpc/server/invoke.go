package server

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/dbsrv/rpc/common"
)

// --------------------------------------------------------------------------
// Safe Invocation
// --------------------------------------------------------------------------

// SafeCall executes the entry for the given call and never panics.
//
// On success result is the normalized return value (or the captured output if the
// command returned nil) and errKind is empty. On failure result is a message of the
// form `name(args): error` and errKind the category of the failure. Panics are
// reported with their stack. A timeout > 0 bounds the execution; the command keeps
// running in the background if it ignores its context.
//
// Methods are executed while holding the mutex of their adapter.
func SafeCall(ctx context.Context, entry *Entry, call *Call, timeout time.Duration) (result any, errKind string, output string) {
	out := &syncBuffer{}
	call.Out = out

	// server shutdown does not abort running commands, only the deadline does
	callCtx := context.WithoutCancel(ctx)
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, timeout)
		defer cancel()
	}

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		var o outcome
		defer func() {
			if r := recover(); r != nil {
				o = outcome{err: panicError(r, debug.Stack())}
			}
			done <- o
		}()

		if entry.mu != nil {
			entry.mu.Lock()
			defer entry.mu.Unlock()
		}
		o.value, o.err = entry.Fn(callCtx, call)
	}()

	var o outcome
	select {
	case o = <-done:
	case <-callCtx.Done():
		o.err = common.NewCommandError(common.ErrKindTimeout, "exceeded the deadline of %s", timeout)
	}

	output = out.String()
	if o.err == nil {
		if o.value == nil && output != "" {
			return output, "", output
		}
		value, err := common.Normalize(o.value)
		if err == nil {
			return value, "", output
		}
		o.err = common.NewCommandError(common.ErrKindRuntime, "result can not be sent: %v", err)
	}

	errKind = common.KindOf(o.err)
	msg := fmt.Sprintf("%s: %v", call, o.err)
	Logger.Errorf("%s failed with %s: %s", call.Name, errKind, msg)
	return msg, errKind, output
}

// panicError converts a recovered panic into a categorized error
func panicError(r any, stack []byte) error {
	var kind string
	switch v := r.(type) {
	case runtime.Error:
		kind = common.ErrKindPanic
		if strings.Contains(v.Error(), "divide by zero") {
			kind = common.ErrKindArithmetic
		}
	case error:
		kind = common.KindOf(v)
		if kind == common.ErrKindRuntime {
			kind = common.ErrKindPanic
		}
	default:
		kind = common.ErrKindPanic
	}
	return common.NewCommandError(kind, "panic: %v\n%s", r, stack)
}

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

// syncBuffer is a bytes.Buffer safe for concurrent use. A command that outlived its
// deadline may still write while the output is read.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
