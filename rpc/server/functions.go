package server

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ValentinKolb/dbsrv/rpc/common"
)

// --------------------------------------------------------------------------
// Function Registry
// --------------------------------------------------------------------------

// FuncRegistry holds the process-wide function commands.
// It is filled before the server starts and only read afterwards.
type FuncRegistry struct {
	funcs map[string]HandlerFunc
}

// NewFuncRegistry creates an empty registry
func NewFuncRegistry() *FuncRegistry {
	return &FuncRegistry{funcs: make(map[string]HandlerFunc)}
}

// Register adds a function. Names must be unique, non-empty and must not start
// with the method prefix or '@'.
func (r *FuncRegistry) Register(name string, fn HandlerFunc) error {
	switch {
	case name == "":
		return fmt.Errorf("function name must not be empty")
	case strings.HasPrefix(name, common.MethodPrefix), strings.HasPrefix(name, "@"):
		return fmt.Errorf("function name %q must not start with %q or %q", name, common.MethodPrefix, "@")
	case fn == nil:
		return fmt.Errorf("function %q is nil", name)
	}
	if _, exists := r.funcs[name]; exists {
		return fmt.Errorf("function %q is already registered", name)
	}
	r.funcs[name] = fn
	return nil
}

// MustRegister is like Register but panics on error
func (r *FuncRegistry) MustRegister(name string, fn HandlerFunc) {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
}

// Lookup returns the function registered under name
func (r *FuncRegistry) Lookup(name string) (HandlerFunc, bool) {
	fn, ok := r.funcs[name]
	return fn, ok
}

// Names returns the sorted names of all functions
func (r *FuncRegistry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultFunctions returns a registry with the builtin functions
func DefaultFunctions() *FuncRegistry {
	r := NewFuncRegistry()
	r.MustRegister("ping", fnPing)
	r.MustRegister("version", fnVersion)
	r.MustRegister("now", fnNow)
	r.MustRegister("echo", fnEcho)
	r.MustRegister("sum", fnSum)
	r.MustRegister("div", fnDiv)
	r.MustRegister("sleep", fnSleep)
	r.MustRegister("print", fnPrint)
	r.MustRegister("info", fnInfo)
	return r
}

// --------------------------------------------------------------------------
// Builtin Functions
// --------------------------------------------------------------------------

func fnPing(_ context.Context, call *Call) (any, error) {
	if err := expectArgs(call, 0, 0); err != nil {
		return nil, err
	}
	return "pong", nil
}

func fnVersion(_ context.Context, call *Call) (any, error) {
	if err := expectArgs(call, 0, 0); err != nil {
		return nil, err
	}
	return common.Version, nil
}

// fnNow returns the server time (RFC 3339, UTC)
func fnNow(_ context.Context, call *Call) (any, error) {
	if err := expectArgs(call, 0, 0); err != nil {
		return nil, err
	}
	return time.Now().UTC().Format(time.RFC3339Nano), nil
}

// fnEcho returns its arguments as a list
func fnEcho(_ context.Context, call *Call) (any, error) {
	if call.Args == nil {
		return []any{}, nil
	}
	return call.Args, nil
}

// fnSum adds numbers. The result is an integer if all arguments are integers.
func fnSum(_ context.Context, call *Call) (any, error) {
	var (
		isum    int64
		fsum    float64
		isFloat bool
	)
	for i, arg := range call.Args {
		if n, ok := arg.(int64); ok && !isFloat {
			if (n > 0 && isum > math.MaxInt64-n) || (n < 0 && isum < math.MinInt64-n) {
				return nil, common.NewCommandError(common.ErrKindArithmetic, "integer overflow")
			}
			isum += n
			continue
		}
		f, err := floatArg(call, i)
		if err != nil {
			return nil, err
		}
		if !isFloat {
			isFloat = true
			fsum = float64(isum)
		}
		fsum += f
	}
	if isFloat {
		return fsum, nil
	}
	return isum, nil
}

// fnDiv divides two numbers. Integer division by zero panics, which is reported
// as an arithmetic failure like an explicit float division by zero.
func fnDiv(_ context.Context, call *Call) (any, error) {
	if err := expectArgs(call, 2, 2); err != nil {
		return nil, err
	}

	a, aInt := call.Args[0].(int64)
	b, bInt := call.Args[1].(int64)
	if aInt && bInt {
		// the only quotient outside the int64 range, Go wraps it silently
		if a == math.MinInt64 && b == -1 {
			return nil, common.NewCommandError(common.ErrKindArithmetic, "integer overflow")
		}
		return a / b, nil
	}

	fa, err := floatArg(call, 0)
	if err != nil {
		return nil, err
	}
	fb, err := floatArg(call, 1)
	if err != nil {
		return nil, err
	}
	if fb == 0 {
		return nil, common.NewCommandError(common.ErrKindArithmetic, "float division by zero")
	}
	return fa / fb, nil
}

// fnSleep blocks for the given number of seconds or until the call deadline
func fnSleep(ctx context.Context, call *Call) (any, error) {
	if err := expectArgs(call, 1, 1); err != nil {
		return nil, err
	}
	seconds, err := floatArg(call, 0)
	if err != nil {
		return nil, err
	}
	if seconds < 0 {
		return nil, common.NewCommandError(common.ErrKindArgument, "sleep length must be non-negative")
	}

	timer := time.NewTimer(time.Duration(seconds * float64(time.Second)))
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fnPrint writes its arguments to the call output, which becomes the result
func fnPrint(_ context.Context, call *Call) (any, error) {
	parts := make([]string, len(call.Args))
	for i, arg := range call.Args {
		if s, ok := arg.(string); ok {
			parts[i] = s
		} else {
			parts[i] = common.FormatValue(arg)
		}
	}
	_, err := fmt.Fprintln(call.Out, strings.Join(parts, " "))
	return nil, err
}

// fnInfo writes a message to the server log
func fnInfo(_ context.Context, call *Call) (any, error) {
	if err := expectArgs(call, 1, -1); err != nil {
		return nil, err
	}
	parts := make([]string, len(call.Args))
	for i, arg := range call.Args {
		parts[i] = fmt.Sprint(arg)
	}
	Logger.Infof("%s", strings.Join(parts, " "))
	return nil, nil
}
