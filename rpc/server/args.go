package server

import (
	"github.com/ValentinKolb/dbsrv/rpc/common"
)

// --------------------------------------------------------------------------
// Argument Helper
// --------------------------------------------------------------------------

// expectArgs checks the number of arguments (hi < 0 = unlimited)
func expectArgs(call *Call, lo, hi int) error {
	n := len(call.Args)
	if n >= lo && (hi < 0 || n <= hi) {
		return nil
	}
	switch {
	case lo == hi:
		return common.NewCommandError(common.ErrKindArgument, "%s takes %d argument(s) but %d were given", call.Name, lo, n)
	case hi < 0:
		return common.NewCommandError(common.ErrKindArgument, "%s takes at least %d argument(s) but %d were given", call.Name, lo, n)
	default:
		return common.NewCommandError(common.ErrKindArgument, "%s takes %d to %d arguments but %d were given", call.Name, lo, hi, n)
	}
}

func stringArg(call *Call, i int) (string, error) {
	s, ok := call.Args[i].(string)
	if !ok {
		return "", argTypeError(call, i, "string")
	}
	return s, nil
}

func intArg(call *Call, i int) (int64, error) {
	n, ok := common.AsInt64(call.Args[i])
	if !ok {
		return 0, argTypeError(call, i, "integer")
	}
	return n, nil
}

func floatArg(call *Call, i int) (float64, error) {
	f, ok := common.AsFloat64(call.Args[i])
	if !ok {
		return 0, argTypeError(call, i, "number")
	}
	return f, nil
}

// bytesArg accepts bytes and strings
func bytesArg(call *Call, i int) ([]byte, error) {
	switch x := call.Args[i].(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	default:
		return nil, argTypeError(call, i, "bytes")
	}
}

func argTypeError(call *Call, i int, want string) error {
	return common.NewCommandError(common.ErrKindArgument, "argument %d of %s must be %s, got %s",
		i+1, call.Name, want, common.FormatValue(call.Args[i]))
}
