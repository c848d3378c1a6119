package server

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ValentinKolb/dbsrv/rpc/common"
)

// EntryKind tells functions and methods apart
type EntryKind uint8

const (
	KindFunction EntryKind = iota // process-wide function
	KindMethod                    // method bound to server state
)

func (k EntryKind) String() string {
	if k == KindMethod {
		return "method"
	}
	return "function"
}

// Entry is a resolved command
type Entry struct {
	Name string
	Kind EntryKind
	Fn   HandlerFunc

	// mu guards the state of the adapter the method belongs to (nil for functions)
	mu *sync.Mutex
}

// --------------------------------------------------------------------------
// Dispatch Table
// --------------------------------------------------------------------------

// Table maps command names to entries. It is built once and read-only afterwards,
// so it can be shared by all workers without locking.
type Table struct {
	entries map[string]*Entry
}

// NewTable builds the dispatch table from the function registry and the method adapters.
// Method names are registered with the method prefix. Two adapters must not provide
// the same method.
func NewTable(functions *FuncRegistry, adapters ...IRPCServerAdapter) (*Table, error) {
	t := &Table{entries: make(map[string]*Entry)}

	if functions != nil {
		for name, fn := range functions.funcs {
			t.entries[name] = &Entry{Name: name, Kind: KindFunction, Fn: fn}
		}
	}

	for _, adapter := range adapters {
		mu := &sync.Mutex{}
		for name, fn := range adapter.Methods() {
			if name == "" || strings.HasPrefix(name, common.MethodPrefix) {
				return nil, fmt.Errorf("adapter %s: invalid method name %q", adapter.Name(), name)
			}
			full := common.MethodPrefix + name
			if _, exists := t.entries[full]; exists {
				return nil, fmt.Errorf("adapter %s: method %q is already registered", adapter.Name(), name)
			}
			t.entries[full] = &Entry{Name: full, Kind: KindMethod, Fn: fn, mu: mu}
		}
	}

	return t, nil
}

// Resolve looks up a command by name. Unknown functions are LookupErrors,
// unknown methods are AttributeErrors.
func (t *Table) Resolve(name string) (*Entry, error) {
	if e, ok := t.entries[name]; ok {
		return e, nil
	}
	if strings.HasPrefix(name, common.MethodPrefix) {
		return nil, common.NewCommandError(common.ErrKindAttribute, "server has no method %q", strings.TrimPrefix(name, common.MethodPrefix))
	}
	return nil, common.NewCommandError(common.ErrKindLookup, "unknown function %q", name)
}

// Names returns all registered command names, sorted
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.entries))
	for name := range t.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Bind creates the call for a command resolved to entry. For methods the trailing
// calculation id is split off the arguments.
func (t *Table) Bind(entry *Entry, msg *common.Message) (*Call, error) {
	call := &Call{Name: msg.Name, Args: msg.Args}
	if entry.Kind != KindMethod {
		return call, nil
	}

	n := len(msg.Args)
	if n == 0 {
		return nil, common.NewCommandError(common.ErrKindArgument, "method %s requires a calculation id as last argument", msg.Name)
	}
	calcID, ok := msg.Args[n-1].(int64)
	if !ok {
		return nil, common.NewCommandError(common.ErrKindArgument, "calculation id of %s must be an integer, got %s",
			msg.Name, common.FormatValue(msg.Args[n-1]))
	}
	call.CalcID = calcID
	call.Args = msg.Args[:n-1]
	return call, nil
}
