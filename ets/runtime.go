package ets

import (
	"sync"
)

// ---------------------------------------------------------------------------
// Runtime: the process-lifetime context owning every shared cache
// ---------------------------------------------------------------------------

// Runtime owns the adapter registry, the session type table, the code
// registry, the script compiler, the resurrection side-tables, and the
// ambient display settings. All shared state lives here rather than in
// package-level variables so that independent runtimes can coexist in the
// same process, which tests rely on.
type Runtime struct {
	adapters *AdapterRegistry
	table    *TypeTable
	code     *CodeRegistry
	compiler ScriptCompiler

	// Weak-keyed side-tables letting wrapper copies recover the state
	// attached to a conceptually shared base value.
	instanceMembers *resurrectionTable[*MemberCollection]
	typeNameCache   *resurrectionTable[*TypeNameHierarchy]

	mu  sync.RWMutex
	ofs string // output field separator for enumeration rendering
}

// NewRuntime creates a runtime with an empty exclusive type table.
func NewRuntime() *Runtime {
	return &Runtime{
		adapters:        NewAdapterRegistry(),
		table:           NewTypeTable(),
		code:            NewCodeRegistry(),
		instanceMembers: newResurrectionTable[*MemberCollection](),
		typeNameCache:   newResurrectionTable[*TypeNameHierarchy](),
		ofs:             " ",
	}
}

// NewRuntimeWithTable creates a runtime around an existing (possibly
// shared) type table.
func NewRuntimeWithTable(table *TypeTable) *Runtime {
	rt := NewRuntime()
	if table != nil {
		rt.table = table
	}
	return rt
}

// Adapters returns the runtime's adapter registry.
func (rt *Runtime) Adapters() *AdapterRegistry { return rt.adapters }

// Types returns the session type table.
func (rt *Runtime) Types() *TypeTable { return rt.table }

// Code returns the code-member registry.
func (rt *Runtime) Code() *CodeRegistry { return rt.code }

// Compiler returns the script compiler, or nil when the host supplied none.
func (rt *Runtime) Compiler() ScriptCompiler {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.compiler
}

// SetCompiler installs the host's script compilation service.
func (rt *Runtime) SetCompiler(c ScriptCompiler) {
	rt.mu.Lock()
	rt.compiler = c
	rt.mu.Unlock()
}

// OutputFieldSeparator returns the separator joining enumerated elements
// in string conversion. Defaults to a single space.
func (rt *Runtime) OutputFieldSeparator() string {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.ofs
}

// SetOutputFieldSeparator overrides the enumeration separator.
func (rt *Runtime) SetOutputFieldSeparator(sep string) {
	rt.mu.Lock()
	rt.ofs = sep
	rt.mu.Unlock()
}
