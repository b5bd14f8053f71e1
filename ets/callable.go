package ets

// ---------------------------------------------------------------------------
// Script execution collaborators (opaque to the type system)
// ---------------------------------------------------------------------------

// Callable is a compiled script unit. The type system treats compilation
// and invocation as opaque services supplied by the hosting engine.
type Callable interface {
	// Invoke runs the unit with this as the receiver context.
	Invoke(this any, args ...any) (any, error)
}

// ScriptCompiler turns source text into a Callable. The start line seeds
// diagnostics so errors point into the enclosing document.
type ScriptCompiler interface {
	Compile(source string, startLine int) (Callable, error)
}

// GoCallable adapts a plain Go function to Callable. Used by tests and by
// hosts that register behavior programmatically instead of compiling text.
type GoCallable func(this any, args ...any) (any, error)

// Invoke implements Callable.
func (f GoCallable) Invoke(this any, args ...any) (any, error) {
	return f(this, args...)
}
