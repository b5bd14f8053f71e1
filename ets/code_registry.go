package ets

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// ---------------------------------------------------------------------------
// CodeRegistry: named Go functions backing CodeProperty/CodeMethod
// ---------------------------------------------------------------------------

// CodeRegistry maps "TypeName.MethodName" references from declarative
// documents to registered Go functions. Go has no by-name static method
// lookup, so code references resolve against this explicit registry; the
// reference's category and signature shape are validated at registration
// and again at resolution. Lookup is case-insensitive.
type CodeRegistry struct {
	mu      sync.RWMutex
	getters map[string]CodeGetter
	setters map[string]CodeSetter
	methods map[string]CodeFunc
}

// NewCodeRegistry creates an empty registry.
func NewCodeRegistry() *CodeRegistry {
	return &CodeRegistry{
		getters: make(map[string]CodeGetter),
		setters: make(map[string]CodeSetter),
		methods: make(map[string]CodeFunc),
	}
}

func codeKey(ref string) string { return strings.ToLower(strings.TrimSpace(ref)) }

// RegisterGetter registers a property getter under ref.
func (r *CodeRegistry) RegisterGetter(ref string, fn CodeGetter) error {
	if fn == nil {
		return fmt.Errorf("code reference %q: getter must not be nil", ref)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getters[codeKey(ref)] = fn
	return nil
}

// RegisterSetter registers a property setter under ref.
func (r *CodeRegistry) RegisterSetter(ref string, fn CodeSetter) error {
	if fn == nil {
		return fmt.Errorf("code reference %q: setter must not be nil", ref)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setters[codeKey(ref)] = fn
	return nil
}

// RegisterMethod registers a method body under ref.
func (r *CodeRegistry) RegisterMethod(ref string, fn CodeFunc) error {
	if fn == nil {
		return fmt.Errorf("code reference %q: method must not be nil", ref)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods[codeKey(ref)] = fn
	return nil
}

// Register validates fn against the three accepted signature shapes by
// reflection and files it in the matching category.
func (r *CodeRegistry) Register(ref string, fn any) error {
	switch f := fn.(type) {
	case CodeGetter:
		return r.RegisterGetter(ref, f)
	case func(*Object) (any, error):
		return r.RegisterGetter(ref, f)
	case CodeSetter:
		return r.RegisterSetter(ref, f)
	case func(*Object, any) error:
		return r.RegisterSetter(ref, f)
	case CodeFunc:
		return r.RegisterMethod(ref, f)
	case func(*Object, ...any) (any, error):
		return r.RegisterMethod(ref, f)
	}
	return fmt.Errorf("code reference %q: %s does not match any accepted signature shape",
		ref, reflect.TypeOf(fn))
}

// Getter resolves a getter reference.
func (r *CodeRegistry) Getter(ref string) (CodeGetter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.getters[codeKey(ref)]
	return fn, ok
}

// Setter resolves a setter reference.
func (r *CodeRegistry) Setter(ref string) (CodeSetter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.setters[codeKey(ref)]
	return fn, ok
}

// Method resolves a method reference.
func (r *CodeRegistry) Method(ref string) (CodeFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.methods[codeKey(ref)]
	return fn, ok
}
