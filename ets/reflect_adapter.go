package ets

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// ---------------------------------------------------------------------------
// ReflectAdapter: the default native adapter over Go reflection
// ---------------------------------------------------------------------------

// ReflectAdapter discovers exported struct fields and methods of arbitrary
// Go values. Member tables are built once per concrete type and cached;
// the members themselves carry no per-instance state, so the adapted tier
// may hand out live references.
type ReflectAdapter struct {
	cache sync.Map // reflect.Type -> *reflectTypeInfo
}

// NewReflectAdapter creates a reflection adapter with an empty type cache.
func NewReflectAdapter() *ReflectAdapter {
	return &ReflectAdapter{}
}

type reflectTypeInfo struct {
	typeNames []string
	members   *MemberCollection
}

func (a *ReflectAdapter) info(rt reflect.Type) *reflectTypeInfo {
	if cached, ok := a.cache.Load(rt); ok {
		return cached.(*reflectTypeInfo)
	}
	built := buildReflectTypeInfo(rt)
	actual, _ := a.cache.LoadOrStore(rt, built)
	return actual.(*reflectTypeInfo)
}

// TypeNames returns the concrete type, its pointee, each embedded struct
// type (Go's nearest analog to a base-class chain), and the kind as a
// coarse root, most-specific first.
func (a *ReflectAdapter) TypeNames(base any) []string {
	rt := reflect.TypeOf(base)
	if rt == nil {
		return []string{"<nil>"}
	}
	return append([]string(nil), a.info(rt).typeNames...)
}

// Member finds a field or method by case-insensitive name.
func (a *ReflectAdapter) Member(base any, name string) Member {
	rt := reflect.TypeOf(base)
	if rt == nil {
		return nil
	}
	return a.info(rt).members.Lookup(name)
}

// Members enumerates the value's fields and methods. The returned
// collection shares the cached member objects; they are immutable.
func (a *ReflectAdapter) Members(base any) *MemberCollection {
	rt := reflect.TypeOf(base)
	if rt == nil {
		return NewMemberCollection()
	}
	info := a.info(rt)
	out := NewMemberCollection()
	for _, m := range info.members.Members() {
		out.Replace(m)
	}
	return out
}

func buildReflectTypeInfo(rt reflect.Type) *reflectTypeInfo {
	info := &reflectTypeInfo{members: NewMemberCollection()}
	info.typeNames = reflectTypeNames(rt)

	// Methods first: the method set of the concrete type (including
	// pointer-receiver methods when rt is a pointer).
	for i := 0; i < rt.NumMethod(); i++ {
		m := rt.Method(i)
		if m.PkgPath != "" {
			continue
		}
		info.members.Replace(&reflectMethod{
			memberBase: memberBase{name: m.Name},
		})
	}

	st := rt
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st.Kind() == reflect.Struct {
		settable := rt.Kind() == reflect.Pointer
		for _, f := range reflect.VisibleFields(st) {
			if f.PkgPath != "" || f.Anonymous {
				continue
			}
			info.members.Replace(&reflectFieldProperty{
				memberBase: memberBase{name: f.Name},
				index:      f.Index,
				settable:   settable,
			})
		}
	}
	return info
}

func reflectTypeNames(rt reflect.Type) []string {
	var names []string
	seen := make(map[string]struct{})
	add := func(n string) {
		if _, dup := seen[n]; !dup {
			seen[n] = struct{}{}
			names = append(names, n)
		}
	}

	add(rt.String())
	st := rt
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
		add(st.String())
	}
	if st.Kind() == reflect.Struct {
		addEmbedded(st, add)
	}
	add(st.Kind().String())
	return names
}

// addEmbedded appends embedded struct types breadth-first, the closest
// thing Go has to an inheritance chain.
func addEmbedded(st reflect.Type, add func(string)) {
	queue := []reflect.Type{st}
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.Anonymous {
				continue
			}
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			add(ft.String())
			if ft.Kind() == reflect.Struct {
				queue = append(queue, ft)
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Reflected members
// ---------------------------------------------------------------------------

// reflectFieldProperty reads and writes one exported struct field.
type reflectFieldProperty struct {
	memberBase
	index    []int
	settable bool
}

func (p *reflectFieldProperty) Kind() MemberKind { return KindProperty }

func (p *reflectFieldProperty) structValue(obj *Object) (reflect.Value, error) {
	rv := reflect.ValueOf(obj.Base())
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, fmt.Errorf("property %q: base is nil", p.name)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("property %q: base %T is not a struct", p.name, obj.Base())
	}
	return rv, nil
}

func (p *reflectFieldProperty) Get(obj *Object) (any, error) {
	rv, err := p.structValue(obj)
	if err != nil {
		return nil, err
	}
	fv, err := rv.FieldByIndexErr(p.index)
	if err != nil {
		return nil, fmt.Errorf("property %q: %w", p.name, err)
	}
	return fv.Interface(), nil
}

func (p *reflectFieldProperty) Set(obj *Object, value any) error {
	rv, err := p.structValue(obj)
	if err != nil {
		return err
	}
	fv, err := rv.FieldByIndexErr(p.index)
	if err != nil {
		return fmt.Errorf("property %q: %w", p.name, err)
	}
	if !fv.CanSet() {
		return fmt.Errorf("property %q is not settable (wrap a pointer to set fields)", p.name)
	}
	nv, err := assignableValue(value, fv.Type())
	if err != nil {
		return fmt.Errorf("property %q: %w", p.name, err)
	}
	fv.Set(nv)
	return nil
}

func (p *reflectFieldProperty) IsSettable() bool { return p.settable }

func (p *reflectFieldProperty) Copy() Member {
	c := *p
	return &c
}

// reflectMethod invokes a named method on the base value.
type reflectMethod struct {
	memberBase
}

func (m *reflectMethod) Kind() MemberKind { return KindMethod }

func (m *reflectMethod) Invoke(obj *Object, args ...any) (result any, err error) {
	rv := reflect.ValueOf(obj.Base())
	fn := rv.MethodByName(m.name)
	if !fn.IsValid() {
		return nil, fmt.Errorf("method %q not found on %T", m.name, obj.Base())
	}

	in, err := methodArgs(fn.Type(), args)
	if err != nil {
		return nil, fmt.Errorf("method %q: %w", m.name, err)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("method %q panicked: %v", m.name, r)
		}
	}()
	out := fn.Call(in)
	return methodResults(out)
}

func (m *reflectMethod) Copy() Member {
	c := *m
	return &c
}

func methodArgs(ft reflect.Type, args []any) ([]reflect.Value, error) {
	numIn := ft.NumIn()
	if ft.IsVariadic() {
		if len(args) < numIn-1 {
			return nil, fmt.Errorf("want at least %d args, got %d", numIn-1, len(args))
		}
	} else if len(args) != numIn {
		return nil, fmt.Errorf("want %d args, got %d", numIn, len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		var want reflect.Type
		if ft.IsVariadic() && i >= numIn-1 {
			want = ft.In(numIn - 1).Elem()
		} else {
			want = ft.In(i)
		}
		v, err := assignableValue(arg, want)
		if err != nil {
			return nil, fmt.Errorf("arg %d: %w", i, err)
		}
		in[i] = v
	}
	return in, nil
}

func methodResults(out []reflect.Value) (any, error) {
	// A trailing error result is split off; remaining results collapse to
	// a single value or a slice.
	var err error
	if n := len(out); n > 0 && out[n-1].Type() == errorType {
		if !out[n-1].IsNil() {
			err = out[n-1].Interface().(error)
		}
		out = out[:n-1]
	}
	switch len(out) {
	case 0:
		return nil, err
	case 1:
		return out[0].Interface(), err
	}
	results := make([]any, len(out))
	for i, v := range out {
		results[i] = v.Interface()
	}
	return results, err
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// assignableValue converts arg to the wanted type, allowing Go's implicit
// numeric convertibility.
func assignableValue(arg any, want reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch want.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
			return reflect.Zero(want), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot pass nil as %s", want)
	}
	v := reflect.ValueOf(arg)
	if v.Type().AssignableTo(want) {
		return v, nil
	}
	// Only numeric widening/narrowing converts implicitly. Go's full
	// ConvertibleTo would also turn an int into a one-rune string,
	// which is never what a caller meant.
	if isNumericKind(v.Kind()) && isNumericKind(want.Kind()) && v.Type().ConvertibleTo(want) {
		return v.Convert(want), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", arg, want)
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
