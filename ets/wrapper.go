package ets

import (
	"fmt"
	"reflect"
	"sync"
)

// ---------------------------------------------------------------------------
// Object: the member-resolution wrapper around an arbitrary value
// ---------------------------------------------------------------------------

type objectFlags uint8

const (
	// flagDeserialized marks values reconstructed from a serialized form:
	// the instance collection is the deserialization-time snapshot of
	// adapted members and there is no live adapter tier.
	flagDeserialized objectFlags = 1 << iota
	// flagStoreLocally keeps instance members on this wrapper instead of
	// sharing them through the resurrection table.
	flagStoreLocally
)

// placeholderBase is the empty-base sentinel: a wrapper around it is a
// pure property bag with no intrinsic members beyond attached ones. The
// struct is deliberately non-zero-sized so every sentinel has a distinct
// identity.
type placeholderBase struct {
	id byte
}

// Object wraps a base value and exposes unified member collections
// resolved through three tiers: members attached to this instance, the
// type table's extended members for the value's type-name hierarchy, and
// the selected adapter's native members.
type Object struct {
	rt   *Runtime
	base any

	mu         sync.Mutex
	instance   *MemberCollection
	typeNames  *TypeNameHierarchy
	adapters   AdapterPair
	adaptersOK bool

	flags            objectFlags
	toStringCache    string
	hasToStringCache bool
	fallbackTable    *TypeTable
}

// Wrap returns v's wrapper: v itself when already wrapped, otherwise a
// new wrapper around v.
func (rt *Runtime) Wrap(v any) *Object {
	if o, ok := v.(*Object); ok {
		return o
	}
	return rt.NewObject(v)
}

// NewObject creates a fresh wrapper. Wrapper chains collapse: wrapping a
// wrapper wraps its innermost base.
func (rt *Runtime) NewObject(v any) *Object {
	base := v
	for {
		o, ok := base.(*Object)
		if !ok {
			break
		}
		base = o.base
	}
	return &Object{rt: rt, base: base}
}

// NewPropertyBag creates a wrapper around a fresh empty-base sentinel.
// Members are stored locally; the bag has no shared identity.
func (rt *Runtime) NewPropertyBag() *Object {
	return &Object{rt: rt, base: &placeholderBase{}, flags: flagStoreLocally}
}

// NewDeserializedObject reconstructs a wrapper from serialized state. The
// snapshot of adapted members becomes the instance tier, and the adapted
// tier is absent.
func (rt *Runtime) NewDeserializedObject(typeNames []string, snapshot *MemberCollection) *Object {
	o := &Object{
		rt:    rt,
		base:  &placeholderBase{},
		flags: flagDeserialized | flagStoreLocally,
	}
	if snapshot != nil {
		o.instance = snapshot
	} else {
		o.instance = NewMemberCollection()
	}
	if len(typeNames) > 0 {
		if h, err := NewTypeNameHierarchy(typeNames...); err == nil {
			o.typeNames = h.Clone()
		}
	}
	return o
}

// Runtime returns the owning runtime.
func (o *Object) Runtime() *Runtime { return o.rt }

// Base returns the wrapped base value (never another wrapper).
func (o *Object) Base() any { return o.base }

// IsPropertyBag reports whether the base is the empty-base sentinel.
func (o *Object) IsPropertyBag() bool {
	_, ok := o.base.(*placeholderBase)
	return ok
}

// IsDeserialized reports whether this wrapper was reconstructed from a
// serialized form.
func (o *Object) IsDeserialized() bool { return o.flags&flagDeserialized != 0 }

// StoresMembersLocally reports whether instance members bypass the
// resurrection table.
func (o *Object) StoresMembersLocally() bool { return o.flags&flagStoreLocally != 0 }

// StoreMembersLocally keeps this wrapper's instance members private
// instead of sharing them by base identity. Takes effect for members
// attached after the call.
func (o *Object) StoreMembersLocally() {
	o.mu.Lock()
	o.flags |= flagStoreLocally
	o.mu.Unlock()
}

// CachedString returns the deserialization-time string form, if any.
func (o *Object) CachedString() (string, bool) {
	return o.toStringCache, o.hasToStringCache
}

// SetCachedString installs a literal string form returned verbatim by
// ToString, bypassing every other conversion strategy.
func (o *Object) SetCachedString(s string) {
	o.toStringCache = s
	o.hasToStringCache = true
}

// SetFallbackTable pins a per-object type table that overrides the
// runtime's own. Objects rehydrated from another session keep that
// session's extensions this way instead of picking up local ones.
func (o *Object) SetFallbackTable(t *TypeTable) { o.fallbackTable = t }

func (o *Object) typeTable() *TypeTable {
	if o.fallbackTable != nil {
		return o.fallbackTable
	}
	if o.rt != nil {
		return o.rt.table
	}
	return nil
}

// ---------------------------------------------------------------------------
// Instance-member materialization
// ---------------------------------------------------------------------------

// instanceCollection returns the attached member collection without
// materializing one.
func (o *Object) instanceCollection() *MemberCollection {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.instance != nil {
		return o.instance
	}
	if o.flags&flagStoreLocally == 0 {
		if mc, ok := o.rt.instanceMembers.lookup(o.base); ok {
			o.instance = mc
			return mc
		}
	}
	return nil
}

// ensureInstanceMembers materializes the collection, sharing it through
// the resurrection table when the base is identity-bearing. The wrapper's
// own lock guards the race between two goroutines materializing the same
// wrapper.
func (o *Object) ensureInstanceMembers() *MemberCollection {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.instance != nil {
		return o.instance
	}
	if o.flags&flagStoreLocally == 0 {
		if mc, ok := o.rt.instanceMembers.getOrCreate(o.base, NewMemberCollection); ok {
			o.instance = mc
			return mc
		}
	}
	o.instance = NewMemberCollection()
	return o.instance
}

// AddMember attaches a member to this instance. Duplicate names fail.
func (o *Object) AddMember(m Member) error {
	return o.ensureInstanceMembers().Add(m)
}

// ReplaceMember attaches a member, overwriting a same-named one.
func (o *Object) ReplaceMember(m Member) {
	o.ensureInstanceMembers().Replace(m)
}

// RemoveMember detaches an instance member. Returns false when absent.
func (o *Object) RemoveMember(name string) bool {
	mc := o.instanceCollection()
	if mc == nil {
		return false
	}
	return mc.Remove(name)
}

// ---------------------------------------------------------------------------
// Type-name hierarchy
// ---------------------------------------------------------------------------

// TypeNames returns the value's type-name hierarchy, most-specific first.
// Computed lazily from the adapter (or inherited through the resurrection
// cache when another wrapper of the same base overrode it) and shared by
// reference until promoted.
func (o *Object) TypeNames() *TypeNameHierarchy {
	pair := o.adapterPair()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.typeNames != nil {
		return o.typeNames
	}
	if h, ok := o.rt.typeNameCache.lookup(o.base); ok {
		o.typeNames = h
		return h
	}

	var names []string
	if o.IsPropertyBag() {
		names = []string{"facet.PropertyBag"}
	} else if pair.Primary != nil {
		names = pair.Primary.TypeNames(o.base)
	}
	h, err := NewTypeNameHierarchy(names...)
	if err != nil {
		h, _ = NewTypeNameHierarchy("facet.Object")
	}
	o.typeNames = h
	return h
}

// MutableTypeNames promotes the hierarchy to a private mutable copy on
// first call and returns it. The promoted copy is shared with other
// wrappers of the same base through the resurrection cache.
func (o *Object) MutableTypeNames() *TypeNameHierarchy {
	h := o.TypeNames()
	if !h.ReadOnly() {
		return h
	}
	private := h.Clone()
	o.mu.Lock()
	o.typeNames = private
	o.mu.Unlock()
	o.rt.typeNameCache.put(o.base, private)
	return private
}

// SetTypeNames replaces the hierarchy outright.
func (o *Object) SetTypeNames(names ...string) error {
	h, err := NewTypeNameHierarchy(names...)
	if err != nil {
		return err
	}
	private := h.Clone()
	o.mu.Lock()
	o.typeNames = private
	o.mu.Unlock()
	o.rt.typeNameCache.put(o.base, private)
	return nil
}

// ---------------------------------------------------------------------------
// Adapter selection
// ---------------------------------------------------------------------------

func (o *Object) adapterPair() AdapterPair {
	o.mu.Lock()
	if o.adaptersOK {
		pair := o.adapters
		o.mu.Unlock()
		return pair
	}
	o.mu.Unlock()

	pair := o.rt.adapters.Resolve(o.base, o.typeTable())

	o.mu.Lock()
	o.adapters = pair
	o.adaptersOK = true
	o.mu.Unlock()
	return pair
}

// ---------------------------------------------------------------------------
// Tiered member lookup
// ---------------------------------------------------------------------------

// Member resolves a member by case-insensitive name through the tiers in
// priority order: instance, extended, adapted. Absence returns nil; a
// missing member is not an error.
func (o *Object) Member(name string) Member {
	if mc := o.instanceCollection(); mc != nil {
		if m := mc.Lookup(name); m != nil {
			return m
		}
	}

	if tbl := o.typeTable(); tbl != nil {
		if m := tbl.ConsolidatedMember(o.TypeNames(), name); m != nil {
			return m
		}
	}

	if o.IsDeserialized() {
		// The snapshot already served as the instance tier; there is no
		// live adapter for a reconstructed value.
		return nil
	}

	pair := o.adapterPair()
	if pair.Primary != nil {
		if m := pair.Primary.Member(o.base, name); m != nil {
			return m
		}
	}
	if pair.NativeFallback != nil {
		if m := pair.NativeFallback.Member(o.base, name); m != nil {
			return m
		}
	}
	return nil
}

// Property resolves a member and narrows it to a property, or nil.
func (o *Object) Property(name string) Property {
	p, _ := o.Member(name).(Property)
	return p
}

// Method resolves a member and narrows it to a method, or nil.
func (o *Object) Method(name string) Method {
	m, _ := o.Member(name).(Method)
	return m
}

// Value reads a property's value by name.
func (o *Object) Value(name string) (any, error) {
	p := o.Property(name)
	if p == nil {
		return nil, fmt.Errorf("object has no property %q", name)
	}
	return p.Get(o)
}

// SetValue writes a property's value by name.
func (o *Object) SetValue(name string, value any) error {
	p := o.Property(name)
	if p == nil {
		return fmt.Errorf("object has no property %q", name)
	}
	return p.Set(o, value)
}

// Invoke calls a method member by name.
func (o *Object) Invoke(name string, args ...any) (any, error) {
	m := o.Method(name)
	if m == nil {
		return nil, fmt.Errorf("object has no method %q", name)
	}
	return m.Invoke(o, args...)
}

// ---------------------------------------------------------------------------
// Unioned collections
// ---------------------------------------------------------------------------

// Members unions all tiers with instance > extended > adapted precedence,
// deduplicated by case-insensitive name. Extended members arrive as
// copies from the table; instance members and native reflection members
// are live references.
func (o *Object) Members() *MemberCollection {
	out := NewMemberCollection()
	absorb := func(mc *MemberCollection) {
		if mc == nil {
			return
		}
		for _, m := range mc.Members() {
			if out.Lookup(m.Name()) == nil {
				out.Replace(m)
			}
		}
	}

	absorb(o.instanceCollection())
	if tbl := o.typeTable(); tbl != nil {
		absorb(tbl.ConsolidatedMembers(o.TypeNames()))
	}
	if !o.IsDeserialized() {
		pair := o.adapterPair()
		if pair.Primary != nil {
			absorb(pair.Primary.Members(o.base))
		}
		if pair.NativeFallback != nil {
			absorb(pair.NativeFallback.Members(o.base))
		}
	}
	return out
}

// Properties returns every member that is a property, in union order.
func (o *Object) Properties() []Property {
	var out []Property
	for _, m := range o.Members().Members() {
		if p, ok := m.(Property); ok {
			out = append(out, p)
		}
	}
	return out
}

// Methods returns every member that is a method, in union order.
func (o *Object) Methods() []Method {
	var out []Method
	for _, m := range o.Members().Members() {
		if mm, ok := m.(Method); ok {
			out = append(out, mm)
		}
	}
	return out
}

// FirstMember returns the first member in union order matching pred.
func (o *Object) FirstMember(pred func(Member) bool) Member {
	return o.Members().First(pred)
}

// ResolvePropertySet expands a PropertySet member into the properties it
// references on this object. Unresolvable names are skipped.
func (o *Object) ResolvePropertySet(name string) []Property {
	ps, ok := o.Member(name).(*PropertySet)
	if !ok {
		return nil
	}
	var out []Property
	for _, ref := range ps.ReferencedNames() {
		if p := o.Property(ref); p != nil {
			out = append(out, p)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Equality
// ---------------------------------------------------------------------------

// Equal reports wrapper equality: reference identity, or equality of the
// unwrapped base values. A property-bag wrapper equals nothing but itself.
// The comparison never recurses through wrapper equality.
func (o *Object) Equal(other any) bool {
	if oo, ok := other.(*Object); ok {
		if oo == o {
			return true
		}
		if o.IsPropertyBag() || oo.IsPropertyBag() {
			return false
		}
		return baseEqual(o.base, oo.base)
	}
	if o.IsPropertyBag() {
		return false
	}
	return baseEqual(o.base, other)
}

func baseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Type() != rb.Type() {
		return false
	}
	if ra.Type().Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}
