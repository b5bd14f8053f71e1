package ets

import (
	"fmt"
	"reflect"
	"sync"
)

// ---------------------------------------------------------------------------
// Adapter: the collaborator interface for native member discovery
// ---------------------------------------------------------------------------

// Adapter discovers the native members of an unwrapped base value. The
// core depends only on this shape; concrete adapters for specific object
// models live with their models.
type Adapter interface {
	// TypeNames returns the value's type-name chain, most-specific first.
	TypeNames(base any) []string
	// Member finds a single member by case-insensitive name, or nil.
	Member(base any, name string) Member
	// Members enumerates all discoverable members.
	Members(base any) *MemberCollection
}

// MemberProvider lets a value supply its own members to the adapted tier,
// the explicit dynamic-dispatch protocol for values that are not plain
// structs or maps. A wrapped provider is deferred to rather than reflected
// over.
type MemberProvider interface {
	ProvidedTypeNames() []string
	ProvidedMembers() []Member
}

// AdapterPair is the immutable adapter selection for a concrete type.
// Primary services member lookups; NativeFallback, when non-nil,
// additionally exposes the value's reflection-based members alongside the
// primary adapter's. Nil NativeFallback means no dual exposure, which is
// the case for the reflection adapter itself and for the wrapper-aware
// built-ins.
type AdapterPair struct {
	Primary        Adapter
	NativeFallback Adapter
}

// ---------------------------------------------------------------------------
// AdapterRegistry: per-runtime adapter selection with a type-keyed cache
// ---------------------------------------------------------------------------

// AdapterRegistry resolves the AdapterPair servicing a base value. The
// cache is keyed by concrete reflect.Type and is append-only; concurrent
// resolution for the same type must agree, and a raced insert that
// disagrees is an internal fault.
type AdapterRegistry struct {
	cache sync.Map // reflect.Type -> AdapterPair

	reflectAdapter   *ReflectAdapter
	bagAdapter       *propertyBagAdapter
	memberSetAdapter *memberSetAdapter
	dynamicAdapter   *dynamicAdapter
}

// NewAdapterRegistry creates a registry with the built-in adapters.
func NewAdapterRegistry() *AdapterRegistry {
	return &AdapterRegistry{
		reflectAdapter:   NewReflectAdapter(),
		bagAdapter:       &propertyBagAdapter{},
		memberSetAdapter: &memberSetAdapter{},
		dynamicAdapter:   &dynamicAdapter{},
	}
}

// ReflectAdapter returns the default reflection adapter.
func (r *AdapterRegistry) Reflect() *ReflectAdapter { return r.reflectAdapter }

// Resolve selects the AdapterPair for base. A table-registered adapter for
// the exact concrete type name wins and is never cached here: tables are
// per-session and sessions can disagree. Everything else is cached by
// concrete type.
func (r *AdapterRegistry) Resolve(base any, table *TypeTable) AdapterPair {
	if o, ok := base.(*Object); ok {
		// Wrapper chains collapse before resolution; resolving against a
		// wrapper directly is a caller bug in release terms but resolves
		// against its base for robustness.
		base = o.Base()
	}
	rt := reflect.TypeOf(base)
	if rt == nil {
		return AdapterPair{Primary: r.reflectAdapter}
	}

	if table != nil {
		if a := table.AdapterFor(concreteTypeName(rt)); a != nil {
			return AdapterPair{Primary: a, NativeFallback: r.reflectAdapter}
		}
	}

	if cached, ok := r.cache.Load(rt); ok {
		return cached.(AdapterPair)
	}

	pair := r.sniff(base)

	actual, raced := r.cache.LoadOrStore(rt, pair)
	if raced && actual.(AdapterPair) != pair {
		panic(fmt.Sprintf("ets: adapter registry: raced resolution for %s produced different adapters", rt))
	}
	return actual.(AdapterPair)
}

// sniff runs the ordered built-in type rules; first match wins.
func (r *AdapterRegistry) sniff(base any) AdapterPair {
	switch base.(type) {
	case *MemberSet:
		return AdapterPair{Primary: r.memberSetAdapter}
	case map[string]any:
		return AdapterPair{Primary: r.bagAdapter}
	}
	if _, ok := base.(MemberProvider); ok {
		return AdapterPair{Primary: r.dynamicAdapter}
	}
	return AdapterPair{Primary: r.reflectAdapter}
}

// concreteTypeName is the registration key for table-registered adapters,
// e.g. "*widgets.Gadget" or "map[string]int".
func concreteTypeName(rt reflect.Type) string { return rt.String() }

// ---------------------------------------------------------------------------
// Built-in wrapper-aware adapters
// ---------------------------------------------------------------------------

// memberSetAdapter serves values that are themselves member sets: the
// set's children are the members.
type memberSetAdapter struct{}

func (a *memberSetAdapter) TypeNames(base any) []string {
	return []string{"facet.MemberSet"}
}

func (a *memberSetAdapter) Member(base any, name string) Member {
	ms, ok := base.(*MemberSet)
	if !ok {
		return nil
	}
	return ms.Members().Lookup(name)
}

func (a *memberSetAdapter) Members(base any) *MemberCollection {
	ms, ok := base.(*MemberSet)
	if !ok {
		return NewMemberCollection()
	}
	return ms.Members().Copy()
}

// propertyBagAdapter serves map[string]any values as flat property bags.
type propertyBagAdapter struct{}

func (a *propertyBagAdapter) TypeNames(base any) []string {
	return []string{"facet.PropertyBag", "map[string]interface {}"}
}

func (a *propertyBagAdapter) Member(base any, name string) Member {
	bag, ok := base.(map[string]any)
	if !ok {
		return nil
	}
	for k := range bag {
		if memberKey(k) == memberKey(name) {
			return &bagProperty{memberBase: memberBase{name: k}, key: k}
		}
	}
	return nil
}

func (a *propertyBagAdapter) Members(base any) *MemberCollection {
	mc := NewMemberCollection()
	bag, ok := base.(map[string]any)
	if !ok {
		return mc
	}
	for _, k := range sortedKeys(bag) {
		mc.Replace(&bagProperty{memberBase: memberBase{name: k}, key: k})
	}
	return mc
}

// bagProperty reads and writes one key of a map[string]any base.
type bagProperty struct {
	memberBase
	key string
}

func (p *bagProperty) Kind() MemberKind { return KindProperty }

func (p *bagProperty) Get(obj *Object) (any, error) {
	bag, ok := obj.Base().(map[string]any)
	if !ok {
		return nil, fmt.Errorf("property %q: base is not a property bag", p.name)
	}
	return bag[p.key], nil
}

func (p *bagProperty) Set(obj *Object, value any) error {
	bag, ok := obj.Base().(map[string]any)
	if !ok {
		return fmt.Errorf("property %q: base is not a property bag", p.name)
	}
	bag[p.key] = value
	return nil
}

func (p *bagProperty) IsSettable() bool { return true }

func (p *bagProperty) Copy() Member {
	c := *p
	return &c
}

// dynamicAdapter defers entirely to a MemberProvider base.
type dynamicAdapter struct{}

func (a *dynamicAdapter) TypeNames(base any) []string {
	if p, ok := base.(MemberProvider); ok {
		return p.ProvidedTypeNames()
	}
	return nil
}

func (a *dynamicAdapter) Member(base any, name string) Member {
	p, ok := base.(MemberProvider)
	if !ok {
		return nil
	}
	for _, m := range p.ProvidedMembers() {
		if memberKey(m.Name()) == memberKey(name) {
			return m
		}
	}
	return nil
}

func (a *dynamicAdapter) Members(base any) *MemberCollection {
	mc := NewMemberCollection()
	p, ok := base.(MemberProvider)
	if !ok {
		return mc
	}
	for _, m := range p.ProvidedMembers() {
		mc.Replace(m)
	}
	return mc
}
