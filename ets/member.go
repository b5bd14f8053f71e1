// Package ets implements the extended type system: a wrapper that lets
// any Go value carry additional members (notes, aliases, script-backed
// properties, property sets) discovered through a three-tier resolution
// chain, and the declarative type table that feeds the middle tier.
package ets

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Member model: the closed set of extended member variants
// ---------------------------------------------------------------------------

// MemberKind discriminates the member variants for exhaustive switches.
type MemberKind int

const (
	KindNoteProperty MemberKind = iota
	KindAliasProperty
	KindScriptProperty
	KindCodeProperty
	KindScriptMethod
	KindCodeMethod
	KindPropertySet
	KindMemberSet

	// Adapted-tier members discovered by reflection or a custom adapter.
	KindProperty
	KindMethod
)

// String returns the kind's declarative-document element name.
func (k MemberKind) String() string {
	switch k {
	case KindNoteProperty:
		return "NoteProperty"
	case KindAliasProperty:
		return "AliasProperty"
	case KindScriptProperty:
		return "ScriptProperty"
	case KindCodeProperty:
		return "CodeProperty"
	case KindScriptMethod:
		return "ScriptMethod"
	case KindCodeMethod:
		return "CodeMethod"
	case KindPropertySet:
		return "PropertySet"
	case KindMemberSet:
		return "MemberSet"
	case KindProperty:
		return "Property"
	case KindMethod:
		return "Method"
	}
	return fmt.Sprintf("MemberKind(%d)", int(k))
}

// Member is the common shape of every extended member.
type Member interface {
	Name() string
	Kind() MemberKind
	Hidden() bool
	// Copy returns an independent member so that handing a member to a
	// consumer never aliases table-owned state. Literal values are shared;
	// nested collections are deep-copied.
	Copy() Member
}

// Property is a member with a gettable (and possibly settable) value.
type Property interface {
	Member
	Get(obj *Object) (any, error)
	Set(obj *Object, value any) error
	IsSettable() bool
}

// Method is an invokable member.
type Method interface {
	Member
	Invoke(obj *Object, args ...any) (any, error)
}

// memberBase carries the name/hidden pair shared by all variants.
type memberBase struct {
	name   string
	hidden bool
}

func (b memberBase) Name() string { return b.name }
func (b memberBase) Hidden() bool { return b.hidden }

func newMemberBase(name string, hidden bool) (memberBase, error) {
	if strings.TrimSpace(name) == "" {
		return memberBase{}, fmt.Errorf("member name must not be empty")
	}
	return memberBase{name: name, hidden: hidden}, nil
}

// ---------------------------------------------------------------------------
// NoteProperty: a literal named value
// ---------------------------------------------------------------------------

// NoteProperty attaches a literal value under a name.
type NoteProperty struct {
	memberBase
	value any
}

// NewNoteProperty creates a note with the given literal value.
func NewNoteProperty(name string, value any) (*NoteProperty, error) {
	base, err := newMemberBase(name, false)
	if err != nil {
		return nil, err
	}
	return &NoteProperty{memberBase: base, value: value}, nil
}

func (n *NoteProperty) Kind() MemberKind { return KindNoteProperty }

func (n *NoteProperty) Get(obj *Object) (any, error) { return n.value, nil }

func (n *NoteProperty) Set(obj *Object, value any) error {
	n.value = value
	return nil
}

func (n *NoteProperty) IsSettable() bool { return true }

// Value returns the literal without needing an owning object.
func (n *NoteProperty) Value() any { return n.value }

func (n *NoteProperty) Copy() Member {
	c := *n
	return &c
}

// SetHidden marks the note as hidden from default enumeration.
func (n *NoteProperty) SetHidden(hidden bool) { n.hidden = hidden }

// ---------------------------------------------------------------------------
// AliasProperty: forwards to another member by name
// ---------------------------------------------------------------------------

// AliasProperty renames another member, optionally coercing the value to a
// named target type on get.
type AliasProperty struct {
	memberBase
	target      string
	convertType string
}

// NewAliasProperty creates an alias forwarding to target.
func NewAliasProperty(name, target string) (*AliasProperty, error) {
	base, err := newMemberBase(name, false)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(target) == "" {
		return nil, fmt.Errorf("alias %q: referenced member name must not be empty", name)
	}
	return &AliasProperty{memberBase: base, target: target}, nil
}

func (a *AliasProperty) Kind() MemberKind { return KindAliasProperty }

// Target returns the referenced member name.
func (a *AliasProperty) Target() string { return a.target }

// SetConvertType declares an optional coercion type name applied on get.
func (a *AliasProperty) SetConvertType(typeName string) { a.convertType = typeName }

// ConvertType returns the declared coercion type name, if any.
func (a *AliasProperty) ConvertType() string { return a.convertType }

// SetHidden marks the alias as hidden from default enumeration.
func (a *AliasProperty) SetHidden(hidden bool) { a.hidden = hidden }

// aliasChainLimit bounds alias-to-alias chains so that a cycle surfaces as
// an error instead of a hang.
const aliasChainLimit = 64

// resolve follows the alias chain to a concrete member on obj.
func (a *AliasProperty) resolve(obj *Object) (Member, error) {
	name := a.target
	for i := 0; i < aliasChainLimit; i++ {
		m := obj.Member(name)
		if m == nil {
			return nil, fmt.Errorf("alias %q: referenced member %q not found", a.name, name)
		}
		next, ok := m.(*AliasProperty)
		if !ok {
			return m, nil
		}
		name = next.target
	}
	return nil, fmt.Errorf("alias %q: reference chain exceeds %d links (cycle?)", a.name, aliasChainLimit)
}

func (a *AliasProperty) Get(obj *Object) (any, error) {
	m, err := a.resolve(obj)
	if err != nil {
		return nil, err
	}
	p, ok := m.(Property)
	if !ok {
		return nil, fmt.Errorf("alias %q: referenced member %q is not a property", a.name, m.Name())
	}
	v, err := p.Get(obj)
	if err != nil {
		return nil, err
	}
	if a.convertType != "" {
		return convertForAlias(obj, v, a.convertType)
	}
	return v, nil
}

// convertForAlias applies an alias coercion. A converter registered in the
// object's type table under the target type name wins over the built-in
// scalar coercions.
func convertForAlias(obj *Object, v any, typeName string) (any, error) {
	if obj != nil {
		if table := obj.typeTable(); table != nil {
			if c := table.ConverterFor(typeName); c != nil && c.CanConvert(v) {
				out, err := c.Convert(v)
				if err != nil {
					return nil, fmt.Errorf("convert to %q: %w", typeName, err)
				}
				return out, nil
			}
		}
	}
	return coerceValue(v, typeName)
}

func (a *AliasProperty) Set(obj *Object, value any) error {
	m, err := a.resolve(obj)
	if err != nil {
		return err
	}
	p, ok := m.(Property)
	if !ok || !p.IsSettable() {
		return fmt.Errorf("alias %q: referenced member %q is not settable", a.name, m.Name())
	}
	return p.Set(obj, value)
}

func (a *AliasProperty) IsSettable() bool { return true }

func (a *AliasProperty) Copy() Member {
	c := *a
	return &c
}

// ---------------------------------------------------------------------------
// ScriptProperty / ScriptMethod: compiled-script-backed members
// ---------------------------------------------------------------------------

// ScriptProperty computes its value through compiled script getter/setter
// blocks. Either block may be nil.
type ScriptProperty struct {
	memberBase
	getter Callable
	setter Callable
}

// NewScriptProperty creates a script property. A nil getter makes the
// property write-only; a nil setter makes it read-only.
func NewScriptProperty(name string, getter, setter Callable) (*ScriptProperty, error) {
	base, err := newMemberBase(name, false)
	if err != nil {
		return nil, err
	}
	return &ScriptProperty{memberBase: base, getter: getter, setter: setter}, nil
}

func (s *ScriptProperty) Kind() MemberKind { return KindScriptProperty }

func (s *ScriptProperty) Get(obj *Object) (any, error) {
	if s.getter == nil {
		return nil, fmt.Errorf("script property %q has no getter", s.name)
	}
	return s.getter.Invoke(obj)
}

func (s *ScriptProperty) Set(obj *Object, value any) error {
	if s.setter == nil {
		return fmt.Errorf("script property %q has no setter", s.name)
	}
	_, err := s.setter.Invoke(obj, value)
	return err
}

func (s *ScriptProperty) IsSettable() bool { return s.setter != nil }

// SetHidden marks the property as hidden from default enumeration.
func (s *ScriptProperty) SetHidden(hidden bool) { s.hidden = hidden }

func (s *ScriptProperty) Copy() Member {
	c := *s
	return &c
}

// ScriptMethod invokes a compiled script body with the owning object as
// the this-context.
type ScriptMethod struct {
	memberBase
	body Callable
}

// NewScriptMethod creates a script method.
func NewScriptMethod(name string, body Callable) (*ScriptMethod, error) {
	base, err := newMemberBase(name, false)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, fmt.Errorf("script method %q requires a body", name)
	}
	return &ScriptMethod{memberBase: base, body: body}, nil
}

func (s *ScriptMethod) Kind() MemberKind { return KindScriptMethod }

func (s *ScriptMethod) Invoke(obj *Object, args ...any) (any, error) {
	return s.body.Invoke(obj, args...)
}

// SetHidden marks the method as hidden from default enumeration.
func (s *ScriptMethod) SetHidden(hidden bool) { s.hidden = hidden }

func (s *ScriptMethod) Copy() Member {
	c := *s
	return &c
}

// ---------------------------------------------------------------------------
// CodeProperty / CodeMethod: native-Go-backed members
// ---------------------------------------------------------------------------

// CodeGetter is the required shape of a code property getter.
type CodeGetter func(obj *Object) (any, error)

// CodeSetter is the required shape of a code property setter.
type CodeSetter func(obj *Object, value any) error

// CodeFunc is the required shape of a code method body.
type CodeFunc func(obj *Object, args ...any) (any, error)

// CodeProperty computes its value through registered Go functions.
type CodeProperty struct {
	memberBase
	getter CodeGetter
	setter CodeSetter
}

// NewCodeProperty creates a code property. A nil getter makes the property
// write-only; a nil setter makes it read-only.
func NewCodeProperty(name string, getter CodeGetter, setter CodeSetter) (*CodeProperty, error) {
	base, err := newMemberBase(name, false)
	if err != nil {
		return nil, err
	}
	if getter == nil && setter == nil {
		return nil, fmt.Errorf("code property %q requires a getter or a setter", name)
	}
	return &CodeProperty{memberBase: base, getter: getter, setter: setter}, nil
}

func (c *CodeProperty) Kind() MemberKind { return KindCodeProperty }

func (c *CodeProperty) Get(obj *Object) (any, error) {
	if c.getter == nil {
		return nil, fmt.Errorf("code property %q has no getter", c.name)
	}
	return c.getter(obj)
}

func (c *CodeProperty) Set(obj *Object, value any) error {
	if c.setter == nil {
		return fmt.Errorf("code property %q has no setter", c.name)
	}
	return c.setter(obj, value)
}

func (c *CodeProperty) IsSettable() bool { return c.setter != nil }

// SetHidden marks the property as hidden from default enumeration.
func (c *CodeProperty) SetHidden(hidden bool) { c.hidden = hidden }

func (c *CodeProperty) Copy() Member {
	cp := *c
	return &cp
}

// CodeMethod invokes a registered Go function.
type CodeMethod struct {
	memberBase
	fn CodeFunc
}

// NewCodeMethod creates a code method.
func NewCodeMethod(name string, fn CodeFunc) (*CodeMethod, error) {
	base, err := newMemberBase(name, false)
	if err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("code method %q requires a body", name)
	}
	return &CodeMethod{memberBase: base, fn: fn}, nil
}

func (c *CodeMethod) Kind() MemberKind { return KindCodeMethod }

func (c *CodeMethod) Invoke(obj *Object, args ...any) (any, error) {
	return c.fn(obj, args...)
}

// SetHidden marks the method as hidden from default enumeration.
func (c *CodeMethod) SetHidden(hidden bool) { c.hidden = hidden }

func (c *CodeMethod) Copy() Member {
	cp := *c
	return &cp
}

// ---------------------------------------------------------------------------
// PropertySet: a named list of referenced property names
// ---------------------------------------------------------------------------

// PropertySet names a subset of an object's properties.
type PropertySet struct {
	memberBase
	refs []string
}

// NewPropertySet creates a property set referencing the given names.
func NewPropertySet(name string, refs ...string) (*PropertySet, error) {
	base, err := newMemberBase(name, false)
	if err != nil {
		return nil, err
	}
	for _, r := range refs {
		if strings.TrimSpace(r) == "" {
			return nil, fmt.Errorf("property set %q: referenced property name must not be empty", name)
		}
	}
	return &PropertySet{memberBase: base, refs: append([]string(nil), refs...)}, nil
}

func (p *PropertySet) Kind() MemberKind { return KindPropertySet }

// ReferencedNames returns the referenced property names in declaration order.
func (p *PropertySet) ReferencedNames() []string {
	return append([]string(nil), p.refs...)
}

// SetHidden marks the set as hidden from default enumeration.
func (p *PropertySet) SetHidden(hidden bool) { p.hidden = hidden }

func (p *PropertySet) Copy() Member {
	c := *p
	c.refs = append([]string(nil), p.refs...)
	return &c
}

// ---------------------------------------------------------------------------
// MemberSet: a named nested collection of members
// ---------------------------------------------------------------------------

// MemberSet groups members under a name. InheritMembers controls how two
// same-named sets merge during consolidation: true merges the nested
// collections recursively, false replaces the whole set.
type MemberSet struct {
	memberBase
	members        *MemberCollection
	inheritMembers bool
}

// NewMemberSet creates a member set with the given children.
func NewMemberSet(name string, members ...Member) (*MemberSet, error) {
	base, err := newMemberBase(name, false)
	if err != nil {
		return nil, err
	}
	mc := NewMemberCollection()
	for _, m := range members {
		if err := mc.Add(m); err != nil {
			return nil, fmt.Errorf("member set %q: %w", name, err)
		}
	}
	return &MemberSet{memberBase: base, members: mc}, nil
}

func (m *MemberSet) Kind() MemberKind { return KindMemberSet }

// Members returns the live nested collection.
func (m *MemberSet) Members() *MemberCollection { return m.members }

// InheritMembers reports whether consolidation merges instead of replacing.
func (m *MemberSet) InheritMembers() bool { return m.inheritMembers }

// SetInheritMembers sets the consolidation merge behavior.
func (m *MemberSet) SetInheritMembers(inherit bool) { m.inheritMembers = inherit }

// SetHidden marks the set as hidden from default enumeration.
func (m *MemberSet) SetHidden(hidden bool) { m.hidden = hidden }

func (m *MemberSet) Copy() Member {
	c := *m
	c.members = m.members.Copy()
	return &c
}
