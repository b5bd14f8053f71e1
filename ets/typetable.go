package ets

import (
	"fmt"
	"strings"
	"sync"
)

// ---------------------------------------------------------------------------
// TypeTable: the declarative registry of per-type-name extensions
// ---------------------------------------------------------------------------

// TypeTable indexes member extensions, converters, and adapters by simple
// type name and produces consolidated, inheritance-aware member views for
// a full type-name hierarchy.
//
// A table is either exclusive (owned by one session, mutable) or shared
// (constructed once, then read-only through the public API). The
// consolidated-member and specific-properties caches are populated via
// get-or-compute with the computation running outside any lock; a benign
// race recomputes and the first writer wins.
type TypeTable struct {
	shared bool

	mu          sync.RWMutex
	types       map[string]*TypeData // key: lowercased type name
	records     []*TypeData          // registration history for introspection
	diagnostics []string

	cacheMu      sync.RWMutex
	consolidated map[string]*MemberCollection // key: hierarchy cache key
	specific     map[string][]string          // key: hierarchy cache key
}

// NewTypeTable creates an empty exclusive (mutable) table.
func NewTypeTable() *TypeTable {
	return &TypeTable{
		types:        make(map[string]*TypeData),
		consolidated: make(map[string]*MemberCollection),
		specific:     make(map[string][]string),
	}
}

// NewSharedTypeTable builds a table from records and marks it shared.
// Shared construction is strict: every diagnostic collected during the
// build escalates into the returned LoadError. The table is still usable
// when an error is returned; the caller decides whether to escalate.
func NewSharedTypeTable(records []*TypeData) (*TypeTable, error) {
	t := NewTypeTable()
	var problems []string
	for _, td := range records {
		if err := t.Add(td); err != nil {
			if le, ok := err.(*LoadError); ok {
				problems = append(problems, le.Problems...)
			} else {
				problems = append(problems, err.Error())
			}
		}
	}
	problems = append(problems, t.Diagnostics()...)
	t.shared = true
	return t, newLoadError(problems)
}

// IsShared reports whether the table rejects mutation.
func (t *TypeTable) IsShared() bool { return t.shared }

// Diagnostics returns the accumulated per-item diagnostics.
func (t *TypeTable) Diagnostics() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.diagnostics...)
}

func (t *TypeTable) diagLocked(format string, args ...any) {
	t.diagnostics = append(t.diagnostics, fmt.Sprintf(format, args...))
}

func typeKey(name string) string { return strings.ToLower(name) }

// ---------------------------------------------------------------------------
// Registration
// ---------------------------------------------------------------------------

// Add validates a record and merges it into the live table. Structural
// problems (nil or empty record) fail with a LoadError and merge nothing.
// Per-item conflicts (duplicate member without Override, inconsistent
// standard-member bag) are recorded as diagnostics; the offending item is
// dropped and the rest of the record still merges. Both caches are cleared
// in full on success.
func (t *TypeTable) Add(td *TypeData) error {
	if t.shared {
		return ErrSharedTable
	}
	if td == nil {
		return fmt.Errorf("type data must not be nil")
	}
	if td.IsEmpty() && !td.fromLoader {
		return newLoadError([]string{fmt.Sprintf(
			"type %q: record registers no members, converter, or adapter", td.name)})
	}

	t.mu.Lock()
	t.mergeLocked(td)
	t.records = append(t.records, td.Copy())
	t.mu.Unlock()

	t.invalidateCaches()
	return nil
}

// Remove drops every registration for the exact type name.
func (t *TypeTable) Remove(name string) error {
	if t.shared {
		return ErrSharedTable
	}
	key := typeKey(name)

	t.mu.Lock()
	if _, ok := t.types[key]; !ok {
		t.mu.Unlock()
		return fmt.Errorf("type %q has no registered extensions", name)
	}
	delete(t.types, key)
	kept := t.records[:0]
	for _, r := range t.records {
		if typeKey(r.name) != key {
			kept = append(kept, r)
		}
	}
	t.records = kept
	t.mu.Unlock()

	t.invalidateCaches()
	return nil
}

// TypeData returns a copy of the live record for a type name, or nil.
func (t *TypeTable) TypeData(name string) *TypeData {
	t.mu.RLock()
	defer t.mu.RUnlock()
	td := t.types[typeKey(name)]
	if td == nil {
		return nil
	}
	return td.Copy()
}

// TypeNames returns the names with live registrations, unordered.
func (t *TypeTable) TypeNames() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.types))
	for _, td := range t.types {
		names = append(names, td.name)
	}
	return names
}

// ConverterFor returns the converter registered for a type name, or nil.
func (t *TypeTable) ConverterFor(name string) Converter {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if td := t.types[typeKey(name)]; td != nil {
		return td.converter
	}
	return nil
}

// AdapterFor returns the adapter registered for a type name, or nil.
// Table-registered adapters are per-session and take precedence over the
// process-wide adapter cache.
func (t *TypeTable) AdapterFor(name string) Adapter {
	if t == nil {
		return nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if td := t.types[typeKey(name)]; td != nil {
		return td.adapter
	}
	return nil
}

// mergeLocked folds td into the live table under t.mu.
func (t *TypeTable) mergeLocked(td *TypeData) {
	key := typeKey(td.name)
	existing := t.types[key]
	if existing == nil {
		fresh := td.Copy()
		fresh.members.Remove(StandardMembersName)
		t.types[key] = fresh
		if incoming := td.StandardMembers(); incoming != nil {
			t.mergeStandardMembersLocked(fresh, incoming)
		}
		return
	}

	for _, m := range td.members.Members() {
		if memberKey(m.Name()) == memberKey(StandardMembersName) {
			continue
		}
		if existing.members.Lookup(m.Name()) != nil && !td.Override {
			t.diagLocked("type %q: member %q is already present; the existing member wins",
				td.name, m.Name())
			continue
		}
		existing.members.Replace(m.Copy())
	}

	if td.converter != nil {
		if existing.converter != nil && !td.Override {
			t.diagLocked("type %q: a type converter is already registered", td.name)
		} else {
			existing.converter = td.converter
		}
	}
	if td.adapter != nil {
		if existing.adapter != nil && !td.Override {
			t.diagLocked("type %q: a type adapter is already registered", td.name)
		} else {
			existing.adapter = td.adapter
		}
	}

	if incoming := td.StandardMembers(); incoming != nil {
		t.mergeStandardMembersLocked(existing, incoming)
	}
}

// mergeStandardMembersLocked overlays incoming standard members onto the
// record's bag and revalidates the result. Standard members form one
// coherent configuration, so this path runs regardless of the Override
// flag, and a consistency violation reverts the whole bag.
func (t *TypeTable) mergeStandardMembersLocked(td *TypeData, incoming *MemberSet) {
	var prior *MemberSet
	if bag := td.StandardMembers(); bag != nil {
		prior = bag.Copy().(*MemberSet)
	}

	for _, m := range incoming.Members().Members() {
		if err := td.SetStandardMember(m.Copy()); err != nil {
			t.diagLocked("type %q: standard member %q: %v", td.name, m.Name(), err)
		}
	}
	t.checkStandardMembersLocked(td, prior)
}

// ---------------------------------------------------------------------------
// Standard-member validation
// ---------------------------------------------------------------------------

// checkStandardMembersLocked enforces the serialization-method consistency
// matrix. Individually mistyped entries are dropped one by one with a
// diagnostic; an inconsistent method combination reverts the entire bag to
// prior (whole-bag rollback).
func (t *TypeTable) checkStandardMembersLocked(td *TypeData, prior *MemberSet) {
	bag := td.StandardMembers()
	if bag == nil {
		return
	}
	entries := bag.Members()

	dropMistyped := func(name string, ok bool, want string) {
		if entries.Lookup(name) != nil && !ok {
			t.diagLocked("type %q: standard member %q must be a %s; entry dropped",
				td.name, name, want)
			entries.Remove(name)
		}
	}

	_, methodOK := standardMethod(entries)
	dropMistyped(SerializationMethodName, methodOK, "serialization method note")
	_, depthOK := standardIntNote(entries, SerializationDepthName)
	dropMistyped(SerializationDepthName, depthOK, "numeric note")
	_, inheritOK := standardBoolNote(entries, InheritPropertySerializationName)
	dropMistyped(InheritPropertySerializationName, inheritOK, "boolean note")
	dropMistyped(PropertySerializationSetName,
		isPropertySet(entries.Lookup(PropertySerializationSetName)), "property set")
	dropMistyped(DefaultDisplayPropertySetName,
		isPropertySet(entries.Lookup(DefaultDisplayPropertySetName)), "property set")
	dropMistyped(DefaultKeyPropertySetName,
		isPropertySet(entries.Lookup(DefaultKeyPropertySetName)), "property set")
	_, displayOK := standardStringNote(entries, DefaultDisplayPropertyName)
	dropMistyped(DefaultDisplayPropertyName, displayOK, "string note")
	dropMistyped(StringSerializationSourceName,
		isAliasOrProperty(entries.Lookup(StringSerializationSourceName)), "alias or property")
	_, targetOK := standardStringNote(entries, TargetTypeForDeserializationName)
	dropMistyped(TargetTypeForDeserializationName, targetOK, "string note")

	method, _ := standardMethod(entries)
	hasPSS := entries.Lookup(PropertySerializationSetName) != nil
	hasInherit := entries.Lookup(InheritPropertySerializationName) != nil
	hasDepth := entries.Lookup(SerializationDepthName) != nil
	inherit, inheritPresent := standardBoolNote(entries, InheritPropertySerializationName)

	violation := false
	switch method {
	case SerializeString:
		violation = hasPSS || hasInherit || hasDepth
	case SerializeSpecificProperties:
		// The serialized set may come entirely from ancestors, but only
		// while inheritance is still on.
		violation = !hasPSS && inheritPresent && !inherit
	case SerializeAllPublicProperties:
		violation = hasPSS || hasInherit
	}

	if !violation {
		return
	}
	t.diagLocked("type %q: standard members are inconsistent with serialization method %s; all standard members for this type reverted",
		td.name, method)
	if prior == nil {
		td.members.Remove(StandardMembersName)
	} else {
		td.members.Replace(prior)
	}
}

func standardMethod(entries *MemberCollection) (SerializationMethod, bool) {
	m := entries.Lookup(SerializationMethodName)
	if m == nil {
		return SerializeAllPublicProperties, true
	}
	n, ok := m.(*NoteProperty)
	if !ok {
		return SerializeAllPublicProperties, false
	}
	s, ok := n.Value().(string)
	if !ok {
		return SerializeAllPublicProperties, false
	}
	method, err := ParseSerializationMethod(s)
	if err != nil {
		return SerializeAllPublicProperties, false
	}
	return method, true
}

func standardIntNote(entries *MemberCollection, name string) (int64, bool) {
	m := entries.Lookup(name)
	if m == nil {
		return 0, true
	}
	n, ok := m.(*NoteProperty)
	if !ok {
		return 0, false
	}
	switch v := n.Value().(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
}

func standardBoolNote(entries *MemberCollection, name string) (value bool, present bool) {
	m := entries.Lookup(name)
	if m == nil {
		return false, false
	}
	n, ok := m.(*NoteProperty)
	if !ok {
		return false, false
	}
	b, ok := n.Value().(bool)
	if !ok {
		return false, false
	}
	return b, true
}

func standardStringNote(entries *MemberCollection, name string) (string, bool) {
	m := entries.Lookup(name)
	if m == nil {
		return "", true
	}
	n, ok := m.(*NoteProperty)
	if !ok {
		return "", false
	}
	s, ok := n.Value().(string)
	return s, ok
}

func isPropertySet(m Member) bool {
	if m == nil {
		return true
	}
	_, ok := m.(*PropertySet)
	return ok
}

func isAliasOrProperty(m Member) bool {
	if m == nil {
		return true
	}
	if _, ok := m.(*AliasProperty); ok {
		return true
	}
	_, ok := m.(Property)
	return ok
}

// ---------------------------------------------------------------------------
// Consolidated member views (the hot path)
// ---------------------------------------------------------------------------

// ConsolidatedMembers returns the merged member view for a hierarchy,
// walking least-specific to most-specific so that a more specific type's
// same-named member replaces a less specific one. Two same-named
// MemberSets merge recursively when the more specific one opts into
// InheritMembers. The result is cached per hierarchy key; consumers
// receive a deep copy.
func (t *TypeTable) ConsolidatedMembers(h *TypeNameHierarchy) *MemberCollection {
	master := t.consolidatedMaster(h)
	if master == nil {
		return NewMemberCollection()
	}
	return master.Copy()
}

// ConsolidatedMember looks up a single member in the consolidated view,
// returning a copy, or nil when absent.
func (t *TypeTable) ConsolidatedMember(h *TypeNameHierarchy, name string) Member {
	master := t.consolidatedMaster(h)
	if master == nil {
		return nil
	}
	m := master.Lookup(name)
	if m == nil {
		return nil
	}
	return m.Copy()
}

func (t *TypeTable) consolidatedMaster(h *TypeNameHierarchy) *MemberCollection {
	if t == nil || h.Len() == 0 {
		// An empty hierarchy resolves no extended members.
		return nil
	}
	key := h.Key()

	t.cacheMu.RLock()
	cached := t.consolidated[key]
	t.cacheMu.RUnlock()
	if cached != nil {
		return cached
	}

	computed := t.computeConsolidated(h)

	t.cacheMu.Lock()
	if winner := t.consolidated[key]; winner != nil {
		computed = winner
	} else {
		t.consolidated[key] = computed
	}
	t.cacheMu.Unlock()
	return computed
}

func (t *TypeTable) computeConsolidated(h *TypeNameHierarchy) *MemberCollection {
	result := NewMemberCollection()
	names := h.Names()

	t.mu.RLock()
	defer t.mu.RUnlock()

	for i := len(names) - 1; i >= 0; i-- {
		td := t.types[typeKey(names[i])]
		if td == nil {
			continue
		}
		for _, m := range td.members.Members() {
			if existing := result.Lookup(m.Name()); existing != nil {
				es, existingIsSet := existing.(*MemberSet)
				ms, incomingIsSet := m.(*MemberSet)
				if existingIsSet && incomingIsSet && ms.InheritMembers() {
					result.Replace(mergeMemberSets(es, ms))
					continue
				}
			}
			result.Replace(m.Copy())
		}
	}
	return result
}

// mergeMemberSets combines base (less specific) and incoming (more
// specific, InheritMembers=true). Incoming nested names win ties; nested
// inheriting member sets merge recursively.
func mergeMemberSets(base, incoming *MemberSet) *MemberSet {
	out, err := NewMemberSet(incoming.Name())
	if err != nil {
		// Names were validated at construction; treat as unreachable.
		panic("ets: mergeMemberSets: " + err.Error())
	}
	out.SetInheritMembers(incoming.InheritMembers())
	out.SetHidden(incoming.Hidden())

	for _, m := range base.Members().Members() {
		out.Members().Replace(m.Copy())
	}
	for _, m := range incoming.Members().Members() {
		if existing := out.Members().Lookup(m.Name()); existing != nil {
			es, existingIsSet := existing.(*MemberSet)
			ms, incomingIsSet := m.(*MemberSet)
			if existingIsSet && incomingIsSet && ms.InheritMembers() {
				out.Members().Replace(mergeMemberSets(es, ms))
				continue
			}
		}
		out.Members().Replace(m.Copy())
	}
	return out
}

// ---------------------------------------------------------------------------
// Specific-properties serialization walk
// ---------------------------------------------------------------------------

// SpecificPropertiesToSerialize accumulates the PropertySerializationSet
// names along the hierarchy, most-specific first, stopping at the first
// type whose InheritPropertySerializationSet is false. Cached per
// hierarchy key.
func (t *TypeTable) SpecificPropertiesToSerialize(h *TypeNameHierarchy) []string {
	if t == nil || h.Len() == 0 {
		return nil
	}
	key := h.Key()

	t.cacheMu.RLock()
	cached, ok := t.specific[key]
	t.cacheMu.RUnlock()
	if ok {
		return append([]string(nil), cached...)
	}

	computed := t.computeSpecificProperties(h)

	t.cacheMu.Lock()
	if winner, ok := t.specific[key]; ok {
		computed = winner
	} else {
		t.specific[key] = computed
	}
	t.cacheMu.Unlock()
	return append([]string(nil), computed...)
}

func (t *TypeTable) computeSpecificProperties(h *TypeNameHierarchy) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []string
	seen := make(map[string]struct{})
	for _, name := range h.Names() {
		td := t.types[typeKey(name)]
		if td == nil {
			continue
		}
		bag := td.StandardMembers()
		if bag == nil {
			continue
		}
		if ps, ok := bag.Members().Lookup(PropertySerializationSetName).(*PropertySet); ok {
			for _, ref := range ps.ReferencedNames() {
				k := memberKey(ref)
				if _, dup := seen[k]; !dup {
					seen[k] = struct{}{}
					out = append(out, ref)
				}
			}
		}
		if inherit, present := standardBoolNote(bag.Members(), InheritPropertySerializationName); present && !inherit {
			break
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Cache invalidation
// ---------------------------------------------------------------------------

// invalidateCaches clears both derived caches in full. Table mutation is
// rare relative to lookup; incremental invalidation is not worth the
// correctness risk.
func (t *TypeTable) invalidateCaches() {
	t.cacheMu.Lock()
	t.consolidated = make(map[string]*MemberCollection)
	t.specific = make(map[string][]string)
	t.cacheMu.Unlock()
}
