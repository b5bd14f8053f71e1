package ets

import (
	"strings"
	"testing"
)

func mustTypeData(t *testing.T, name string, members ...Member) *TypeData {
	t.Helper()
	td, err := NewTypeData(name)
	if err != nil {
		t.Fatalf("NewTypeData(%q): %v", name, err)
	}
	for _, m := range members {
		if err := td.AddMember(m); err != nil {
			t.Fatalf("AddMember(%q): %v", m.Name(), err)
		}
	}
	return td
}

func mustHierarchy(t *testing.T, names ...string) *TypeNameHierarchy {
	t.Helper()
	h, err := NewTypeNameHierarchy(names...)
	if err != nil {
		t.Fatalf("NewTypeNameHierarchy(%v): %v", names, err)
	}
	return h
}

// ---------------------------------------------------------------------------
// Registration
// ---------------------------------------------------------------------------

func TestTableAddAndLookup(t *testing.T) {
	tbl := NewTypeTable()
	if err := tbl.Add(mustTypeData(t, "Widget", mustNote(t, "Color", "red"))); err != nil {
		t.Fatalf("Add: %v", err)
	}

	td := tbl.TypeData("widget")
	if td == nil {
		t.Fatal("TypeData lookup should be case-insensitive")
	}
	if td.Members().Lookup("Color") == nil {
		t.Error("registered member missing")
	}

	// Returned record is a copy; mutating it must not touch the table.
	td.Members().Remove("Color")
	if tbl.TypeData("Widget").Members().Lookup("Color") == nil {
		t.Error("mutating the returned copy reached the live table")
	}
}

func TestTableAddRejectsEmptyRecord(t *testing.T) {
	tbl := NewTypeTable()
	if err := tbl.Add(nil); err == nil {
		t.Error("nil record should fail")
	}

	empty, _ := NewTypeData("Widget")
	err := tbl.Add(empty)
	if err == nil {
		t.Fatal("empty record should fail")
	}
	if _, ok := err.(*LoadError); !ok {
		t.Errorf("want *LoadError, got %T", err)
	}

	// The bulk loader is allowed to produce structurally empty leftovers.
	empty.MarkFromLoader()
	if err := tbl.Add(empty); err != nil {
		t.Errorf("loader-marked empty record should pass: %v", err)
	}
}

func TestTableDuplicateMemberKeepsExisting(t *testing.T) {
	tbl := NewTypeTable()
	tbl.Add(mustTypeData(t, "Widget", mustNote(t, "Color", "red")))
	if err := tbl.Add(mustTypeData(t, "Widget", mustNote(t, "Color", "blue"))); err != nil {
		t.Fatalf("Add: %v", err)
	}

	m := tbl.TypeData("Widget").Members().Lookup("Color")
	if v := m.(*NoteProperty).Value(); v != "red" {
		t.Errorf("existing member should win: %v", v)
	}
	diags := tbl.Diagnostics()
	if len(diags) != 1 || !strings.Contains(diags[0], "Color") {
		t.Errorf("want one Color diagnostic, got %v", diags)
	}
}

func TestTableOverrideReplaces(t *testing.T) {
	tbl := NewTypeTable()
	tbl.Add(mustTypeData(t, "Widget", mustNote(t, "Color", "red")))

	override := mustTypeData(t, "Widget", mustNote(t, "Color", "blue"))
	override.Override = true
	if err := tbl.Add(override); err != nil {
		t.Fatalf("Add: %v", err)
	}

	m := tbl.TypeData("Widget").Members().Lookup("Color")
	if v := m.(*NoteProperty).Value(); v != "blue" {
		t.Errorf("override should replace: %v", v)
	}
	if len(tbl.Diagnostics()) != 0 {
		t.Errorf("override should not diagnose: %v", tbl.Diagnostics())
	}

	// Applying the same override again converges on the same state.
	again := mustTypeData(t, "Widget", mustNote(t, "Color", "blue"))
	again.Override = true
	if err := tbl.Add(again); err != nil {
		t.Fatalf("Add: %v", err)
	}
	m = tbl.TypeData("Widget").Members().Lookup("Color")
	if v := m.(*NoteProperty).Value(); v != "blue" {
		t.Errorf("repeated override diverged: %v", v)
	}
}

func TestTableRemove(t *testing.T) {
	tbl := NewTypeTable()
	tbl.Add(mustTypeData(t, "Widget", mustNote(t, "Color", "red")))

	if err := tbl.Remove("WIDGET"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if tbl.TypeData("Widget") != nil {
		t.Error("record should be gone")
	}
	if err := tbl.Remove("Widget"); err == nil {
		t.Error("removing an absent type should fail")
	}
}

func TestSharedTableRejectsMutation(t *testing.T) {
	tbl, err := NewSharedTypeTable([]*TypeData{
		mustTypeData(t, "Widget", mustNote(t, "Color", "red")),
	})
	if err != nil {
		t.Fatalf("NewSharedTypeTable: %v", err)
	}
	if !tbl.IsShared() {
		t.Fatal("table should be shared")
	}
	if err := tbl.Add(mustTypeData(t, "Other", mustNote(t, "X", 1))); err != ErrSharedTable {
		t.Errorf("Add = %v, want ErrSharedTable", err)
	}
	if err := tbl.Remove("Widget"); err != ErrSharedTable {
		t.Errorf("Remove = %v, want ErrSharedTable", err)
	}
}

func TestSharedTableStrictness(t *testing.T) {
	// A conflict that an exclusive table tolerates as a diagnostic
	// escalates into the shared constructor's error.
	tbl, err := NewSharedTypeTable([]*TypeData{
		mustTypeData(t, "Widget", mustNote(t, "Color", "red")),
		mustTypeData(t, "Widget", mustNote(t, "Color", "blue")),
	})
	if err == nil {
		t.Fatal("duplicate member across records should escalate")
	}
	le, ok := err.(*LoadError)
	if !ok {
		t.Fatalf("want *LoadError, got %T", err)
	}
	if len(le.Problems) == 0 {
		t.Error("LoadError should carry the problems")
	}
	// The table is still usable for reads.
	if tbl.TypeData("Widget") == nil {
		t.Error("shared table should still serve lookups")
	}
}

// ---------------------------------------------------------------------------
// Consolidation
// ---------------------------------------------------------------------------

func TestConsolidationPrecedence(t *testing.T) {
	tbl := NewTypeTable()
	tbl.Add(mustTypeData(t, "Base", mustNote(t, "Color", "base"), mustNote(t, "Size", 10)))
	tbl.Add(mustTypeData(t, "Derived", mustNote(t, "Color", "derived")))

	mc := tbl.ConsolidatedMembers(mustHierarchy(t, "Derived", "Base"))
	if mc.Len() != 2 {
		t.Fatalf("consolidated count = %d, want 2", mc.Len())
	}
	if v := mc.Lookup("Color").(*NoteProperty).Value(); v != "derived" {
		t.Errorf("more specific member should win: %v", v)
	}
	if v := mc.Lookup("Size").(*NoteProperty).Value(); v != 10 {
		t.Errorf("base-only member should survive: %v", v)
	}
}

func TestConsolidationUnregisteredNamesSkipped(t *testing.T) {
	tbl := NewTypeTable()
	tbl.Add(mustTypeData(t, "Base", mustNote(t, "Size", 10)))

	mc := tbl.ConsolidatedMembers(mustHierarchy(t, "Unknown", "Base", "AlsoUnknown"))
	if mc.Len() != 1 || mc.Lookup("Size") == nil {
		t.Errorf("unregistered names should contribute nothing: %d members", mc.Len())
	}

	if got := tbl.ConsolidatedMembers(mustHierarchy(t)); got.Len() != 0 {
		t.Errorf("empty hierarchy should resolve no members, got %d", got.Len())
	}
}

func TestConsolidatedViewIsACopy(t *testing.T) {
	tbl := NewTypeTable()
	tbl.Add(mustTypeData(t, "Widget", mustNote(t, "Color", "red")))
	h := mustHierarchy(t, "Widget")

	first := tbl.ConsolidatedMembers(h)
	first.Lookup("Color").(*NoteProperty).Set(nil, "mutated")
	first.Remove("Color")

	second := tbl.ConsolidatedMembers(h)
	if second.Lookup("Color") == nil {
		t.Fatal("mutating a returned view reached the cache")
	}
	if v := second.Lookup("Color").(*NoteProperty).Value(); v != "red" {
		t.Errorf("cached master mutated: %v", v)
	}
}

func TestMemberSetInheritanceMerge(t *testing.T) {
	baseSet, _ := NewMemberSet("Group", mustNote(t, "p", 1), mustNote(t, "q", 2))
	derivedSet, _ := NewMemberSet("Group", mustNote(t, "q", 20), mustNote(t, "r", 30))
	derivedSet.SetInheritMembers(true)

	tbl := NewTypeTable()
	tbl.Add(mustTypeData(t, "Base", baseSet))
	tbl.Add(mustTypeData(t, "Derived", derivedSet))

	m := tbl.ConsolidatedMember(mustHierarchy(t, "Derived", "Base"), "Group")
	ms, ok := m.(*MemberSet)
	if !ok {
		t.Fatalf("consolidated Group is %T", m)
	}
	if ms.Members().Len() != 3 {
		t.Fatalf("merged count = %d, want 3 (p, q, r)", ms.Members().Len())
	}
	if v := ms.Members().Lookup("p").(*NoteProperty).Value(); v != 1 {
		t.Errorf("p = %v, want base's 1", v)
	}
	if v := ms.Members().Lookup("q").(*NoteProperty).Value(); v != 20 {
		t.Errorf("q = %v, want derived's 20", v)
	}
	if v := ms.Members().Lookup("r").(*NoteProperty).Value(); v != 30 {
		t.Errorf("r = %v, want derived's 30", v)
	}
}

func TestMemberSetReplaceWithoutInherit(t *testing.T) {
	baseSet, _ := NewMemberSet("Group", mustNote(t, "p", 1))
	derivedSet, _ := NewMemberSet("Group", mustNote(t, "r", 30))
	// InheritMembers stays false: the derived set replaces wholesale.

	tbl := NewTypeTable()
	tbl.Add(mustTypeData(t, "Base", baseSet))
	tbl.Add(mustTypeData(t, "Derived", derivedSet))

	ms := tbl.ConsolidatedMember(mustHierarchy(t, "Derived", "Base"), "Group").(*MemberSet)
	if ms.Members().Len() != 1 || ms.Members().Lookup("r") == nil {
		t.Errorf("non-inheriting set should replace: %d members", ms.Members().Len())
	}
}

func TestConsolidationCacheInvalidation(t *testing.T) {
	tbl := NewTypeTable()
	tbl.Add(mustTypeData(t, "Widget", mustNote(t, "Color", "red")))
	h := mustHierarchy(t, "Widget")

	if tbl.ConsolidatedMembers(h).Len() != 1 {
		t.Fatal("expected one member before mutation")
	}

	tbl.Add(mustTypeData(t, "Widget", mustNote(t, "Label", "big")))
	if got := tbl.ConsolidatedMembers(h).Len(); got != 2 {
		t.Errorf("view after Add = %d members, want 2", got)
	}

	tbl.Remove("Widget")
	if got := tbl.ConsolidatedMembers(h).Len(); got != 0 {
		t.Errorf("view after Remove = %d members, want 0", got)
	}
}

// ---------------------------------------------------------------------------
// Standard-member validation
// ---------------------------------------------------------------------------

func TestStandardMembersStringMethodConflict(t *testing.T) {
	td := mustTypeData(t, "Widget", mustNote(t, "Color", "red"))
	if err := td.SetSerializationMethod(SerializeString); err != nil {
		t.Fatalf("SetSerializationMethod: %v", err)
	}
	if err := td.SetPropertySerializationSet("Color"); err != nil {
		t.Fatalf("SetPropertySerializationSet: %v", err)
	}

	tbl := NewTypeTable()
	if err := tbl.Add(td); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// String + PropertySerializationSet is inconsistent: the whole bag
	// reverts, but the rest of the record survives.
	live := tbl.TypeData("Widget")
	if live.StandardMembers() != nil {
		t.Error("inconsistent bag should have been reverted away")
	}
	if live.Members().Lookup("Color") == nil {
		t.Error("ordinary members should survive the rollback")
	}
	if len(tbl.Diagnostics()) == 0 {
		t.Error("rollback should be diagnosed")
	}
}

func TestStandardMembersRollbackToPrior(t *testing.T) {
	first := mustTypeData(t, "Widget", mustNote(t, "Color", "red"))
	first.SetSerializationMethod(SerializeSpecificProperties)
	first.SetPropertySerializationSet("Color")

	tbl := NewTypeTable()
	if err := tbl.Add(first); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(tbl.Diagnostics()) != 0 {
		t.Fatalf("valid bag diagnosed: %v", tbl.Diagnostics())
	}

	// Merging String on top yields String+PropertySerializationSet, which
	// is inconsistent; the bag must revert to the prior valid state.
	second, _ := NewTypeData("Widget")
	second.SetSerializationMethod(SerializeString)
	if err := tbl.Add(second); err != nil {
		t.Fatalf("Add: %v", err)
	}

	bag := tbl.TypeData("Widget").StandardMembers()
	if bag == nil {
		t.Fatal("prior bag should have been restored")
	}
	method, _ := standardMethod(bag.Members())
	if method != SerializeSpecificProperties {
		t.Errorf("method after rollback = %v, want SpecificProperties", method)
	}
	if bag.Members().Lookup(PropertySerializationSetName) == nil {
		t.Error("property serialization set lost in rollback")
	}
}

func TestStandardMembersMistypedEntryDropped(t *testing.T) {
	td := mustTypeData(t, "Widget", mustNote(t, "Color", "red"))
	// Depth must be numeric; smuggle in a string note.
	badDepth := mustNote(t, SerializationDepthName, "very deep")
	badDepth.SetHidden(true)
	if err := td.SetStandardMember(badDepth); err != nil {
		t.Fatalf("SetStandardMember: %v", err)
	}
	td.SetDefaultDisplayProperty("Color")

	tbl := NewTypeTable()
	tbl.Add(td)

	bag := tbl.TypeData("Widget").StandardMembers()
	if bag == nil {
		t.Fatal("bag should survive individual drops")
	}
	if bag.Members().Lookup(SerializationDepthName) != nil {
		t.Error("mistyped depth entry should be dropped")
	}
	if bag.Members().Lookup(DefaultDisplayPropertyName) == nil {
		t.Error("well-typed sibling entry should survive")
	}
	if len(tbl.Diagnostics()) == 0 {
		t.Error("dropped entry should be diagnosed")
	}
}

func TestStandardMembersSpecificWithoutSetInherits(t *testing.T) {
	// SpecificProperties with no local set is fine while inheritance is
	// on: the set can come entirely from ancestors.
	ok, _ := NewTypeData("Derived")
	ok.SetSerializationMethod(SerializeSpecificProperties)

	tbl := NewTypeTable()
	if err := tbl.Add(ok); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if tbl.TypeData("Derived").StandardMembers() == nil {
		t.Error("method-only bag should be accepted")
	}

	// With inheritance explicitly off and no local set there is nothing
	// to serialize: inconsistent.
	bad, _ := NewTypeData("Orphan")
	bad.SetSerializationMethod(SerializeSpecificProperties)
	bad.SetInheritPropertySerializationSet(false)
	tbl.Add(bad)
	if tbl.TypeData("Orphan").StandardMembers() != nil {
		t.Error("set-less non-inheriting bag should be reverted")
	}
}

// ---------------------------------------------------------------------------
// Specific-properties serialization walk
// ---------------------------------------------------------------------------

func TestSpecificPropertiesWalk(t *testing.T) {
	derived, _ := NewTypeData("Derived")
	derived.SetSerializationMethod(SerializeSpecificProperties)
	derived.SetPropertySerializationSet("a", "shared")
	base, _ := NewTypeData("Base")
	base.SetSerializationMethod(SerializeSpecificProperties)
	base.SetPropertySerializationSet("b", "Shared")

	tbl := NewTypeTable()
	tbl.Add(derived)
	tbl.Add(base)

	got := tbl.SpecificPropertiesToSerialize(mustHierarchy(t, "Derived", "Base"))
	want := []string{"a", "shared", "b"}
	if len(got) != len(want) {
		t.Fatalf("walk = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("walk[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSpecificPropertiesWalkStopsAtNonInheriting(t *testing.T) {
	derived, _ := NewTypeData("Derived")
	derived.SetSerializationMethod(SerializeSpecificProperties)
	derived.SetPropertySerializationSet("a")
	derived.SetInheritPropertySerializationSet(false)
	base, _ := NewTypeData("Base")
	base.SetSerializationMethod(SerializeSpecificProperties)
	base.SetPropertySerializationSet("b")

	tbl := NewTypeTable()
	tbl.Add(derived)
	tbl.Add(base)

	got := tbl.SpecificPropertiesToSerialize(mustHierarchy(t, "Derived", "Base"))
	if len(got) != 1 || got[0] != "a" {
		t.Errorf("walk = %v, want [a]", got)
	}
}
