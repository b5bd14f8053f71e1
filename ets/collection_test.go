package ets

import (
	"testing"
)

func mustNote(t *testing.T, name string, value any) *NoteProperty {
	t.Helper()
	n, err := NewNoteProperty(name, value)
	if err != nil {
		t.Fatalf("NewNoteProperty(%q): %v", name, err)
	}
	return n
}

func TestCollectionAddAndLookup(t *testing.T) {
	c := NewMemberCollection()
	if err := c.Add(mustNote(t, "Color", "red")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if m := c.Lookup("Color"); m == nil {
		t.Error("Lookup(Color) returned nil")
	}
	if m := c.Lookup("color"); m == nil {
		t.Error("lookup should be case-insensitive")
	}
	if m := c.Lookup("COLOR"); m == nil || m.Name() != "Color" {
		t.Error("lookup should preserve the declared name")
	}
	if c.Lookup("Missing") != nil {
		t.Error("absent member should resolve to nil, not an error")
	}
}

func TestCollectionDuplicateRejected(t *testing.T) {
	c := NewMemberCollection()
	if err := c.Add(mustNote(t, "Color", "red")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := c.Add(mustNote(t, "COLOR", "blue")); err == nil {
		t.Error("case-folded duplicate should be rejected")
	}
	if err := c.Add(nil); err == nil {
		t.Error("nil member should be rejected")
	}
}

func TestCollectionReplaceKeepsPosition(t *testing.T) {
	c := NewMemberCollection()
	c.Replace(mustNote(t, "A", 1))
	c.Replace(mustNote(t, "B", 2))
	c.Replace(mustNote(t, "C", 3))
	c.Replace(mustNote(t, "a", 10))

	members := c.Members()
	if len(members) != 3 {
		t.Fatalf("Len = %d, want 3", len(members))
	}
	if members[0].Name() != "a" {
		t.Errorf("replaced member moved: first is %q", members[0].Name())
	}
	if v := members[0].(*NoteProperty).Value(); v != 10 {
		t.Errorf("replaced value = %v, want 10", v)
	}
}

func TestCollectionRemove(t *testing.T) {
	c := NewMemberCollection()
	c.Replace(mustNote(t, "A", 1))
	c.Replace(mustNote(t, "B", 2))

	if !c.Remove("a") {
		t.Error("Remove(a) should succeed case-insensitively")
	}
	if c.Remove("A") {
		t.Error("second Remove should report absence")
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
	if got := c.Members()[0].Name(); got != "B" {
		t.Errorf("remaining member = %q, want B", got)
	}
}

func TestCollectionCopyIsDeep(t *testing.T) {
	c := NewMemberCollection()
	c.Replace(mustNote(t, "Color", "red"))

	cp := c.Copy()
	cp.Lookup("Color").(*NoteProperty).Set(nil, "blue")

	if v := c.Lookup("Color").(*NoteProperty).Value(); v != "red" {
		t.Errorf("original mutated through copy: %v", v)
	}
	cp.Remove("Color")
	if c.Len() != 1 {
		t.Error("removing from copy changed the original")
	}
}

func TestCollectionFirst(t *testing.T) {
	c := NewMemberCollection()
	c.Replace(mustNote(t, "A", 1))
	hiddenNote := mustNote(t, "B", 2)
	hiddenNote.SetHidden(true)
	c.Replace(hiddenNote)

	m := c.First(func(m Member) bool { return m.Hidden() })
	if m == nil || m.Name() != "B" {
		t.Errorf("First(hidden) = %v", m)
	}
	if c.First(func(Member) bool { return false }) != nil {
		t.Error("First with no matches should return nil")
	}
}
