package ets

import (
	"testing"
)

type notebook struct {
	Pages []string
}

func (n *notebook) Clone() any {
	c := &notebook{Pages: append([]string(nil), n.Pages...)}
	return c
}

func TestCopyBagGetsFreshSentinel(t *testing.T) {
	rt := NewRuntime()
	bag := rt.NewPropertyBag()
	if err := bag.AddMember(mustNoteT("Name", "disk")); err != nil {
		t.Fatalf("AddMember: %v", err)
	}

	clone := bag.Copy()
	if !clone.IsPropertyBag() {
		t.Fatal("clone should still be a property bag")
	}
	if clone.Base() == bag.Base() {
		t.Error("clone must not share the original's sentinel")
	}
	if bag.Equal(clone) {
		t.Error("distinct bags must not compare equal")
	}

	// Member sets are independent after the copy.
	if err := clone.SetValue("Name", "tape"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if v, _ := bag.Value("Name"); v != "disk" {
		t.Errorf("original mutated through clone: %v", v)
	}
	if v, _ := clone.Value("Name"); v != "tape" {
		t.Errorf("clone value = %v", v)
	}
}

func TestCopyDoesNotCarryHiddenMembers(t *testing.T) {
	rt := NewRuntime()
	bag := rt.NewPropertyBag()
	h := mustNoteT("Secret", 1)
	h.SetHidden(true)
	bag.AddMember(h)
	bag.AddMember(mustNoteT("Open", 2))

	clone := bag.Copy()
	if _, err := clone.Value("Secret"); err == nil {
		t.Error("hidden member should not survive the copy")
	}
	if v, err := clone.Value("Open"); err != nil || v != 2 {
		t.Errorf("visible member = %v, %v", v, err)
	}
}

func TestCopyClonerBase(t *testing.T) {
	rt := NewRuntime()
	n := &notebook{Pages: []string{"a"}}
	obj := rt.NewObject(n)

	clone := obj.Copy()
	cn, ok := clone.Base().(*notebook)
	if !ok {
		t.Fatalf("clone base = %T", clone.Base())
	}
	if cn == n {
		t.Fatal("Cloner base should be deep-copied")
	}
	cn.Pages[0] = "b"
	if n.Pages[0] != "a" {
		t.Error("deep copy shares page storage")
	}
}

func TestCopyPointerBaseSharesInstanceMembers(t *testing.T) {
	rt := NewRuntime()
	g := &gadget{Color: "red"}
	obj := rt.NewObject(g)
	obj.AddMember(mustNoteT("Tag", "x"))

	clone := obj.Copy()
	if clone.Base() != any(g) {
		t.Fatal("plain pointer base should be shared")
	}
	// Same identity, so attached members stay shared both ways.
	clone.AddMember(mustNoteT("Later", true))
	if v, err := obj.Value("Later"); err != nil || v != true {
		t.Errorf("member attached via clone = %v, %v", v, err)
	}
	if v, err := clone.Value("Tag"); err != nil || v != "x" {
		t.Errorf("original member via clone = %v, %v", v, err)
	}
}

func TestCopyValueBaseIsIndependent(t *testing.T) {
	rt := NewRuntime()
	obj := rt.NewObject(gadget{Color: "red"})
	obj.AddMember(mustNoteT("Tag", "x"))

	clone := obj.Copy()
	if v, err := clone.Value("Tag"); err != nil || v != "x" {
		t.Fatalf("copied member = %v, %v", v, err)
	}
	clone.AddMember(mustNoteT("Later", true))
	if _, err := obj.Value("Later"); err == nil {
		t.Error("value-base copies must not share member storage")
	}
}

func TestCopyCarriesCachedString(t *testing.T) {
	rt := NewRuntime()
	obj := rt.NewObject(map[string]any{"A": 1})
	obj.SetCachedString("literal")

	if got, _ := obj.Copy().ToString(); got != "literal" {
		t.Errorf("copied ToString = %q", got)
	}
}

func TestCopyCarriesTypeNameOverride(t *testing.T) {
	rt := NewRuntime()
	bag := rt.NewPropertyBag()
	bag.MutableTypeNames().Insert(0, "App.Disk")

	clone := bag.Copy()
	if got := clone.TypeNames().At(0); got != "App.Disk" {
		t.Errorf("clone hierarchy head = %q", got)
	}
	// The clone's hierarchy is its own copy.
	clone.MutableTypeNames().Insert(0, "App.Tape")
	if got := bag.TypeNames().At(0); got != "App.Disk" {
		t.Errorf("original hierarchy mutated: %q", got)
	}
}
