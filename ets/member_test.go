package ets

import (
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// NoteProperty
// ---------------------------------------------------------------------------

func TestNoteProperty(t *testing.T) {
	n := mustNote(t, "Status", "ok")
	if n.Kind() != KindNoteProperty {
		t.Errorf("Kind = %v", n.Kind())
	}
	v, err := n.Get(nil)
	if err != nil || v != "ok" {
		t.Errorf("Get = %v, %v", v, err)
	}
	if err := n.Set(nil, "changed"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if n.Value() != "changed" {
		t.Errorf("Value = %v", n.Value())
	}

	if _, err := NewNoteProperty("  ", 1); err == nil {
		t.Error("blank name should be rejected")
	}
}

// ---------------------------------------------------------------------------
// AliasProperty
// ---------------------------------------------------------------------------

func TestAliasResolution(t *testing.T) {
	rt := NewRuntime()
	bag := rt.NewPropertyBag()
	if err := bag.AddMember(mustNote(t, "FullName", "gizmo")); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	alias, err := NewAliasProperty("Name", "FullName")
	if err != nil {
		t.Fatalf("NewAliasProperty: %v", err)
	}
	if err := bag.AddMember(alias); err != nil {
		t.Fatalf("AddMember: %v", err)
	}

	v, err := bag.Value("Name")
	if err != nil || v != "gizmo" {
		t.Errorf("alias Get = %v, %v", v, err)
	}
	if err := bag.SetValue("Name", "widget"); err != nil {
		t.Fatalf("alias Set: %v", err)
	}
	if v, _ := bag.Value("FullName"); v != "widget" {
		t.Errorf("alias Set did not reach target: %v", v)
	}
}

func TestAliasChain(t *testing.T) {
	rt := NewRuntime()
	bag := rt.NewPropertyBag()
	bag.AddMember(mustNote(t, "Leaf", 7))
	a1, _ := NewAliasProperty("Mid", "Leaf")
	a2, _ := NewAliasProperty("Top", "Mid")
	bag.AddMember(a1)
	bag.AddMember(a2)

	v, err := bag.Value("Top")
	if err != nil || v != 7 {
		t.Errorf("chained alias = %v, %v", v, err)
	}
}

func TestAliasCycleFails(t *testing.T) {
	rt := NewRuntime()
	bag := rt.NewPropertyBag()
	a1, _ := NewAliasProperty("A", "B")
	a2, _ := NewAliasProperty("B", "A")
	bag.AddMember(a1)
	bag.AddMember(a2)

	_, err := bag.Value("A")
	if err == nil {
		t.Fatal("alias cycle should fail")
	}
	if !strings.Contains(err.Error(), "cycle") {
		t.Errorf("error should mention the cycle: %v", err)
	}
}

func TestAliasMissingTarget(t *testing.T) {
	rt := NewRuntime()
	bag := rt.NewPropertyBag()
	a, _ := NewAliasProperty("Name", "Nowhere")
	bag.AddMember(a)

	if _, err := bag.Value("Name"); err == nil {
		t.Error("unresolvable alias should fail on access, not at construction")
	}
}

func TestAliasConvertType(t *testing.T) {
	rt := NewRuntime()
	bag := rt.NewPropertyBag()
	bag.AddMember(mustNote(t, "Raw", "42"))
	a, _ := NewAliasProperty("Count", "Raw")
	a.SetConvertType("int")
	bag.AddMember(a)

	v, err := bag.Value("Count")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != int64(42) {
		t.Errorf("converted value = %v (%T), want int64 42", v, v)
	}
}

// paintConverter turns hue strings into painted spellings.
type paintConverter struct{}

func (paintConverter) CanConvert(v any) bool { _, ok := v.(string); return ok }

func (paintConverter) Convert(v any) (any, error) {
	return "painted " + v.(string), nil
}

func TestAliasConvertTypeViaTableConverter(t *testing.T) {
	rt := NewRuntime()
	td, err := NewTypeData("Color")
	if err != nil {
		t.Fatalf("NewTypeData: %v", err)
	}
	td.SetConverter(paintConverter{})
	if err := rt.Types().Add(td); err != nil {
		t.Fatalf("Add: %v", err)
	}

	bag := rt.NewPropertyBag()
	bag.AddMember(mustNote(t, "Hue", "teal"))
	a, _ := NewAliasProperty("Paint", "Hue")
	a.SetConvertType("Color")
	bag.AddMember(a)

	v, err := bag.Value("Paint")
	if err != nil {
		t.Fatalf("Get through registered converter: %v", err)
	}
	if v != "painted teal" {
		t.Errorf("converted value = %v", v)
	}
}

func TestAliasConvertTypeConverterDeclines(t *testing.T) {
	rt := NewRuntime()
	td, _ := NewTypeData("int")
	td.SetConverter(paintConverter{})
	rt.Types().Add(td)

	// The converter only handles strings, so a non-string value falls
	// through to the built-in scalar coercion.
	bag := rt.NewPropertyBag()
	bag.AddMember(mustNote(t, "Raw", 7.0))
	a, _ := NewAliasProperty("Count", "Raw")
	a.SetConvertType("int")
	bag.AddMember(a)

	v, err := bag.Value("Count")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != int64(7) {
		t.Errorf("scalar fallback value = %v (%T)", v, v)
	}
}

func TestAliasConvertTypeUnknownWithoutConverter(t *testing.T) {
	rt := NewRuntime()
	bag := rt.NewPropertyBag()
	bag.AddMember(mustNote(t, "Hue", "teal"))
	a, _ := NewAliasProperty("Paint", "Hue")
	a.SetConvertType("Color")
	bag.AddMember(a)

	if _, err := bag.Value("Paint"); err == nil {
		t.Error("unregistered coercion type should fail")
	}
}

// ---------------------------------------------------------------------------
// Script and code members
// ---------------------------------------------------------------------------

func TestScriptProperty(t *testing.T) {
	var stored any
	p, err := NewScriptProperty("Computed",
		GoCallable(func(this any, args ...any) (any, error) { return "value", nil }),
		GoCallable(func(this any, args ...any) (any, error) {
			stored = args[0]
			return nil, nil
		}))
	if err != nil {
		t.Fatalf("NewScriptProperty: %v", err)
	}

	v, err := p.Get(nil)
	if err != nil || v != "value" {
		t.Errorf("Get = %v, %v", v, err)
	}
	if err := p.Set(nil, 9); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if stored != 9 {
		t.Errorf("setter saw %v", stored)
	}

	readOnly, _ := NewScriptProperty("RO",
		GoCallable(func(any, ...any) (any, error) { return 1, nil }), nil)
	if readOnly.IsSettable() {
		t.Error("nil setter should make the property read-only")
	}
	if err := readOnly.Set(nil, 1); err == nil {
		t.Error("Set without setter should fail")
	}
}

func TestScriptMethodRequiresBody(t *testing.T) {
	if _, err := NewScriptMethod("M", nil); err == nil {
		t.Error("nil body should be rejected")
	}
}

func TestCodePropertyRequiresAccessor(t *testing.T) {
	if _, err := NewCodeProperty("P", nil, nil); err == nil {
		t.Error("code property with neither accessor should be rejected")
	}
	p, err := NewCodeProperty("P", func(obj *Object) (any, error) { return 1, nil }, nil)
	if err != nil {
		t.Fatalf("NewCodeProperty: %v", err)
	}
	if p.IsSettable() {
		t.Error("getter-only code property should not be settable")
	}
}

// ---------------------------------------------------------------------------
// PropertySet and MemberSet
// ---------------------------------------------------------------------------

func TestPropertySet(t *testing.T) {
	ps, err := NewPropertySet("Display", "Name", "Color")
	if err != nil {
		t.Fatalf("NewPropertySet: %v", err)
	}
	refs := ps.ReferencedNames()
	if len(refs) != 2 || refs[0] != "Name" || refs[1] != "Color" {
		t.Errorf("ReferencedNames = %v", refs)
	}

	if _, err := NewPropertySet("Bad", "Name", " "); err == nil {
		t.Error("blank referenced name should be rejected")
	}
}

func TestMemberSet(t *testing.T) {
	ms, err := NewMemberSet("Group", mustNote(t, "A", 1), mustNote(t, "B", 2))
	if err != nil {
		t.Fatalf("NewMemberSet: %v", err)
	}
	if ms.InheritMembers() {
		t.Error("InheritMembers should default to false")
	}
	if ms.Members().Len() != 2 {
		t.Errorf("nested count = %d", ms.Members().Len())
	}

	cp := ms.Copy().(*MemberSet)
	cp.Members().Remove("A")
	if ms.Members().Len() != 2 {
		t.Error("Copy should deep-copy the nested collection")
	}

	if _, err := NewMemberSet("Dup", mustNote(t, "A", 1), mustNote(t, "a", 2)); err == nil {
		t.Error("duplicate nested names should be rejected")
	}
}
