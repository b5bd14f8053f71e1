package serial

import (
	"fmt"
	"sort"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/facet/ets"
)

// DeserializedPrefix marks the type names of rehydrated property bags,
// so "Widget" round-trips as "Deserialized.Widget" and table entries
// registered against the deserialized name still apply.
const DeserializedPrefix = "Deserialized."

// Rehydrator rebuilds a live value from a decoded property map. One is
// consulted when the most specific type name carries a
// TargetTypeForDeserialization standard member naming it.
type Rehydrator func(props map[string]any) (any, error)

// Deserializer decodes CBOR produced by Serializer into deserialized
// wrappers, or into live values where a rehydrator is registered.
type Deserializer struct {
	rt    *ets.Runtime
	table *ets.TypeTable

	mu          sync.RWMutex
	rehydrators map[string]Rehydrator
}

// NewDeserializer creates a deserializer bound to a runtime.
func NewDeserializer(rt *ets.Runtime) *Deserializer {
	return &Deserializer{rt: rt, rehydrators: make(map[string]Rehydrator)}
}

// UseTable pins a type table on every wrapper this deserializer
// produces. Rehydrated objects then resolve extended members through
// the originating session's table rather than the local runtime's.
func (d *Deserializer) UseTable(t *ets.TypeTable) { d.table = t }

// RegisterRehydrator installs the factory consulted for the given
// target type name.
func (d *Deserializer) RegisterRehydrator(typeName string, fn Rehydrator) error {
	if typeName == "" || fn == nil {
		return fmt.Errorf("serial: rehydrator needs a type name and a function")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, dup := d.rehydrators[typeName]; dup {
		return fmt.Errorf("serial: rehydrator for %q already registered", typeName)
	}
	d.rehydrators[typeName] = fn
	return nil
}

func (d *Deserializer) rehydrator(typeName string) (Rehydrator, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fn, ok := d.rehydrators[typeName]
	return fn, ok
}

// Unmarshal decodes one serialized value. Scalars come back as
// themselves, enumerations as []any, and complex values as deserialized
// wrappers carrying prefixed type names and the cached string form.
func (d *Deserializer) Unmarshal(data []byte) (any, error) {
	var n node
	if err := cbor.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("serial: unmarshal: %w", err)
	}
	return d.decode(&n)
}

func (d *Deserializer) decode(n *node) (any, error) {
	if n.IsScalar {
		return n.Value, nil
	}
	if n.HasItems {
		items := make([]any, 0, len(n.Items))
		for i, item := range n.Items {
			v, err := d.decode(item)
			if err != nil {
				return nil, fmt.Errorf("serial: element %d: %w", i, err)
			}
			items = append(items, v)
		}
		return items, nil
	}
	return d.decodeObject(n)
}

func (d *Deserializer) decodeObject(n *node) (any, error) {
	props := make(map[string]any, len(n.Props))
	// Stable iteration keeps snapshot member order deterministic.
	names := make([]string, 0, len(n.Props))
	for name := range n.Props {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v, err := d.decode(n.Props[name])
		if err != nil {
			return nil, fmt.Errorf("serial: property %s: %w", name, err)
		}
		props[name] = v
	}

	if target, ok := d.targetType(n.TypeNames); ok {
		if fn, ok := d.rehydrator(target); ok {
			v, err := fn(props)
			if err != nil {
				return nil, fmt.Errorf("serial: rehydrate %s: %w", target, err)
			}
			return v, nil
		}
	}

	snapshot := ets.NewMemberCollection()
	for _, name := range names {
		note, err := ets.NewNoteProperty(name, props[name])
		if err != nil {
			return nil, fmt.Errorf("serial: property %s: %w", name, err)
		}
		if err := snapshot.Add(note); err != nil {
			return nil, fmt.Errorf("serial: property %s: %w", name, err)
		}
	}

	obj := d.rt.NewDeserializedObject(prefixTypeNames(n.TypeNames), snapshot)
	if d.table != nil {
		obj.SetFallbackTable(d.table)
	}
	if n.HasStr {
		obj.SetCachedString(n.Str)
	}
	return obj, nil
}

// targetType reads TargetTypeForDeserialization for the serialized
// hierarchy from the runtime's table.
func (d *Deserializer) targetType(typeNames []string) (string, bool) {
	table := d.rt.Types()
	if table == nil || len(typeNames) == 0 {
		return "", false
	}
	h, err := ets.NewTypeNameHierarchy(typeNames...)
	if err != nil {
		return "", false
	}
	bag, ok := table.ConsolidatedMember(h, ets.StandardMembersName).(*ets.MemberSet)
	if !ok {
		return "", false
	}
	note, ok := bag.Members().Lookup(ets.TargetTypeForDeserializationName).(*ets.NoteProperty)
	if !ok {
		return "", false
	}
	v, err := note.Get(nil)
	if err != nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

func prefixTypeNames(names []string) []string {
	if len(names) == 0 {
		return []string{DeserializedPrefix + "facet.PropertyBag"}
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = DeserializedPrefix + n
	}
	return out
}
