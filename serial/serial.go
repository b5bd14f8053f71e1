// Package serial serializes wrapped objects to CBOR and rehydrates them
// as deserialized property-bag wrappers. Encoding is canonical so equal
// object graphs produce identical bytes. The type table's standard
// members steer the shape: SerializationMethod picks string-only,
// specific-property or all-property encoding, SerializationDepth bounds
// recursion, StringSerializationSource overrides the string form, and
// TargetTypeForDeserialization names a registered rehydrator.
package serial

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/facet/ets"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("serial: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// DefaultDepth bounds property recursion when no SerializationDepth
// standard member applies.
const DefaultDepth = 2

// ---------------------------------------------------------------------------
// Wire shape
// ---------------------------------------------------------------------------

// node is the wire form of one value. Exactly one of Value, Items or
// Props carries the payload; TypeNames and Str ride along for complex
// values so the receiving side can rebuild the hierarchy and the cached
// string form.
type node struct {
	TypeNames []string         `cbor:"t,omitempty"`
	Str       string           `cbor:"s,omitempty"`
	HasStr    bool             `cbor:"hs,omitempty"`
	Value     any              `cbor:"v,omitempty"`
	IsScalar  bool             `cbor:"sc,omitempty"`
	Items     []*node          `cbor:"i,omitempty"`
	HasItems  bool             `cbor:"hi,omitempty"`
	Props     map[string]*node `cbor:"p,omitempty"`
	Truncated bool             `cbor:"tr,omitempty"`
}

// ---------------------------------------------------------------------------
// Serializer
// ---------------------------------------------------------------------------

// Serializer encodes values against one runtime's type configuration.
type Serializer struct {
	rt    *ets.Runtime
	depth int
}

// NewSerializer creates a serializer with the default depth.
func NewSerializer(rt *ets.Runtime) *Serializer {
	return &Serializer{rt: rt, depth: DefaultDepth}
}

// SetDepth overrides the ambient recursion depth. Per-type
// SerializationDepth standard members still take precedence.
func (s *Serializer) SetDepth(depth int) {
	if depth > 0 {
		s.depth = depth
	}
}

// Marshal encodes v to canonical CBOR.
func (s *Serializer) Marshal(v any) ([]byte, error) {
	enc := &encodeState{s: s, visited: map[uintptr]bool{}}
	n, err := enc.encode(v, s.depth)
	if err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(n)
}

type encodeState struct {
	s       *Serializer
	visited map[uintptr]bool
}

func (e *encodeState) encode(v any, depth int) (*node, error) {
	if obj, ok := v.(*ets.Object); ok {
		return e.encodeObject(obj, depth)
	}
	if v == nil || isScalar(v) {
		return &node{Value: v, IsScalar: true}, nil
	}
	return e.encodeObject(e.s.rt.Wrap(v), depth)
}

func (e *encodeState) encodeObject(obj *ets.Object, depth int) (*node, error) {
	// Pointer identity breaks reference cycles: a revisited object
	// degrades to its string form.
	key, keyed := identityKey(obj.Base())
	if keyed {
		if e.visited[key] {
			return e.stringOnly(obj, true), nil
		}
		e.visited[key] = true
		defer delete(e.visited, key)
	}

	cfg := readStandardConfig(obj)
	if cfg.depthSet {
		depth = cfg.depth
	}

	n := &node{TypeNames: obj.TypeNames().Names()}
	if str, ok := e.stringForm(obj, cfg); ok {
		n.Str, n.HasStr = str, true
	}
	if cfg.method == ets.SerializeString {
		return n, nil
	}
	if depth <= 0 {
		n.Truncated = true
		return n, nil
	}

	if items, ok, err := e.encodeItems(obj, depth); err != nil {
		return nil, err
	} else if ok {
		n.Items, n.HasItems = items, true
		return n, nil
	}

	props, err := e.encodeProps(obj, cfg, depth)
	if err != nil {
		return nil, err
	}
	n.Props = props
	return n, nil
}

// stringForm resolves the string payload: the StringSerializationSource
// member when configured, the object's own string conversion otherwise.
// Conversion failures drop the string rather than failing the encode.
func (e *encodeState) stringForm(obj *ets.Object, cfg standardConfig) (string, bool) {
	if cfg.stringSource != nil {
		v, err := cfg.stringSource.Get(obj)
		if err == nil {
			return fmt.Sprintf("%v", v), true
		}
	}
	s, err := obj.ToString()
	if err != nil {
		return "", false
	}
	return s, true
}

func (e *encodeState) stringOnly(obj *ets.Object, truncated bool) *node {
	n := &node{TypeNames: obj.TypeNames().Names(), Truncated: truncated}
	if s, err := obj.ToString(); err == nil {
		n.Str, n.HasStr = s, true
	}
	return n
}

// encodeItems handles enumerable bases: slices and arrays other than
// []byte encode element-wise.
func (e *encodeState) encodeItems(obj *ets.Object, depth int) ([]*node, bool, error) {
	base := obj.Base()
	if base == nil {
		return nil, false, nil
	}
	rv := reflect.ValueOf(base)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false, nil
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false, nil
	}
	items := make([]*node, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		item, err := e.encode(rv.Index(i).Interface(), depth-1)
		if err != nil {
			return nil, false, fmt.Errorf("serial: element %d: %w", i, err)
		}
		items = append(items, item)
	}
	return items, true, nil
}

func (e *encodeState) encodeProps(obj *ets.Object, cfg standardConfig, depth int) (map[string]*node, error) {
	var props []ets.Property
	if cfg.method == ets.SerializeSpecificProperties {
		table := obj.Runtime().Types()
		for _, name := range table.SpecificPropertiesToSerialize(obj.TypeNames()) {
			if p := obj.Property(name); p != nil {
				props = append(props, p)
			}
		}
	} else {
		props = obj.Properties()
	}

	out := make(map[string]*node, len(props))
	for _, p := range props {
		if p.Hidden() {
			continue
		}
		v, err := p.Get(obj)
		if err != nil {
			// Unreadable properties are skipped, not fatal. A getter that
			// fails on one instance should not poison the whole graph.
			continue
		}
		n, err := e.encode(v, depth-1)
		if err != nil {
			return nil, fmt.Errorf("serial: property %s: %w", p.Name(), err)
		}
		out[p.Name()] = n
	}
	return out, nil
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, []byte:
		return true
	}
	return false
}

func identityKey(base any) (uintptr, bool) {
	if base == nil {
		return 0, false
	}
	rv := reflect.ValueOf(base)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.UnsafePointer, reflect.Func:
		return rv.Pointer(), true
	}
	return 0, false
}

// ---------------------------------------------------------------------------
// Standard-member configuration
// ---------------------------------------------------------------------------

type standardConfig struct {
	method       ets.SerializationMethod
	depth        int
	depthSet     bool
	stringSource ets.Property
}

// readStandardConfig resolves the consolidated standard-member bag for
// the object's hierarchy. Mistyped entries were already dropped at table
// admission, so reads here are best-effort without re-validation.
func readStandardConfig(obj *ets.Object) standardConfig {
	var cfg standardConfig
	table := obj.Runtime().Types()
	if table == nil {
		return cfg
	}
	m := table.ConsolidatedMember(obj.TypeNames(), ets.StandardMembersName)
	bag, ok := m.(*ets.MemberSet)
	if !ok {
		return cfg
	}

	if n, ok := bag.Members().Lookup(ets.SerializationMethodName).(*ets.NoteProperty); ok {
		if v, err := n.Get(nil); err == nil {
			if method, err := ets.ParseSerializationMethod(fmt.Sprintf("%v", v)); err == nil {
				cfg.method = method
			}
		}
	}
	if n, ok := bag.Members().Lookup(ets.SerializationDepthName).(*ets.NoteProperty); ok {
		if v, err := n.Get(nil); err == nil {
			if d, ok := asInt(v); ok && d >= 0 {
				cfg.depth, cfg.depthSet = d, true
			}
		}
	}
	if a, ok := bag.Members().Lookup(ets.StringSerializationSourceName).(*ets.AliasProperty); ok {
		cfg.stringSource = a
	}
	return cfg
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case uint64:
		return int(x), true
	case float64:
		return int(x), true
	}
	return 0, false
}
