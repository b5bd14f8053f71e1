package ets

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// TypeData: one declarative type-extension record
// ---------------------------------------------------------------------------

// Reserved member names. The standard-member bag is itself a hidden
// MemberSet so the ordinary merge algorithm applies to it uniformly.
const (
	StandardMembersName = "StandardMembers"

	SerializationMethodName          = "SerializationMethod"
	SerializationDepthName           = "SerializationDepth"
	DefaultDisplayPropertyName       = "DefaultDisplayProperty"
	DefaultDisplayPropertySetName    = "DefaultDisplayPropertySet"
	DefaultKeyPropertySetName        = "DefaultKeyPropertySet"
	PropertySerializationSetName     = "PropertySerializationSet"
	InheritPropertySerializationName = "InheritPropertySerializationSet"
	StringSerializationSourceName    = "StringSerializationSource"
	TargetTypeForDeserializationName = "TargetTypeForDeserialization"
)

// SerializationMethod selects how a type's instances serialize.
type SerializationMethod int

const (
	// SerializeAllPublicProperties is the default: every public property.
	SerializeAllPublicProperties SerializationMethod = iota
	// SerializeString serializes only the string form.
	SerializeString
	// SerializeSpecificProperties serializes the names listed in the
	// type's PropertySerializationSet.
	SerializeSpecificProperties
)

// ParseSerializationMethod parses the declarative spelling of a method.
func ParseSerializationMethod(s string) (SerializationMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "allpublicproperties":
		return SerializeAllPublicProperties, nil
	case "string":
		return SerializeString, nil
	case "specificproperties":
		return SerializeSpecificProperties, nil
	}
	return 0, fmt.Errorf("unknown serialization method %q", s)
}

func (m SerializationMethod) String() string {
	switch m {
	case SerializeString:
		return "String"
	case SerializeSpecificProperties:
		return "SpecificProperties"
	}
	return "AllPublicProperties"
}

// TypeData holds every extension registered for one simple type name:
// members, an optional converter, an optional adapter, and the hidden
// standard-member bag.
type TypeData struct {
	name      string
	members   *MemberCollection
	converter Converter
	adapter   Adapter

	// Override lets this record replace existing same-name registrations
	// instead of being dropped as duplicates.
	Override bool

	// fromLoader relaxes the non-empty validation for structurally empty
	// leftovers the bulk declarative loader produces.
	fromLoader bool
}

// NewTypeData creates an empty record for the given simple type name.
func NewTypeData(name string) (*TypeData, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("type name must not be blank")
	}
	return &TypeData{name: name, members: NewMemberCollection()}, nil
}

// Name returns the simple type name this record extends.
func (td *TypeData) Name() string { return td.name }

// Members returns the live member collection, standard bag included.
func (td *TypeData) Members() *MemberCollection { return td.members }

// Converter returns the registered type converter, if any.
func (td *TypeData) Converter() Converter { return td.converter }

// SetConverter registers a type converter.
func (td *TypeData) SetConverter(c Converter) { td.converter = c }

// Adapter returns the registered type adapter, if any.
func (td *TypeData) Adapter() Adapter { return td.adapter }

// SetAdapter registers a type adapter replacing native reflection.
func (td *TypeData) SetAdapter(a Adapter) { td.adapter = a }

// AddMember adds a member to the record.
func (td *TypeData) AddMember(m Member) error {
	return td.members.Add(m)
}

// IsEmpty reports whether the record registers nothing at all. Empty
// records are rejected unless they came from the bulk loader.
func (td *TypeData) IsEmpty() bool {
	return td.members.Len() == 0 && td.converter == nil && td.adapter == nil
}

// StandardMembers returns the hidden standard-member bag, or nil.
func (td *TypeData) StandardMembers() *MemberSet {
	m := td.members.Lookup(StandardMembersName)
	if m == nil {
		return nil
	}
	ms, ok := m.(*MemberSet)
	if !ok {
		return nil
	}
	return ms
}

// SetStandardMember places one entry into the standard-member bag,
// creating the hidden bag on first use. Existing entries are replaced;
// re-validation happens when the record enters a table.
func (td *TypeData) SetStandardMember(m Member) error {
	bag := td.StandardMembers()
	if bag == nil {
		var err error
		bag, err = NewMemberSet(StandardMembersName)
		if err != nil {
			return err
		}
		bag.SetHidden(true)
		// Standard members consolidate entry-wise along the hierarchy, so
		// the bag always merges instead of replacing.
		bag.SetInheritMembers(true)
		td.members.Replace(bag)
	}
	bag.Members().Replace(m)
	return nil
}

// standardNote is a convenience for building standard-member notes.
func standardNote(name string, value any) (*NoteProperty, error) {
	n, err := NewNoteProperty(name, value)
	if err != nil {
		return nil, err
	}
	n.SetHidden(true)
	return n, nil
}

// SetSerializationMethod records the serialization method standard member.
func (td *TypeData) SetSerializationMethod(m SerializationMethod) error {
	n, err := standardNote(SerializationMethodName, m.String())
	if err != nil {
		return err
	}
	return td.SetStandardMember(n)
}

// SetSerializationDepth records the serialization depth standard member.
func (td *TypeData) SetSerializationDepth(depth int) error {
	n, err := standardNote(SerializationDepthName, int64(depth))
	if err != nil {
		return err
	}
	return td.SetStandardMember(n)
}

// SetPropertySerializationSet records the property names serialized under
// the SpecificProperties method.
func (td *TypeData) SetPropertySerializationSet(names ...string) error {
	ps, err := NewPropertySet(PropertySerializationSetName, names...)
	if err != nil {
		return err
	}
	ps.SetHidden(true)
	return td.SetStandardMember(ps)
}

// SetInheritPropertySerializationSet records whether ancestor types
// contribute their serialization sets (default true).
func (td *TypeData) SetInheritPropertySerializationSet(inherit bool) error {
	n, err := standardNote(InheritPropertySerializationName, inherit)
	if err != nil {
		return err
	}
	return td.SetStandardMember(n)
}

// SetDefaultDisplayPropertySet records the default display property set.
func (td *TypeData) SetDefaultDisplayPropertySet(names ...string) error {
	ps, err := NewPropertySet(DefaultDisplayPropertySetName, names...)
	if err != nil {
		return err
	}
	ps.SetHidden(true)
	return td.SetStandardMember(ps)
}

// SetDefaultKeyPropertySet records the default key property set.
func (td *TypeData) SetDefaultKeyPropertySet(names ...string) error {
	ps, err := NewPropertySet(DefaultKeyPropertySetName, names...)
	if err != nil {
		return err
	}
	ps.SetHidden(true)
	return td.SetStandardMember(ps)
}

// SetDefaultDisplayProperty records the default display property name.
func (td *TypeData) SetDefaultDisplayProperty(name string) error {
	n, err := standardNote(DefaultDisplayPropertyName, name)
	if err != nil {
		return err
	}
	return td.SetStandardMember(n)
}

// SetStringSerializationSource records the member whose value serializes
// as the string form.
func (td *TypeData) SetStringSerializationSource(memberName string) error {
	a, err := NewAliasProperty(StringSerializationSourceName, memberName)
	if err != nil {
		return err
	}
	a.SetHidden(true)
	return td.SetStandardMember(a)
}

// SetTargetTypeForDeserialization records the concrete type rehydrated
// from serialized instances of this type.
func (td *TypeData) SetTargetTypeForDeserialization(typeName string) error {
	n, err := standardNote(TargetTypeForDeserializationName, typeName)
	if err != nil {
		return err
	}
	return td.SetStandardMember(n)
}

// Copy returns an independent record; members are deep-copied.
func (td *TypeData) Copy() *TypeData {
	c := &TypeData{
		name:       td.name,
		members:    td.members.Copy(),
		converter:  td.converter,
		adapter:    td.adapter,
		Override:   td.Override,
		fromLoader: td.fromLoader,
	}
	return c
}

// MarkFromLoader relaxes empty-record validation for records produced by
// the bulk declarative loader.
func (td *TypeData) MarkFromLoader() { td.fromLoader = true }
