package typesfile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/chazu/facet/ets"
)

// ---------------------------------------------------------------------------
// TOML form
// ---------------------------------------------------------------------------

// The TOML form is the hand-written flavor: one [[types]] table per type,
// arrays of tables per member kind, and a [types.standard] table for the
// serialization configuration. Script sources carry no line numbers of
// their own, so compiled callables start at line 1.

type tomlDocument struct {
	Types []tomlType `toml:"types"`
}

type tomlType struct {
	Name             string               `toml:"name"`
	Override         bool                 `toml:"override"`
	Converter        string               `toml:"converter"`
	Adapter          string               `toml:"adapter"`
	Notes            []tomlNote           `toml:"notes"`
	Aliases          []tomlAlias          `toml:"aliases"`
	ScriptProperties []tomlScriptProperty `toml:"script-properties"`
	ScriptMethods    []tomlScriptMethod   `toml:"script-methods"`
	CodeProperties   []tomlCodeProperty   `toml:"code-properties"`
	CodeMethods      []tomlCodeMethod     `toml:"code-methods"`
	PropertySets     []tomlPropertySet    `toml:"property-sets"`
	MemberSets       []tomlMemberSet      `toml:"member-sets"`
	Standard         *tomlStandard        `toml:"standard"`
}

type tomlNote struct {
	Name   string `toml:"name"`
	Value  any    `toml:"value"`
	Type   string `toml:"type"`
	Hidden bool   `toml:"hidden"`
}

type tomlAlias struct {
	Name   string `toml:"name"`
	Target string `toml:"target"`
	Type   string `toml:"type"`
	Hidden bool   `toml:"hidden"`
}

type tomlScriptProperty struct {
	Name   string `toml:"name"`
	Get    string `toml:"get"`
	Set    string `toml:"set"`
	Hidden bool   `toml:"hidden"`
}

type tomlScriptMethod struct {
	Name   string `toml:"name"`
	Script string `toml:"script"`
	Hidden bool   `toml:"hidden"`
}

type tomlCodeProperty struct {
	Name   string `toml:"name"`
	Get    string `toml:"get"`
	Set    string `toml:"set"`
	Hidden bool   `toml:"hidden"`
}

type tomlCodeMethod struct {
	Name   string `toml:"name"`
	Ref    string `toml:"ref"`
	Hidden bool   `toml:"hidden"`
}

type tomlPropertySet struct {
	Name       string   `toml:"name"`
	Properties []string `toml:"properties"`
	Hidden     bool     `toml:"hidden"`
}

type tomlMemberSet struct {
	Name           string            `toml:"name"`
	InheritMembers *bool             `toml:"inherit-members"`
	Notes          []tomlNote        `toml:"notes"`
	Aliases        []tomlAlias       `toml:"aliases"`
	PropertySets   []tomlPropertySet `toml:"property-sets"`
	Hidden         bool              `toml:"hidden"`
}

type tomlStandard struct {
	SerializationMethod             string   `toml:"serialization-method"`
	SerializationDepth              *int     `toml:"serialization-depth"`
	PropertySerializationSet        []string `toml:"property-serialization-set"`
	InheritPropertySerializationSet *bool    `toml:"inherit-property-serialization-set"`
	DefaultDisplayProperty          string   `toml:"default-display-property"`
	DefaultDisplayPropertySet       []string `toml:"default-display-property-set"`
	DefaultKeyPropertySet           []string `toml:"default-key-property-set"`
	StringSerializationSource       string   `toml:"string-serialization-source"`
	TargetType                      string   `toml:"target-type"`
}

type tomlLoader struct {
	source string
	opts   Options
	diags  []string
}

func (l *tomlLoader) diagf(format string, args ...any) {
	l.diags = append(l.diags, fmt.Sprintf("%s: %s", l.source, fmt.Sprintf(format, args...)))
}

// ParseTOML parses the TOML form. Like the XML path, only an undecodable
// document is an error; bad entries degrade to diagnostics.
func ParseTOML(sourceName string, data []byte, opts Options) ([]*ets.TypeData, []string, error) {
	var doc tomlDocument
	if err := toml.Unmarshal(data, &doc); err != nil {
		var pe toml.ParseError
		if errors.As(err, &pe) {
			return nil, nil, fmt.Errorf("%s: %s", sourceName, pe.ErrorWithPosition())
		}
		return nil, nil, fmt.Errorf("%s: %w", sourceName, err)
	}
	l := &tomlLoader{source: sourceName, opts: opts}

	var records []*ets.TypeData
	for _, entry := range doc.Types {
		if td := l.buildType(entry); td != nil {
			records = append(records, td)
		}
	}
	return records, l.diags, nil
}

func (l *tomlLoader) buildType(entry tomlType) *ets.TypeData {
	if entry.Name == "" {
		l.diagf("types entry has no name")
		return nil
	}
	td, err := ets.NewTypeData(entry.Name)
	if err != nil {
		l.diagf("type %s: %s", entry.Name, err)
		return nil
	}
	td.MarkFromLoader()
	td.Override = entry.Override

	add := func(m ets.Member, hidden bool, err error) {
		if err != nil {
			l.diagf("type %s: %s", entry.Name, err)
			return
		}
		if hidden {
			setHidden(m, true)
		}
		if err := td.Members().Add(m); err != nil {
			l.diagf("type %s: %s", entry.Name, err)
		}
	}

	for _, n := range entry.Notes {
		add(l.buildNote(entry.Name, n))
	}
	for _, a := range entry.Aliases {
		add(l.buildAlias(entry.Name, a))
	}
	for _, p := range entry.ScriptProperties {
		add(l.buildScriptProperty(entry.Name, p))
	}
	for _, m := range entry.ScriptMethods {
		add(l.buildScriptMethod(entry.Name, m))
	}
	for _, p := range entry.CodeProperties {
		add(l.buildCodeProperty(entry.Name, p))
	}
	for _, m := range entry.CodeMethods {
		add(l.buildCodeMethod(entry.Name, m))
	}
	for _, p := range entry.PropertySets {
		add(l.buildPropertySet(p))
	}
	for _, m := range entry.MemberSets {
		add(l.buildMemberSet(entry.Name, m))
	}

	if entry.Converter != "" {
		if factory, ok := l.opts.Converters[entry.Converter]; ok {
			td.SetConverter(factory())
		} else {
			l.diagf("type %s: converter %q is not registered", entry.Name, entry.Converter)
		}
	}
	if entry.Adapter != "" {
		if factory, ok := l.opts.Adapters[entry.Adapter]; ok {
			td.SetAdapter(factory())
		} else {
			l.diagf("type %s: adapter %q is not registered", entry.Name, entry.Adapter)
		}
	}

	if entry.Standard != nil {
		l.applyStandard(td, entry.Name, *entry.Standard)
	}

	if td.IsEmpty() {
		l.diagf("type %s carries no members, converter or adapter", entry.Name)
		return nil
	}
	return td
}

func (l *tomlLoader) applyStandard(td *ets.TypeData, typeName string, s tomlStandard) {
	report := func(err error) {
		if err != nil {
			l.diagf("type %s: %s", typeName, err)
		}
	}
	if s.SerializationMethod != "" {
		m, err := ets.ParseSerializationMethod(s.SerializationMethod)
		if err != nil {
			report(err)
		} else {
			report(td.SetSerializationMethod(m))
		}
	}
	if s.SerializationDepth != nil {
		report(td.SetSerializationDepth(*s.SerializationDepth))
	}
	if len(s.PropertySerializationSet) > 0 {
		report(td.SetPropertySerializationSet(s.PropertySerializationSet...))
	}
	if s.InheritPropertySerializationSet != nil {
		report(td.SetInheritPropertySerializationSet(*s.InheritPropertySerializationSet))
	}
	if s.DefaultDisplayProperty != "" {
		report(td.SetDefaultDisplayProperty(s.DefaultDisplayProperty))
	}
	if len(s.DefaultDisplayPropertySet) > 0 {
		report(td.SetDefaultDisplayPropertySet(s.DefaultDisplayPropertySet...))
	}
	if len(s.DefaultKeyPropertySet) > 0 {
		report(td.SetDefaultKeyPropertySet(s.DefaultKeyPropertySet...))
	}
	if s.StringSerializationSource != "" {
		report(td.SetStringSerializationSource(s.StringSerializationSource))
	}
	if s.TargetType != "" {
		report(td.SetTargetTypeForDeserialization(s.TargetType))
	}
}

func (l *tomlLoader) buildNote(typeName string, n tomlNote) (ets.Member, bool, error) {
	value := n.Value
	if n.Type != "" {
		coerced, err := ets.CoerceValue(value, n.Type)
		if err != nil {
			return nil, false, fmt.Errorf("note %s: %w", n.Name, err)
		}
		value = coerced
	}
	m, err := ets.NewNoteProperty(n.Name, value)
	return m, n.Hidden, err
}

func (l *tomlLoader) buildAlias(typeName string, a tomlAlias) (ets.Member, bool, error) {
	m, err := ets.NewAliasProperty(a.Name, a.Target)
	if err != nil {
		return nil, false, err
	}
	if a.Type != "" {
		m.SetConvertType(a.Type)
	}
	return m, a.Hidden, nil
}

func (l *tomlLoader) compile(source string) (ets.Callable, error) {
	if l.opts.Compiler == nil {
		return nil, fmt.Errorf("script member requires a compiler")
	}
	return l.opts.Compiler.Compile(source, 1)
}

func (l *tomlLoader) buildScriptProperty(typeName string, p tomlScriptProperty) (ets.Member, bool, error) {
	var getter, setter ets.Callable
	var err error
	if p.Get != "" {
		if getter, err = l.compile(p.Get); err != nil {
			return nil, false, fmt.Errorf("script property %s: %w", p.Name, err)
		}
	}
	if p.Set != "" {
		if setter, err = l.compile(p.Set); err != nil {
			return nil, false, fmt.Errorf("script property %s: %w", p.Name, err)
		}
	}
	m, err := ets.NewScriptProperty(p.Name, getter, setter)
	return m, p.Hidden, err
}

func (l *tomlLoader) buildScriptMethod(typeName string, sm tomlScriptMethod) (ets.Member, bool, error) {
	body, err := l.compile(sm.Script)
	if err != nil {
		return nil, false, fmt.Errorf("script method %s: %w", sm.Name, err)
	}
	m, err := ets.NewScriptMethod(sm.Name, body)
	return m, sm.Hidden, err
}

func (l *tomlLoader) buildCodeProperty(typeName string, p tomlCodeProperty) (ets.Member, bool, error) {
	if l.opts.Code == nil {
		return nil, false, fmt.Errorf("code property %s requires a code registry", p.Name)
	}
	var getter ets.CodeGetter
	var setter ets.CodeSetter
	if p.Get != "" {
		g, ok := l.opts.Code.Getter(p.Get)
		if !ok {
			return nil, false, fmt.Errorf("code property %s: getter %q is not registered", p.Name, p.Get)
		}
		getter = g
	}
	if p.Set != "" {
		s, ok := l.opts.Code.Setter(p.Set)
		if !ok {
			return nil, false, fmt.Errorf("code property %s: setter %q is not registered", p.Name, p.Set)
		}
		setter = s
	}
	m, err := ets.NewCodeProperty(p.Name, getter, setter)
	return m, p.Hidden, err
}

func (l *tomlLoader) buildCodeMethod(typeName string, cm tomlCodeMethod) (ets.Member, bool, error) {
	if l.opts.Code == nil {
		return nil, false, fmt.Errorf("code method %s requires a code registry", cm.Name)
	}
	fn, ok := l.opts.Code.Method(cm.Ref)
	if !ok {
		return nil, false, fmt.Errorf("code method %s: %q is not registered", cm.Name, cm.Ref)
	}
	m, err := ets.NewCodeMethod(cm.Name, fn)
	return m, cm.Hidden, err
}

func (l *tomlLoader) buildPropertySet(p tomlPropertySet) (ets.Member, bool, error) {
	m, err := ets.NewPropertySet(p.Name, p.Properties...)
	return m, p.Hidden, err
}

func (l *tomlLoader) buildMemberSet(typeName string, ms tomlMemberSet) (ets.Member, bool, error) {
	m, err := ets.NewMemberSet(ms.Name)
	if err != nil {
		return nil, false, err
	}
	if strings.EqualFold(ms.Name, ets.StandardMembersName) {
		m.SetInheritMembers(true)
	}
	if ms.InheritMembers != nil {
		m.SetInheritMembers(*ms.InheritMembers)
	}
	addNested := func(nested ets.Member, hidden bool, err error) error {
		if err != nil {
			return err
		}
		if hidden {
			setHidden(nested, true)
		}
		return m.Members().Add(nested)
	}
	for _, n := range ms.Notes {
		if err := addNested(l.buildNote(typeName, n)); err != nil {
			return nil, false, fmt.Errorf("member set %s: %w", ms.Name, err)
		}
	}
	for _, a := range ms.Aliases {
		if err := addNested(l.buildAlias(typeName, a)); err != nil {
			return nil, false, fmt.Errorf("member set %s: %w", ms.Name, err)
		}
	}
	for _, p := range ms.PropertySets {
		if err := addNested(l.buildPropertySet(p)); err != nil {
			return nil, false, fmt.Errorf("member set %s: %w", ms.Name, err)
		}
	}
	hidden := ms.Hidden || strings.EqualFold(ms.Name, ets.StandardMembersName)
	return m, hidden, nil
}
