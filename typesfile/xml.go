package typesfile

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/chazu/facet/ets"
)

// ---------------------------------------------------------------------------
// Token-level tree
// ---------------------------------------------------------------------------

// xmlNode is a minimal element tree: name, attributes, collected character
// data, children, and the 1-based line the start tag appeared on. The
// document dialect never mixes text and child elements in a meaningful
// way, so a flat text accumulator per element is enough.
type xmlNode struct {
	name     string
	line     int
	attrs    map[string]string
	text     string
	children []*xmlNode
}

func (n *xmlNode) child(name string) *xmlNode {
	for _, c := range n.children {
		if strings.EqualFold(c.name, name) {
			return c
		}
	}
	return nil
}

func (n *xmlNode) childText(name string) (string, bool) {
	if c := n.child(name); c != nil {
		return strings.TrimSpace(c.text), true
	}
	return "", false
}

func (n *xmlNode) boolAttr(name string) bool {
	for k, v := range n.attrs {
		if strings.EqualFold(k, name) {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			return err == nil && b
		}
	}
	return false
}

// parseXMLTree scans tokens into a tree, recording the line of every start
// tag. Lines come from the decoder's input offset against a precomputed
// newline index, since encoding/xml does not track them itself.
func parseXMLTree(data []byte) (*xmlNode, error) {
	newlines := newlineOffsets(data)
	lineAt := func(offset int64) int {
		return sort.Search(len(newlines), func(i int) bool {
			return newlines[i] >= offset
		}) + 1
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	var root *xmlNode
	var stack []*xmlNode
	for {
		offset := dec.InputOffset()
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed document: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			node := &xmlNode{name: t.Name.Local, line: lineAt(offset)}
			if len(t.Attr) > 0 {
				node.attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					node.attrs[a.Name.Local] = a.Value
				}
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("malformed document: multiple root elements")
				}
				root = node
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, node)
			}
			stack = append(stack, node)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text += string(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("malformed document: no root element")
	}
	return root, nil
}

func newlineOffsets(data []byte) []int64 {
	var offsets []int64
	for i, b := range data {
		if b == '\n' {
			offsets = append(offsets, int64(i))
		}
	}
	return offsets
}

// ---------------------------------------------------------------------------
// Record builder
// ---------------------------------------------------------------------------

type xmlLoader struct {
	source string
	opts   Options
	diags  []string
}

func (l *xmlLoader) diagf(line int, format string, args ...any) {
	l.diags = append(l.diags, fmt.Sprintf("%s:%d: %s", l.source, line, fmt.Sprintf(format, args...)))
}

// ParseXML parses the XML dialect. A document that cannot be tokenized at
// all is an error; everything below that level degrades to per-entry
// diagnostics and the surviving records are still returned.
func ParseXML(sourceName string, data []byte, opts Options) ([]*ets.TypeData, []string, error) {
	root, err := parseXMLTree(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", sourceName, err)
	}
	l := &xmlLoader{source: sourceName, opts: opts}

	if !strings.EqualFold(root.name, "Types") {
		l.diagf(root.line, "expected root element Types, found %s", root.name)
		return nil, l.diags, nil
	}

	var records []*ets.TypeData
	for _, entry := range root.children {
		if !strings.EqualFold(entry.name, "Type") {
			l.diagf(entry.line, "unknown element %s under Types", entry.name)
			continue
		}
		if td := l.buildType(entry); td != nil {
			records = append(records, td)
		}
	}
	return records, l.diags, nil
}

func (l *xmlLoader) buildType(n *xmlNode) *ets.TypeData {
	name, ok := n.childText("Name")
	if !ok || name == "" {
		l.diagf(n.line, "Type entry has no Name")
		return nil
	}
	td, err := ets.NewTypeData(name)
	if err != nil {
		l.diagf(n.line, "Type %s: %s", name, err)
		return nil
	}
	td.MarkFromLoader()

	for _, c := range n.children {
		switch {
		case strings.EqualFold(c.name, "Name"):
			// already consumed
		case strings.EqualFold(c.name, "Members"):
			for _, mc := range c.children {
				m := l.buildMember(name, mc)
				if m == nil {
					continue
				}
				if err := td.Members().Add(m); err != nil {
					l.diagf(mc.line, "Type %s: %s", name, err)
				}
			}
		case strings.EqualFold(c.name, "TypeConverter"):
			l.attachConverter(td, name, c)
		case strings.EqualFold(c.name, "TypeAdapter"):
			l.attachAdapter(td, name, c)
		default:
			l.diagf(c.line, "Type %s: unknown element %s", name, c.name)
		}
	}
	if td.IsEmpty() {
		l.diagf(n.line, "Type %s carries no members, converter or adapter", name)
		return nil
	}
	return td
}

func (l *xmlLoader) attachConverter(td *ets.TypeData, typeName string, n *xmlNode) {
	ref, ok := n.childText("TypeName")
	if !ok || ref == "" {
		l.diagf(n.line, "Type %s: TypeConverter has no TypeName", typeName)
		return
	}
	factory, ok := l.opts.Converters[ref]
	if !ok {
		l.diagf(n.line, "Type %s: converter %q is not registered", typeName, ref)
		return
	}
	td.SetConverter(factory())
}

func (l *xmlLoader) attachAdapter(td *ets.TypeData, typeName string, n *xmlNode) {
	ref, ok := n.childText("TypeName")
	if !ok || ref == "" {
		l.diagf(n.line, "Type %s: TypeAdapter has no TypeName", typeName)
		return
	}
	factory, ok := l.opts.Adapters[ref]
	if !ok {
		l.diagf(n.line, "Type %s: adapter %q is not registered", typeName, ref)
		return
	}
	td.SetAdapter(factory())
}

// buildMember turns one member element into a Member, or returns nil after
// recording a diagnostic. Unknown elements and members the options cannot
// service (no compiler, no code registry) are skipped individually.
func (l *xmlLoader) buildMember(typeName string, n *xmlNode) ets.Member {
	name, ok := n.childText("Name")
	if !ok || name == "" {
		l.diagf(n.line, "Type %s: %s has no Name", typeName, n.name)
		return nil
	}
	ctx := typeName + "." + name

	var m ets.Member
	switch {
	case strings.EqualFold(n.name, "NoteProperty"):
		m = l.buildNote(ctx, name, n)
	case strings.EqualFold(n.name, "AliasProperty"):
		m = l.buildAlias(ctx, name, n)
	case strings.EqualFold(n.name, "ScriptProperty"):
		m = l.buildScriptProperty(ctx, name, n)
	case strings.EqualFold(n.name, "ScriptMethod"):
		m = l.buildScriptMethod(ctx, name, n)
	case strings.EqualFold(n.name, "CodeProperty"):
		m = l.buildCodeProperty(ctx, name, n)
	case strings.EqualFold(n.name, "CodeMethod"):
		m = l.buildCodeMethod(ctx, name, n)
	case strings.EqualFold(n.name, "PropertySet"):
		m = l.buildPropertySet(ctx, name, n)
	case strings.EqualFold(n.name, "MemberSet"):
		m = l.buildMemberSet(typeName, name, n)
	default:
		l.diagf(n.line, "Type %s: unknown member element %s", typeName, n.name)
		return nil
	}
	if m == nil {
		return nil
	}
	if n.boolAttr("IsHidden") {
		setHidden(m, true)
	}
	return m
}

func (l *xmlLoader) buildNote(ctx, name string, n *xmlNode) ets.Member {
	vc := n.child("Value")
	if vc == nil || strings.TrimSpace(vc.text) == "" {
		l.diagf(n.line, "%s: NoteProperty has no Value", ctx)
		return nil
	}
	var value any = strings.TrimSpace(vc.text)
	if tn, ok := n.childText("TypeName"); ok && tn != "" {
		coerced, err := ets.CoerceValue(value, tn)
		if err != nil {
			l.diagf(n.line, "%s: %s", ctx, err)
			return nil
		}
		value = coerced
	}
	m, err := ets.NewNoteProperty(name, value)
	if err != nil {
		l.diagf(n.line, "%s: %s", ctx, err)
		return nil
	}
	return m
}

func (l *xmlLoader) buildAlias(ctx, name string, n *xmlNode) ets.Member {
	target, ok := n.childText("ReferencedMemberName")
	if !ok || target == "" {
		l.diagf(n.line, "%s: AliasProperty has no ReferencedMemberName", ctx)
		return nil
	}
	m, err := ets.NewAliasProperty(name, target)
	if err != nil {
		l.diagf(n.line, "%s: %s", ctx, err)
		return nil
	}
	if tn, ok := n.childText("TypeName"); ok && tn != "" {
		m.SetConvertType(tn)
	}
	return m
}

func (l *xmlLoader) compile(ctx string, n *xmlNode) (ets.Callable, bool) {
	if l.opts.Compiler == nil {
		l.diagf(n.line, "%s: script member requires a compiler", ctx)
		return nil, false
	}
	c, err := l.opts.Compiler.Compile(n.text, n.line)
	if err != nil {
		l.diagf(n.line, "%s: %s", ctx, err)
		return nil, false
	}
	return c, true
}

func (l *xmlLoader) buildScriptProperty(ctx, name string, n *xmlNode) ets.Member {
	var getter, setter ets.Callable
	if c := n.child("GetScriptBlock"); c != nil {
		g, ok := l.compile(ctx, c)
		if !ok {
			return nil
		}
		getter = g
	}
	if c := n.child("SetScriptBlock"); c != nil {
		s, ok := l.compile(ctx, c)
		if !ok {
			return nil
		}
		setter = s
	}
	m, err := ets.NewScriptProperty(name, getter, setter)
	if err != nil {
		l.diagf(n.line, "%s: %s", ctx, err)
		return nil
	}
	return m
}

func (l *xmlLoader) buildScriptMethod(ctx, name string, n *xmlNode) ets.Member {
	c := n.child("Script")
	if c == nil {
		l.diagf(n.line, "%s: ScriptMethod has no Script", ctx)
		return nil
	}
	body, ok := l.compile(ctx, c)
	if !ok {
		return nil
	}
	m, err := ets.NewScriptMethod(name, body)
	if err != nil {
		l.diagf(n.line, "%s: %s", ctx, err)
		return nil
	}
	return m
}

// codeRef assembles the registry key for a code reference element:
// "<TypeName>.<MethodName>".
func (l *xmlLoader) codeRef(ctx string, n *xmlNode) (string, bool) {
	tn, _ := n.childText("TypeName")
	mn, _ := n.childText("MethodName")
	if tn == "" || mn == "" {
		l.diagf(n.line, "%s: code reference needs TypeName and MethodName", ctx)
		return "", false
	}
	return tn + "." + mn, true
}

func (l *xmlLoader) buildCodeProperty(ctx, name string, n *xmlNode) ets.Member {
	if l.opts.Code == nil {
		l.diagf(n.line, "%s: code member requires a code registry", ctx)
		return nil
	}
	var getter ets.CodeGetter
	var setter ets.CodeSetter
	if c := n.child("GetCodeReference"); c != nil {
		ref, ok := l.codeRef(ctx, c)
		if !ok {
			return nil
		}
		getter, ok = l.opts.Code.Getter(ref)
		if !ok {
			l.diagf(c.line, "%s: getter %q is not registered", ctx, ref)
			return nil
		}
	}
	if c := n.child("SetCodeReference"); c != nil {
		ref, ok := l.codeRef(ctx, c)
		if !ok {
			return nil
		}
		setter, ok = l.opts.Code.Setter(ref)
		if !ok {
			l.diagf(c.line, "%s: setter %q is not registered", ctx, ref)
			return nil
		}
	}
	m, err := ets.NewCodeProperty(name, getter, setter)
	if err != nil {
		l.diagf(n.line, "%s: %s", ctx, err)
		return nil
	}
	return m
}

func (l *xmlLoader) buildCodeMethod(ctx, name string, n *xmlNode) ets.Member {
	if l.opts.Code == nil {
		l.diagf(n.line, "%s: code member requires a code registry", ctx)
		return nil
	}
	c := n.child("CodeReference")
	if c == nil {
		l.diagf(n.line, "%s: CodeMethod has no CodeReference", ctx)
		return nil
	}
	ref, ok := l.codeRef(ctx, c)
	if !ok {
		return nil
	}
	fn, ok := l.opts.Code.Method(ref)
	if !ok {
		l.diagf(c.line, "%s: method %q is not registered", ctx, ref)
		return nil
	}
	m, err := ets.NewCodeMethod(name, fn)
	if err != nil {
		l.diagf(n.line, "%s: %s", ctx, err)
		return nil
	}
	return m
}

func (l *xmlLoader) buildPropertySet(ctx, name string, n *xmlNode) ets.Member {
	refs := n.child("ReferencedProperties")
	if refs == nil {
		l.diagf(n.line, "%s: PropertySet has no ReferencedProperties", ctx)
		return nil
	}
	var names []string
	for _, c := range refs.children {
		if !strings.EqualFold(c.name, "Name") {
			l.diagf(c.line, "%s: unknown element %s under ReferencedProperties", ctx, c.name)
			continue
		}
		if v := strings.TrimSpace(c.text); v != "" {
			names = append(names, v)
		}
	}
	m, err := ets.NewPropertySet(name, names...)
	if err != nil {
		l.diagf(n.line, "%s: %s", ctx, err)
		return nil
	}
	return m
}

func (l *xmlLoader) buildMemberSet(typeName, name string, n *xmlNode) ets.Member {
	m, err := ets.NewMemberSet(name)
	if err != nil {
		l.diagf(n.line, "%s.%s: %s", typeName, name, err)
		return nil
	}
	if strings.EqualFold(name, ets.StandardMembersName) {
		m.SetInheritMembers(true)
	}
	if v, ok := n.childText("InheritMembers"); ok {
		b, err := strconv.ParseBool(strings.ToLower(v))
		if err != nil {
			l.diagf(n.line, "%s.%s: invalid InheritMembers %q", typeName, name, v)
		} else {
			m.SetInheritMembers(b)
		}
	}
	if members := n.child("Members"); members != nil {
		for _, mc := range members.children {
			nested := l.buildMember(typeName+"."+name, mc)
			if nested == nil {
				continue
			}
			if err := m.Members().Add(nested); err != nil {
				l.diagf(mc.line, "%s.%s: %s", typeName, name, err)
			}
		}
	}
	if strings.EqualFold(name, ets.StandardMembersName) {
		m.SetHidden(true)
	}
	return m
}

func setHidden(m ets.Member, hidden bool) {
	type hider interface{ SetHidden(bool) }
	if h, ok := m.(hider); ok {
		h.SetHidden(hidden)
	}
}
