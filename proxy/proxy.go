// Package proxy generates proxy command source from command metadata.
// A proxy forwards to a wrapped target command: it reproduces the
// target's parameter surface, binds a steppable pipeline in its begin
// block, streams input through process, and tears down in end. Metadata
// can be declared directly or lifted off any wrapped object that
// exposes Name and Parameters properties.
package proxy

import (
	"fmt"
	"strings"

	"github.com/chazu/facet/ets"
)

// ParameterMetadata describes one parameter of the proxied command.
type ParameterMetadata struct {
	Name           string
	TypeName       string
	Mandatory      bool
	Position       int // negative when unpositioned
	Pipeline       bool
	PipelineByName bool
	Switch         bool
	Aliases        []string
}

// CommandMetadata describes the command a proxy fronts.
type CommandMetadata struct {
	Name                  string
	Parameters            []*ParameterMetadata
	DefaultParameterSet   string
	SupportsShouldProcess bool
}

// NewCommandMetadata creates metadata for the named command.
func NewCommandMetadata(name string) (*CommandMetadata, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("proxy: command name must not be blank")
	}
	return &CommandMetadata{Name: name}, nil
}

// AddParameter appends a parameter, rejecting duplicate names.
func (c *CommandMetadata) AddParameter(p *ParameterMetadata) error {
	if p == nil || strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("proxy: parameter needs a name")
	}
	for _, existing := range c.Parameters {
		if strings.EqualFold(existing.Name, p.Name) {
			return fmt.Errorf("proxy: duplicate parameter %q", p.Name)
		}
	}
	c.Parameters = append(c.Parameters, p)
	return nil
}

// FromObject lifts command metadata off a wrapped command description.
// The object must expose a Name property; a Parameters property, when
// present, contributes one entry per element. Parameter elements are
// themselves resolved through the wrapper property API, so property
// bags, deserialized objects and native structs all work.
func FromObject(obj *ets.Object) (*CommandMetadata, error) {
	name, err := stringProp(obj, "Name")
	if err != nil {
		return nil, fmt.Errorf("proxy: %w", err)
	}
	c, err := NewCommandMetadata(name)
	if err != nil {
		return nil, err
	}
	if v, err := obj.Value("DefaultParameterSet"); err == nil {
		c.DefaultParameterSet, _ = v.(string)
	}
	if v, err := obj.Value("SupportsShouldProcess"); err == nil {
		c.SupportsShouldProcess, _ = v.(bool)
	}

	params, err := obj.Value("Parameters")
	if err != nil {
		return c, nil
	}
	rt := obj.Runtime()
	for i, raw := range enumerate(params) {
		p, err := parameterFromObject(rt.Wrap(raw))
		if err != nil {
			return nil, fmt.Errorf("proxy: parameter %d: %w", i, err)
		}
		if err := c.AddParameter(p); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func parameterFromObject(obj *ets.Object) (*ParameterMetadata, error) {
	name, err := stringProp(obj, "Name")
	if err != nil {
		return nil, err
	}
	p := &ParameterMetadata{Name: name, Position: -1}
	if v, err := obj.Value("TypeName"); err == nil {
		p.TypeName, _ = v.(string)
	}
	if v, err := obj.Value("Mandatory"); err == nil {
		p.Mandatory, _ = v.(bool)
	}
	if v, err := obj.Value("Position"); err == nil {
		if pos, ok := asPosition(v); ok {
			p.Position = pos
		}
	}
	if v, err := obj.Value("Pipeline"); err == nil {
		p.Pipeline, _ = v.(bool)
	}
	if v, err := obj.Value("PipelineByName"); err == nil {
		p.PipelineByName, _ = v.(bool)
	}
	if v, err := obj.Value("Switch"); err == nil {
		p.Switch, _ = v.(bool)
	}
	if v, err := obj.Value("Aliases"); err == nil {
		for _, a := range enumerate(v) {
			if s, ok := a.(string); ok && s != "" {
				p.Aliases = append(p.Aliases, s)
			}
		}
	}
	return p, nil
}

func stringProp(obj *ets.Object, name string) (string, error) {
	v, err := obj.Value(name)
	if err != nil {
		return "", fmt.Errorf("missing %s property: %w", name, err)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%s property is not a non-empty string", name)
	}
	return s, nil
}

func enumerate(v any) []any {
	switch x := v.(type) {
	case []any:
		return x
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case nil:
		return nil
	}
	return []any{v}
}

func asPosition(v any) (int, bool) {
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
