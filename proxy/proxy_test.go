package proxy

import (
	"strings"
	"testing"

	"github.com/chazu/facet/ets"
)

func newMeta(t *testing.T) *CommandMetadata {
	t.Helper()
	c, err := NewCommandMetadata("Get-Disk")
	if err != nil {
		t.Fatalf("NewCommandMetadata: %v", err)
	}
	return c
}

func TestCommandMetadataValidation(t *testing.T) {
	if _, err := NewCommandMetadata("  "); err == nil {
		t.Error("blank command name should be rejected")
	}

	c := newMeta(t)
	if err := c.AddParameter(&ParameterMetadata{Name: "Name"}); err != nil {
		t.Fatalf("AddParameter: %v", err)
	}
	if err := c.AddParameter(&ParameterMetadata{Name: "name"}); err == nil {
		t.Error("duplicate parameter name should be rejected case-insensitively")
	}
	if err := c.AddParameter(&ParameterMetadata{}); err == nil {
		t.Error("nameless parameter should be rejected")
	}
}

func TestBindingAttribute(t *testing.T) {
	c := newMeta(t)
	if got := c.BindingAttribute(); got != "[CmdletBinding()]" {
		t.Errorf("BindingAttribute = %q", got)
	}

	c.DefaultParameterSet = "ByName"
	c.SupportsShouldProcess = true
	got := c.BindingAttribute()
	if got != "[CmdletBinding(DefaultParameterSetName='ByName', SupportsShouldProcess=$true)]" {
		t.Errorf("BindingAttribute = %q", got)
	}
}

func TestParamBlock(t *testing.T) {
	c := newMeta(t)
	if got := c.ParamBlock(); got != "param()" {
		t.Errorf("empty ParamBlock = %q", got)
	}

	c.AddParameter(&ParameterMetadata{
		Name:      "Name",
		TypeName:  "string",
		Mandatory: true,
		Position:  0,
		Pipeline:  true,
		Aliases:   []string{"N", "It's"},
	})
	c.AddParameter(&ParameterMetadata{Name: "Force", Switch: true, Position: -1})

	got := c.ParamBlock()
	for _, want := range []string{
		"[Parameter(Mandatory=$true, Position=0, ValueFromPipeline=$true)]",
		"[Alias('N', 'It''s')]",
		"[string] $Name,",
		"[Parameter()]",
		"[switch] $Force",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("ParamBlock missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Position=-1") {
		t.Errorf("unpositioned parameter leaked a position:\n%s", got)
	}
}

func TestGenerate(t *testing.T) {
	c := newMeta(t)
	c.AddParameter(&ParameterMetadata{Name: "Name", TypeName: "string", Position: -1})

	got := c.Generate()
	for _, want := range []string{
		"[CmdletBinding()]",
		"param(",
		"Get-Command -Name 'Get-Disk'",
		"GetSteppablePipeline",
		"$steppablePipeline.Begin($PSCmdlet)",
		"$steppablePipeline.Process($_)",
		"$steppablePipeline.End()",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Generate missing %q", want)
		}
	}
	// Blocks come out in pipeline order.
	begin := strings.Index(got, "begin {")
	process := strings.Index(got, "process {")
	end := strings.Index(got, "end {")
	if !(begin < process && process < end) {
		t.Errorf("block order wrong: begin=%d process=%d end=%d", begin, process, end)
	}
}

func TestGenerateEscapesCommandName(t *testing.T) {
	c, err := NewCommandMetadata("It's-Odd")
	if err != nil {
		t.Fatalf("NewCommandMetadata: %v", err)
	}
	if !strings.Contains(c.BeginBlock(), "'It''s-Odd'") {
		t.Errorf("command name not escaped:\n%s", c.BeginBlock())
	}
}

func TestFromObject(t *testing.T) {
	rt := ets.NewRuntime()

	param := rt.NewPropertyBag()
	for name, value := range map[string]any{
		"Name":      "Path",
		"TypeName":  "string",
		"Mandatory": true,
		"Position":  0,
		"Pipeline":  true,
		"Aliases":   []string{"P"},
	} {
		n, err := ets.NewNoteProperty(name, value)
		if err != nil {
			t.Fatalf("NewNoteProperty(%s): %v", name, err)
		}
		if err := param.AddMember(n); err != nil {
			t.Fatalf("AddMember(%s): %v", name, err)
		}
	}

	cmd := rt.NewObject(map[string]any{
		"Name":                  "Get-Disk",
		"DefaultParameterSet":   "ByPath",
		"SupportsShouldProcess": true,
		"Parameters":            []any{param},
	})

	c, err := FromObject(cmd)
	if err != nil {
		t.Fatalf("FromObject: %v", err)
	}
	if c.Name != "Get-Disk" || c.DefaultParameterSet != "ByPath" || !c.SupportsShouldProcess {
		t.Errorf("command metadata = %+v", c)
	}
	if len(c.Parameters) != 1 {
		t.Fatalf("parameters = %d", len(c.Parameters))
	}
	p := c.Parameters[0]
	if p.Name != "Path" || p.TypeName != "string" || !p.Mandatory || p.Position != 0 || !p.Pipeline {
		t.Errorf("parameter = %+v", p)
	}
	if len(p.Aliases) != 1 || p.Aliases[0] != "P" {
		t.Errorf("aliases = %v", p.Aliases)
	}
}

func TestFromObjectMissingName(t *testing.T) {
	rt := ets.NewRuntime()
	if _, err := FromObject(rt.NewObject(map[string]any{"Size": 1})); err == nil {
		t.Error("object without Name should be rejected")
	}
}

func TestFromObjectWithoutParameters(t *testing.T) {
	rt := ets.NewRuntime()
	c, err := FromObject(rt.NewObject(map[string]any{"Name": "Get-Disk"}))
	if err != nil {
		t.Fatalf("FromObject: %v", err)
	}
	if len(c.Parameters) != 0 {
		t.Errorf("parameters = %v", c.Parameters)
	}
}
