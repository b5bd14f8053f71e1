package proxy

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Source generation
// ---------------------------------------------------------------------------

// Generate assembles the full proxy body: binding attribute, parameter
// block, and the begin/process/end blocks wiring a steppable pipeline
// to the target command.
func (c *CommandMetadata) Generate() string {
	var b strings.Builder
	b.WriteString(c.BindingAttribute())
	b.WriteString("\n")
	b.WriteString(c.ParamBlock())
	b.WriteString("\n\n")
	b.WriteString(c.BeginBlock())
	b.WriteString("\n\n")
	b.WriteString(c.ProcessBlock())
	b.WriteString("\n\n")
	b.WriteString(c.EndBlock())
	b.WriteString("\n")
	return b.String()
}

// BindingAttribute renders the command-level binding attribute.
func (c *CommandMetadata) BindingAttribute() string {
	var opts []string
	if c.DefaultParameterSet != "" {
		opts = append(opts, fmt.Sprintf("DefaultParameterSetName='%s'", escapeSingle(c.DefaultParameterSet)))
	}
	if c.SupportsShouldProcess {
		opts = append(opts, "SupportsShouldProcess=$true")
	}
	return fmt.Sprintf("[CmdletBinding(%s)]", strings.Join(opts, ", "))
}

// ParamBlock renders the param(...) block, one attributed entry per
// parameter in declaration order.
func (c *CommandMetadata) ParamBlock() string {
	if len(c.Parameters) == 0 {
		return "param()"
	}
	var b strings.Builder
	b.WriteString("param(\n")
	for i, p := range c.Parameters {
		b.WriteString(p.render())
		if i < len(c.Parameters)-1 {
			b.WriteString(",\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(")")
	return b.String()
}

func (p *ParameterMetadata) render() string {
	var b strings.Builder
	var opts []string
	if p.Mandatory {
		opts = append(opts, "Mandatory=$true")
	}
	if p.Position >= 0 {
		opts = append(opts, fmt.Sprintf("Position=%d", p.Position))
	}
	if p.Pipeline {
		opts = append(opts, "ValueFromPipeline=$true")
	}
	if p.PipelineByName {
		opts = append(opts, "ValueFromPipelineByPropertyName=$true")
	}
	fmt.Fprintf(&b, "    [Parameter(%s)]\n", strings.Join(opts, ", "))
	if len(p.Aliases) > 0 {
		quoted := make([]string, len(p.Aliases))
		for i, a := range p.Aliases {
			quoted[i] = "'" + escapeSingle(a) + "'"
		}
		fmt.Fprintf(&b, "    [Alias(%s)]\n", strings.Join(quoted, ", "))
	}
	switch {
	case p.Switch:
		fmt.Fprintf(&b, "    [switch] $%s", p.Name)
	case p.TypeName != "":
		fmt.Fprintf(&b, "    [%s] $%s", p.TypeName, p.Name)
	default:
		fmt.Fprintf(&b, "    $%s", p.Name)
	}
	return b.String()
}

// BeginBlock binds the target command into a steppable pipeline.
func (c *CommandMetadata) BeginBlock() string {
	return fmt.Sprintf(`begin {
    $wrappedCmd = Get-Command -Name '%s'
    $scriptCmd = { & $wrappedCmd @PSBoundParameters }
    $steppablePipeline = $scriptCmd.GetSteppablePipeline($myInvocation.CommandOrigin)
    $steppablePipeline.Begin($PSCmdlet)
}`, escapeSingle(c.Name))
}

// ProcessBlock streams pipeline input through the bound pipeline.
func (c *CommandMetadata) ProcessBlock() string {
	return `process {
    $steppablePipeline.Process($_)
}`
}

// EndBlock tears the bound pipeline down.
func (c *CommandMetadata) EndBlock() string {
	return `end {
    $steppablePipeline.End()
}`
}

func escapeSingle(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
