// Package typesfile loads declarative type-extension documents into
// TypeData records. Two syntaxes feed the same record builder: the XML
// dialect (a Types root of Type entries) and a TOML form for hand-written
// per-project files. Loading is tolerant: a malformed entry produces one
// line-numbered diagnostic and processing continues, so a partially
// malformed document still yields a usable set of records.
package typesfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/facet/ets"
)

var log = commonlog.GetLogger("facet.typesfile")

// Options supplies the collaborators declarative members resolve against.
type Options struct {
	// Compiler turns script blocks into callables. Script members in a
	// document are dropped with a diagnostic when nil.
	Compiler ets.ScriptCompiler
	// Code resolves CodeReference entries. Code members are dropped with
	// a diagnostic when nil.
	Code *ets.CodeRegistry
	// Converters and Adapters instantiate TypeConverter/TypeAdapter
	// entries by registered name, since Go cannot construct a type from a
	// string.
	Converters map[string]func() ets.Converter
	Adapters   map[string]func() ets.Adapter
}

// Load reads a types file, dispatching on extension: ".toml" loads the
// TOML form, everything else the XML dialect.
func Load(path string, opts Options) ([]*ets.TypeData, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	name := filepath.Base(path)
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return ParseTOML(name, data, opts)
	}
	return ParseXML(name, data, opts)
}

// Apply feeds records through the table's Add path, collecting per-record
// problems alongside the parser diagnostics. When strict is set, any
// diagnostic at all aggregates into the returned LoadError; otherwise the
// error only reflects a complete failure to apply.
func Apply(table *ets.TypeTable, records []*ets.TypeData, diags []string, strict bool) error {
	before := len(table.Diagnostics())
	problems := append([]string(nil), diags...)

	for _, td := range records {
		if err := table.Add(td); err != nil {
			if le, ok := err.(*ets.LoadError); ok {
				problems = append(problems, le.Problems...)
			} else {
				return err
			}
		}
	}
	if tableDiags := table.Diagnostics(); len(tableDiags) > before {
		problems = append(problems, tableDiags[before:]...)
	}

	for _, p := range problems {
		log.Warningf("%s", p)
	}
	if strict && len(problems) > 0 {
		return &ets.LoadError{Problems: problems}
	}
	return nil
}
