package ets

import (
	"errors"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// TypeNameHierarchy: a value's ordered type-name chain with a cache key
// ---------------------------------------------------------------------------

// typeNameSeparator joins hierarchy names into the cache key. It contains
// NUL bytes, which cannot occur in a legal type name, so two different
// hierarchies can never collide on the same key. The exact sequence is an
// implementation detail of this process, not a wire format.
const typeNameSeparator = "\x00\x1f\x00"

// ErrReadOnlyTypeNames is returned when a shared hierarchy is mutated
// directly. Callers clone first.
var ErrReadOnlyTypeNames = errors.New("type name hierarchy is read-only; clone before mutating")

// TypeNameHierarchy is an ordered list of type names, most-specific first.
// Freshly constructed hierarchies are read-only and may be shared across
// wrappers; Clone yields a private mutable copy. Equality and hashing for
// cache purposes delegate entirely to Key.
type TypeNameHierarchy struct {
	names    []string
	key      string
	readOnly bool
}

// NewTypeNameHierarchy builds a read-only hierarchy from names. Every
// element must be non-blank.
func NewTypeNameHierarchy(names ...string) (*TypeNameHierarchy, error) {
	for i, n := range names {
		if err := validTypeName(n); err != nil {
			return nil, fmt.Errorf("type name %d: %w", i, err)
		}
	}
	h := &TypeNameHierarchy{
		names:    append([]string(nil), names...),
		readOnly: true,
	}
	h.recomputeKey()
	return h, nil
}

func validTypeName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("type name must not be empty")
	}
	if strings.Contains(name, "\x00") {
		return errors.New("type name must not contain NUL")
	}
	return nil
}

func (h *TypeNameHierarchy) recomputeKey() {
	h.key = strings.Join(h.names, typeNameSeparator)
}

// Key returns the cache key: names joined by the reserved separator.
// Two independently built hierarchies with the same names in the same
// order produce identical keys.
func (h *TypeNameHierarchy) Key() string {
	if h == nil {
		return ""
	}
	return h.key
}

// Names returns a copy of the name list, most-specific first.
func (h *TypeNameHierarchy) Names() []string {
	if h == nil {
		return nil
	}
	return append([]string(nil), h.names...)
}

// Len returns the number of names.
func (h *TypeNameHierarchy) Len() int {
	if h == nil {
		return 0
	}
	return len(h.names)
}

// At returns the name at position i.
func (h *TypeNameHierarchy) At(i int) string { return h.names[i] }

// ReadOnly reports whether the hierarchy rejects mutation.
func (h *TypeNameHierarchy) ReadOnly() bool { return h.readOnly }

// Equal compares two hierarchies by cache key.
func (h *TypeNameHierarchy) Equal(other *TypeNameHierarchy) bool {
	if h == nil || other == nil {
		return h == other
	}
	return h.key == other.key
}

// Clone returns a private mutable copy.
func (h *TypeNameHierarchy) Clone() *TypeNameHierarchy {
	c := &TypeNameHierarchy{names: append([]string(nil), h.names...)}
	c.recomputeKey()
	return c
}

// Add appends a name at the least-specific end.
func (h *TypeNameHierarchy) Add(name string) error {
	return h.Insert(len(h.names), name)
}

// Insert places a name at position i.
func (h *TypeNameHierarchy) Insert(i int, name string) error {
	if h.readOnly {
		return ErrReadOnlyTypeNames
	}
	if err := validTypeName(name); err != nil {
		return err
	}
	if i < 0 || i > len(h.names) {
		return fmt.Errorf("insert index %d out of range [0,%d]", i, len(h.names))
	}
	h.names = append(h.names, "")
	copy(h.names[i+1:], h.names[i:])
	h.names[i] = name
	h.recomputeKey()
	return nil
}

// Set replaces the name at position i.
func (h *TypeNameHierarchy) Set(i int, name string) error {
	if h.readOnly {
		return ErrReadOnlyTypeNames
	}
	if err := validTypeName(name); err != nil {
		return err
	}
	if i < 0 || i >= len(h.names) {
		return fmt.Errorf("index %d out of range [0,%d)", i, len(h.names))
	}
	h.names[i] = name
	h.recomputeKey()
	return nil
}

// RemoveAt deletes the name at position i.
func (h *TypeNameHierarchy) RemoveAt(i int) error {
	if h.readOnly {
		return ErrReadOnlyTypeNames
	}
	if i < 0 || i >= len(h.names) {
		return fmt.Errorf("index %d out of range [0,%d)", i, len(h.names))
	}
	h.names = append(h.names[:i], h.names[i+1:]...)
	h.recomputeKey()
	return nil
}

// Clear removes all names.
func (h *TypeNameHierarchy) Clear() error {
	if h.readOnly {
		return ErrReadOnlyTypeNames
	}
	h.names = h.names[:0]
	h.recomputeKey()
	return nil
}

// String renders the hierarchy for diagnostics.
func (h *TypeNameHierarchy) String() string {
	if h == nil {
		return "[]"
	}
	return "[" + strings.Join(h.names, ", ") + "]"
}
