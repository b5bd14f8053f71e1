package ets

import (
	"reflect"
)

// ---------------------------------------------------------------------------
// Wrapper copy
// ---------------------------------------------------------------------------

// Cloner is implemented by base values that can produce an independent
// deep copy of themselves.
type Cloner interface {
	Clone() any
}

// Copy shallow-clones the wrapper shell. The clone gets its own member
// views and a freshly resolved adapter pair. A property-bag base is
// replaced with a fresh sentinel (identity matters for equality); a base
// implementing Cloner is deep-copied; a non-pointer base is reboxed into
// an independent copy.
//
// Instance members and type-name overrides are not copied by reference:
// the clone re-resolves them lazily through the resurrection tables, so
// wrappers of the same identity-bearing base share one attached-member
// set. When the clone's resurrection key differs from the original's
// (fresh sentinel, cloned base, store-locally wrappers), the original's
// non-hidden instance members and type names are re-added one by one to
// give the clone an independent set.
func (o *Object) Copy() *Object {
	clone := &Object{
		rt:               o.rt,
		flags:            o.flags,
		toStringCache:    o.toStringCache,
		hasToStringCache: o.hasToStringCache,
		fallbackTable:    o.fallbackTable,
	}

	switch base := o.base.(type) {
	case *placeholderBase:
		clone.base = &placeholderBase{}
	case Cloner:
		clone.base = base.Clone()
	default:
		clone.base = reboxValue(o.base)
	}

	origKey, origHasKey := resurrectionKey(o.base)
	cloneKey, cloneHasKey := resurrectionKey(clone.base)
	sharedIdentity := origHasKey && cloneHasKey && origKey == cloneKey &&
		o.flags&flagStoreLocally == 0

	if !sharedIdentity {
		if mc := o.instanceCollection(); mc != nil && mc.Len() > 0 {
			for _, m := range mc.Members() {
				if m.Hidden() {
					continue
				}
				clone.ensureInstanceMembers().Replace(m.Copy())
			}
		}
		o.mu.Lock()
		names := o.typeNames
		o.mu.Unlock()
		if names != nil {
			clone.mu.Lock()
			clone.typeNames = names.Clone()
			clone.mu.Unlock()
		}
	}
	return clone
}

// reboxValue forces an independent copy of a non-pointer base by round-
// tripping it through a fresh allocation. Pointer-kinded bases keep their
// reference: the copy is a shallow clone.
func reboxValue(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		return v
	}
	boxed := reflect.New(rv.Type())
	boxed.Elem().Set(rv)
	return boxed.Elem().Interface()
}
