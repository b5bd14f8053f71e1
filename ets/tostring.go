package ets

import (
	"fmt"
	"reflect"
	"strings"
)

// ---------------------------------------------------------------------------
// String conversion
// ---------------------------------------------------------------------------

// ToString converts the wrapped value to its string form:
//
//  1. a cached deserialization-time string is returned verbatim, since
//     re-deriving may not reproduce the original literal form;
//  2. a brokered ToString member (instance or extended tier) is invoked;
//  3. a pure property bag renders as "@{name=value; ...}" without
//     evaluating script-backed properties;
//  4. an enumerable base joins its elements' string forms with the
//     runtime's output field separator;
//  5. otherwise the base's own native conversion applies.
//
// Operational failures surface as a ConversionError regardless of which
// strategy failed.
func (o *Object) ToString() (string, error) {
	return o.toString(true)
}

// String implements fmt.Stringer; conversion failures degrade to the
// native rendering of the base value.
func (o *Object) String() string {
	s, err := o.ToString()
	if err != nil {
		return fmt.Sprintf("%v", o.base)
	}
	return s
}

func (o *Object) toString(allowEnumeration bool) (string, error) {
	if o.hasToStringCache {
		return o.toStringCache, nil
	}

	if s, invoked, err := o.brokeredToString(); invoked {
		return s, err
	}

	if o.IsPropertyBag() {
		return o.bagString(), nil
	}

	if allowEnumeration {
		if s, ok, err := o.enumerationString(); err != nil {
			return "", err
		} else if ok {
			return s, nil
		}
	}

	return o.nativeString()
}

// brokeredToString invokes a ToString member found in the instance or
// extended tier. The adapted tier is deliberately excluded: a native
// ToString is the step-5 fallback, not a brokered override.
func (o *Object) brokeredToString() (string, bool, error) {
	var m Member
	if mc := o.instanceCollection(); mc != nil {
		m = mc.Lookup("ToString")
	}
	if m == nil {
		if tbl := o.typeTable(); tbl != nil {
			m = tbl.ConsolidatedMember(o.TypeNames(), "ToString")
		}
	}
	method, ok := m.(Method)
	if !ok {
		return "", false, nil
	}
	v, err := method.Invoke(o)
	if err != nil {
		return "", true, conversionError("brokered ToString", err)
	}
	return stringify(v), true, nil
}

// bagString renders a property bag. Script-backed properties are not
// evaluated here: display formatting must not trigger side effects, so
// they render as their member kind instead.
func (o *Object) bagString() string {
	var b strings.Builder
	b.WriteString("@{")
	first := true
	for _, p := range o.Properties() {
		if p.Hidden() {
			continue
		}
		if !first {
			b.WriteString("; ")
		}
		first = false
		b.WriteString(p.Name())
		b.WriteByte('=')
		if p.Kind() == KindScriptProperty {
			b.WriteString(p.Kind().String())
			continue
		}
		v, err := p.Get(o)
		if err != nil {
			b.WriteString(p.Kind().String())
			continue
		}
		b.WriteString(stringify(v))
	}
	b.WriteString("}")
	return b.String()
}

// enumerationString joins an enumerable base's elements. Returns ok=false
// when the base is not enumerable.
func (o *Object) enumerationString() (string, bool, error) {
	rv := reflect.ValueOf(o.base)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
	default:
		return "", false, nil
	}
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		// []byte stays with the native conversion.
		return "", false, nil
	}

	sep := " "
	if o.rt != nil {
		sep = o.rt.OutputFieldSeparator()
	}

	parts := make([]string, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		elem := rv.Index(i).Interface()
		// Elements convert non-re-entrantly: a nested enumerable falls
		// through to its native rendering instead of recursing.
		s, err := o.rt.Wrap(elem).toString(false)
		if err != nil {
			return "", true, err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, sep), true, nil
}

// nativeString is the final fallback: the base's own conversion.
func (o *Object) nativeString() (s string, err error) {
	defer func() {
		if r := recover(); r != nil {
			s = ""
			err = conversionError("native ToString", fmt.Errorf("%v", r))
		}
	}()
	if str, ok := o.base.(fmt.Stringer); ok {
		return str.String(), nil
	}
	if e, ok := o.base.(error); ok {
		return e.Error(), nil
	}
	return fmt.Sprintf("%v", o.base), nil
}
