package ets

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// MemberCollection: ordered, case-insensitive member map
// ---------------------------------------------------------------------------

// MemberCollection holds members keyed case-insensitively by name while
// preserving insertion order for enumeration. It is not goroutine-safe;
// owners guard it.
type MemberCollection struct {
	order []string
	byKey map[string]Member
}

// NewMemberCollection creates an empty collection.
func NewMemberCollection() *MemberCollection {
	return &MemberCollection{byKey: make(map[string]Member)}
}

func memberKey(name string) string { return strings.ToLower(name) }

// Add inserts a member, failing on a duplicate name.
func (c *MemberCollection) Add(m Member) error {
	if m == nil {
		return fmt.Errorf("cannot add nil member")
	}
	key := memberKey(m.Name())
	if _, ok := c.byKey[key]; ok {
		return fmt.Errorf("member %q already exists", m.Name())
	}
	c.byKey[key] = m
	c.order = append(c.order, key)
	return nil
}

// Replace inserts a member, overwriting any existing one with the same
// name while keeping its enumeration position.
func (c *MemberCollection) Replace(m Member) {
	key := memberKey(m.Name())
	if _, ok := c.byKey[key]; !ok {
		c.order = append(c.order, key)
	}
	c.byKey[key] = m
}

// Lookup finds a member by name, case-insensitively. Absence returns nil;
// it is not an error.
func (c *MemberCollection) Lookup(name string) Member {
	if c == nil {
		return nil
	}
	return c.byKey[memberKey(name)]
}

// Remove deletes a member by name. Returns false if it was not present.
func (c *MemberCollection) Remove(name string) bool {
	key := memberKey(name)
	if _, ok := c.byKey[key]; !ok {
		return false
	}
	delete(c.byKey, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of members.
func (c *MemberCollection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.byKey)
}

// Members returns all members in insertion order.
func (c *MemberCollection) Members() []Member {
	if c == nil {
		return nil
	}
	result := make([]Member, 0, len(c.order))
	for _, key := range c.order {
		result = append(result, c.byKey[key])
	}
	return result
}

// First returns the first member (in insertion order) matching pred, or nil.
func (c *MemberCollection) First(pred func(Member) bool) Member {
	if c == nil {
		return nil
	}
	for _, key := range c.order {
		if m := c.byKey[key]; pred(m) {
			return m
		}
	}
	return nil
}

// Copy returns a deep copy: every member is copied via Member.Copy.
func (c *MemberCollection) Copy() *MemberCollection {
	out := NewMemberCollection()
	if c == nil {
		return out
	}
	for _, key := range c.order {
		out.Replace(c.byKey[key].Copy())
	}
	return out
}
