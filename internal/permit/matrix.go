package permit

import (
	"encoding/json"
)

// ActionSet is the set of actions a role holds on one resource slice.
type ActionSet map[Action]struct{}

// NewActionSet builds a set from the given actions.
func NewActionSet(actions ...Action) ActionSet {
	set := make(ActionSet, len(actions))
	for _, a := range actions {
		set[a] = struct{}{}
	}
	return set
}

// Has reports membership.
func (s ActionSet) Has(a Action) bool {
	_, ok := s[a]
	return ok
}

// List returns the members in canonical action order.
func (s ActionSet) List() []Action {
	out := make([]Action, 0, len(s))
	for _, a := range Actions() {
		if s.Has(a) {
			out = append(out, a)
		}
	}
	return out
}

func (s ActionSet) copy() ActionSet {
	dup := make(ActionSet, len(s))
	for a := range s {
		dup[a] = struct{}{}
	}
	return dup
}

// MarshalJSON renders the set as an array in canonical action order.
func (s ActionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

// Grant holds the allowed actions for one resource under one role. Exactly
// one of Actions or Sub is populated, matching the flat/nested resource
// split: dispatch happens on which side is set, not on a type per resource.
type Grant struct {
	Actions ActionSet                 `json:"actions,omitempty"`
	Sub     map[SubResource]ActionSet `json:"subResources,omitempty"`
}

func (g Grant) copy() Grant {
	dup := Grant{}
	if g.Actions != nil {
		dup.Actions = g.Actions.copy()
	}
	if g.Sub != nil {
		dup.Sub = make(map[SubResource]ActionSet, len(g.Sub))
		for sub, set := range g.Sub {
			dup.Sub[sub] = set.copy()
		}
	}
	return dup
}

// Matrix maps role and resource to the granted actions. It is treated as
// immutable once loaded; accessors that hand matrix data back to callers
// return deep copies.
type Matrix map[Role]map[Resource]Grant

// Allows reports whether the role holds the action on the resource,
// resolving the sub-resource level for nested resources. The caller is
// expected to have validated the sub-resource requirement already; a
// missing grant at any level is simply not allowed.
func (m Matrix) Allows(role Role, res Resource, action Action, sub SubResource) bool {
	grant, ok := m[role][res]
	if !ok {
		return false
	}
	if res.Nested() {
		return grant.Sub[sub].Has(action)
	}
	return grant.Actions.Has(action)
}

// RoleGrants returns a deep, mutation-safe copy of one role's grants. An
// unknown role yields an empty map.
func (m Matrix) RoleGrants(role Role) map[Resource]Grant {
	grants, ok := m[role]
	if !ok {
		return map[Resource]Grant{}
	}
	dup := make(map[Resource]Grant, len(grants))
	for res, grant := range grants {
		dup[res] = grant.copy()
	}
	return dup
}
