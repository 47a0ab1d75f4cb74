package authz

import "encoding/json"

// Condition is a parsed grant predicate: a conjunction of attribute checks.
// An empty Condition always passes. Raw payloads are parsed once at grant
// load, not per check.
type Condition struct {
	preds []predicate
}

type predicate interface {
	match(actor Actor, resource Resource) bool
}

type archivedEquals struct {
	want bool
}

func (p archivedEquals) match(_ Actor, resource Resource) bool {
	return resource.IsArchived == p.want
}

type departmentCodeEquals struct {
	want string
}

func (p departmentCodeEquals) match(actor Actor, _ Resource) bool {
	if actor.DepartmentCode == "" {
		return false
	}
	return actor.DepartmentCode == p.want
}

// neverMatches pins a recognized key whose stored value has the wrong type.
// The comparison can never hold, so the grant carrying it never applies.
type neverMatches struct{}

func (neverMatches) match(Actor, Resource) bool {
	return false
}

// ParseCondition turns a stored condition payload into a Condition. Unknown
// keys are ignored and an unparsable payload degrades to an always-pass
// condition, matching the permissive default of the stored format. A known
// key with a wrong-typed value fails closed: the predicate never matches.
func ParseCondition(raw []byte) Condition {
	if len(raw) == 0 {
		return Condition{}
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Condition{}
	}

	var preds []predicate
	for key, value := range fields {
		switch key {
		case "resource.is_archived":
			want, ok := value.(bool)
			if !ok {
				preds = append(preds, neverMatches{})
				continue
			}
			preds = append(preds, archivedEquals{want: want})
		case "user.department.code":
			want, ok := value.(string)
			if !ok {
				preds = append(preds, neverMatches{})
				continue
			}
			preds = append(preds, departmentCodeEquals{want: want})
		}
	}
	return Condition{preds: preds}
}

// Match evaluates the conjunction against the actor and resource.
func (c Condition) Match(actor Actor, resource Resource) bool {
	for _, p := range c.preds {
		if !p.match(actor, resource) {
			return false
		}
	}
	return true
}
