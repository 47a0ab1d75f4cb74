package authz

import "testing"

func TestParseConditionEmptyAlwaysPasses(t *testing.T) {
	for _, raw := range [][]byte{nil, {}, []byte(`{}`)} {
		cond := ParseCondition(raw)
		if !cond.Match(Actor{}, Resource{IsArchived: true}) {
			t.Fatalf("empty condition must always pass")
		}
	}
}

func TestParseConditionMalformedDegradesToPass(t *testing.T) {
	cond := ParseCondition([]byte(`{not json`))
	if !cond.Match(Actor{}, Resource{}) {
		t.Fatalf("malformed condition must degrade to always-pass")
	}
}

func TestParseConditionUnknownKeysIgnored(t *testing.T) {
	cond := ParseCondition([]byte(`{"resource.colour":"blue","user.department.code":"eng"}`))
	if !cond.Match(Actor{DepartmentCode: "eng"}, Resource{}) {
		t.Fatalf("unknown keys must not affect matching")
	}
}

func TestParseConditionWrongValueTypeFailsClosed(t *testing.T) {
	cond := ParseCondition([]byte(`{"resource.is_archived":"true"}`))
	if cond.Match(Actor{}, Resource{IsArchived: false}) {
		t.Fatalf("wrong-typed predicate must never match")
	}
	if cond.Match(Actor{}, Resource{IsArchived: true}) {
		t.Fatalf("wrong-typed predicate must never match")
	}
}

func TestArchivedPredicate(t *testing.T) {
	cond := ParseCondition([]byte(`{"resource.is_archived":false}`))
	if !cond.Match(Actor{}, Resource{IsArchived: false}) {
		t.Fatalf("expected live resource to match")
	}
	if cond.Match(Actor{}, Resource{IsArchived: true}) {
		t.Fatalf("expected archived resource to fail")
	}
}

func TestDepartmentCodePredicateFailsWithoutDepartment(t *testing.T) {
	cond := ParseCondition([]byte(`{"user.department.code":"eng"}`))
	if cond.Match(Actor{}, Resource{}) {
		t.Fatalf("actor without department must fail the predicate")
	}
}

func TestConditionIsConjunction(t *testing.T) {
	cond := ParseCondition([]byte(`{"user.department.code":"eng","resource.is_archived":false}`))
	actor := Actor{DepartmentCode: "eng"}
	if !cond.Match(actor, Resource{IsArchived: false}) {
		t.Fatalf("expected both predicates to pass")
	}
	if cond.Match(actor, Resource{IsArchived: true}) {
		t.Fatalf("one failing predicate must fail the conjunction")
	}
}
