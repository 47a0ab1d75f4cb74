package authz

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestExpandDeduplicatesSharedAncestor(t *testing.T) {
	actor := Actor{ID: uuid.New()}
	parent := int64(3)
	repo := &memRepo{
		direct: map[uuid.UUID][]Role{actor.ID: {
			{ID: 1, Code: "a", Priority: 10, IsActive: true, ParentID: &parent},
			{ID: 2, Code: "b", Priority: 20, IsActive: true, ParentID: &parent},
		}},
		roles: map[int64]Role{
			3: {ID: 3, Code: "base", Priority: 1, IsActive: true},
		},
	}

	roles, err := NewResolver(repo).Expand(context.Background(), actor)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(roles) != 3 {
		t.Fatalf("expected 3 unique roles, got %d", len(roles))
	}
	seen := make(map[int64]int)
	for _, role := range roles {
		seen[role.ID]++
	}
	if seen[3] != 1 {
		t.Fatalf("shared ancestor must appear exactly once, got %d", seen[3])
	}
}

func TestExpandInactiveParentTerminatesBranch(t *testing.T) {
	actor := Actor{ID: uuid.New()}
	parent, grandparent := int64(2), int64(3)
	repo := &memRepo{
		direct: map[uuid.UUID][]Role{actor.ID: {
			{ID: 1, Code: "child", Priority: 10, IsActive: true, ParentID: &parent},
		}},
		roles: map[int64]Role{
			2: {ID: 2, Code: "inactive-parent", Priority: 20, IsActive: false, ParentID: &grandparent},
			3: {ID: 3, Code: "grandparent", Priority: 30, IsActive: true},
		},
	}

	roles, err := NewResolver(repo).Expand(context.Background(), actor)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(roles) != 1 || roles[0].ID != 1 {
		t.Fatalf("expected only the direct role, got %+v", roles)
	}
}

func TestExpandMissingParentIsNotAnError(t *testing.T) {
	actor := Actor{ID: uuid.New()}
	parent := int64(99)
	repo := &memRepo{
		direct: map[uuid.UUID][]Role{actor.ID: {
			{ID: 1, Code: "orphan", Priority: 10, IsActive: true, ParentID: &parent},
		}},
	}

	roles, err := NewResolver(repo).Expand(context.Background(), actor)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(roles) != 1 {
		t.Fatalf("expected the dangling parent to be skipped, got %+v", roles)
	}
}

func TestSortByPriorityIsStableDescending(t *testing.T) {
	roles := []Role{
		{ID: 1, Priority: 10},
		{ID: 2, Priority: 30},
		{ID: 3, Priority: 10},
		{ID: 4, Priority: 20},
	}
	sortByPriority(roles)

	wantOrder := []int64{2, 4, 1, 3}
	for i, want := range wantOrder {
		if roles[i].ID != want {
			t.Fatalf("position %d: expected role %d, got %d", i, want, roles[i].ID)
		}
	}
}
