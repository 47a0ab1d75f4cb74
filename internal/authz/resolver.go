package authz

import (
	"context"
	"sort"
)

// Resolver expands an actor's direct role memberships through parent links.
type Resolver struct {
	repo Repository
}

// NewResolver constructs a Resolver.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Expand walks the role hierarchy breadth-first from the actor's non-expired
// direct memberships. A visited set keeps the walk finite even when parent
// links form a cycle, and each role appears at most once in the result. An
// inactive parent terminates its branch without invalidating the child.
func (r *Resolver) Expand(ctx context.Context, actor Actor) ([]Role, error) {
	direct, err := r.repo.DirectRoles(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	var expanded []Role
	visited := make(map[int64]struct{}, len(direct))
	queue := append([]Role(nil), direct...)

	for len(queue) > 0 {
		role := queue[0]
		queue = queue[1:]

		if _, seen := visited[role.ID]; seen {
			continue
		}
		visited[role.ID] = struct{}{}
		expanded = append(expanded, role)

		if role.ParentID == nil {
			continue
		}
		parent, found, err := r.repo.RoleByID(ctx, *role.ParentID)
		if err != nil {
			return nil, err
		}
		if !found || !parent.IsActive {
			continue
		}
		queue = append(queue, parent)
	}

	return expanded, nil
}

// sortByPriority orders roles by priority descending so higher-priority
// roles' grants are evaluated first. The sort is stable: roles sharing a
// priority keep their expansion order.
func sortByPriority(roles []Role) {
	sort.SliceStable(roles, func(i, j int) bool {
		return roles[i].Priority > roles[j].Priority
	})
}
