package authz

// scopeMatches decides whether a grant's scope covers the (actor, resource)
// pair. DEPARTMENT requires both departments to be present and equal; a
// missing department on either side fails closed.
func scopeMatches(scope Scope, actor Actor, resource Resource) bool {
	switch scope {
	case ScopeAll:
		return true
	case ScopeOwn:
		return resource.OwnerID == actor.ID
	case ScopeDepartment:
		if actor.DepartmentID == nil || resource.OwnerDepartmentID == nil {
			return false
		}
		return *actor.DepartmentID == *resource.OwnerDepartmentID
	}
	return false
}
