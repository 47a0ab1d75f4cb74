package perf

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/bastion-authz/bastion/internal/authz"
	_ "github.com/bastion-authz/bastion/testing"
)

type benchRepo struct {
	roles  map[uuid.UUID][]authz.Role
	grants map[int64][]authz.Grant
}

func (r *benchRepo) DirectRoles(ctx context.Context, userID uuid.UUID) ([]authz.Role, error) {
	return r.roles[userID], nil
}

func (r *benchRepo) RoleByID(ctx context.Context, id int64) (authz.Role, bool, error) {
	return authz.Role{}, false, nil
}

func (r *benchRepo) GrantsFor(ctx context.Context, roleID, categoryID int64, action authz.Action) ([]authz.Grant, error) {
	var out []authz.Grant
	for _, g := range r.grants[roleID] {
		if g.CategoryID == categoryID && g.Action == action {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *benchRepo) EffectiveOverride(ctx context.Context, userID, resourceID uuid.UUID, action authz.Action) (*authz.Override, error) {
	return nil, nil
}

func benchFixture() (authz.Actor, authz.Resource, *benchRepo) {
	actor := authz.Actor{ID: uuid.New()}
	resource := authz.Resource{ID: uuid.New(), CategoryID: 1, OwnerID: uuid.New()}
	repo := &benchRepo{
		roles: map[uuid.UUID][]authz.Role{actor.ID: {
			{ID: 1, Code: "viewer", Priority: 10, IsActive: true},
			{ID: 2, Code: "editor", Priority: 50, IsActive: true},
		}},
		grants: map[int64][]authz.Grant{
			2: {{RoleID: 2, CategoryID: 1, Action: authz.ActionRead, Scope: authz.ScopeAll, Allowed: true}},
		},
	}
	return actor, resource, repo
}

func BenchmarkEngineProbe(b *testing.B) {
	actor, resource, repo := benchFixture()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := authz.NewEngine(repo, nil, logger)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Probe(ctx, actor, resource, authz.ActionRead); err != nil {
			b.Fatalf("probe: %v", err)
		}
	}
}

func BenchmarkServiceProbeCached(b *testing.B) {
	actor, resource, repo := benchFixture()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mr := miniredis.RunT(b)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := authz.NewCache(client, 5*time.Minute)
	service := authz.NewService(authz.NewEngine(repo, nil, logger), cache, logger)
	ctx := context.Background()

	// Warm the entry once so the loop measures the hit path.
	if _, err := service.Probe(ctx, actor, resource, authz.ActionRead); err != nil {
		b.Fatalf("warm probe: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := service.Probe(ctx, actor, resource, authz.ActionRead); err != nil {
			b.Fatalf("probe: %v", err)
		}
	}
}
