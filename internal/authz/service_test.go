package authz

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestServiceMemoisesVerdicts(t *testing.T) {
	actor := Actor{ID: uuid.New()}
	resource := Resource{ID: uuid.New(), CategoryID: 7, OwnerID: uuid.New()}
	repo := &memRepo{
		direct: map[uuid.UUID][]Role{actor.ID: {
			{ID: 1, Code: "viewer", Priority: 10, IsActive: true},
		}},
		grants: []Grant{
			{RoleID: 1, CategoryID: 7, Action: ActionRead, Scope: ScopeAll, Allowed: true},
		},
	}

	cache, _ := newTestCache(t)
	service := NewService(NewEngine(repo, nil, testLogger()), cache, testLogger())
	ctx := context.Background()

	first, err := service.Probe(ctx, actor, resource, ActionRead)
	if err != nil {
		t.Fatalf("first probe: %v", err)
	}
	if !first.Allowed || first.Reason != ReasonRole {
		t.Fatalf("unexpected first decision %+v", first)
	}
	callsAfterFill := repo.grantCalls

	second, err := service.Probe(ctx, actor, resource, ActionRead)
	if err != nil {
		t.Fatalf("second probe: %v", err)
	}
	if second != first {
		t.Fatalf("cached decision differs: %+v vs %+v", second, first)
	}
	if repo.grantCalls != callsAfterFill {
		t.Fatalf("expected the second probe to be served from cache")
	}

	// A different action for the same pair is answered by the same entry.
	update, err := service.Probe(ctx, actor, resource, ActionUpdate)
	if err != nil {
		t.Fatalf("update probe: %v", err)
	}
	if update.Allowed {
		t.Fatalf("expected update to stay denied, got %+v", update)
	}
	if repo.grantCalls != callsAfterFill {
		t.Fatalf("expected no extra engine work for other actions on a hit")
	}
}

func TestServiceCachedAndDirectVerdictsAgree(t *testing.T) {
	actor := Actor{ID: uuid.New()}
	resource := Resource{ID: uuid.New(), CategoryID: 7, OwnerID: actor.ID}
	repo := &memRepo{}
	engine := NewEngine(repo, nil, testLogger())
	cache, _ := newTestCache(t)
	service := NewService(engine, cache, testLogger())
	ctx := context.Background()

	for _, action := range Actions {
		direct, err := engine.Probe(ctx, actor, resource, action)
		if err != nil {
			t.Fatalf("direct probe: %v", err)
		}
		cached, err := service.Probe(ctx, actor, resource, action)
		if err != nil {
			t.Fatalf("cached probe: %v", err)
		}
		if direct != cached {
			t.Fatalf("action %s: cached %+v differs from direct %+v", action, cached, direct)
		}
	}
}

func TestServiceDegradesWhenCacheIsDown(t *testing.T) {
	actor := Actor{ID: uuid.New()}
	resource := Resource{ID: uuid.New(), OwnerID: actor.ID}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, 5*time.Minute)
	mr.Close()

	service := NewService(NewEngine(&memRepo{}, nil, testLogger()), cache, testLogger())
	decision, err := service.Probe(context.Background(), actor, resource, ActionRead)
	if err != nil {
		t.Fatalf("probe with cache down: %v", err)
	}
	if !decision.Allowed || decision.Reason != ReasonOwner {
		t.Fatalf("expected the engine verdict despite cache failure, got %+v", decision)
	}
}
