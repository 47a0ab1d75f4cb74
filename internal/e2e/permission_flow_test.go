package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/bastion-authz/bastion/internal/auth"
	"github.com/bastion-authz/bastion/internal/authz"
	"github.com/bastion-authz/bastion/internal/resources"
	"github.com/bastion-authz/bastion/internal/shared"
	"github.com/bastion-authz/bastion/internal/token"
	_ "github.com/bastion-authz/bastion/testing"
)

// memStore backs the whole stack in memory: accounts, resources, role data
// and personal overrides, honouring the same contracts as the SQL layer.
type memStore struct {
	accounts   map[uuid.UUID]*auth.Account
	items      map[uuid.UUID]resources.Resource
	categories map[string]resources.Category
	overrides  []authz.Override
	nextID     int64
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[uuid.UUID]*auth.Account),
		items:    make(map[uuid.UUID]resources.Resource),
		categories: map[string]resources.Category{
			"document": {ID: 1, Code: "document", Name: "Documents"},
		},
	}
}

func (s *memStore) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	for _, a := range s.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *memStore) FindByID(ctx context.Context, id uuid.UUID) (*auth.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return a, nil
}

func (s *memStore) CreateAccount(ctx context.Context, account auth.Account, defaultRoleCode string) (uuid.UUID, error) {
	account.ID = uuid.New()
	account.IsActive = true
	s.accounts[account.ID] = &account
	return account.ID, nil
}

func (s *memStore) TouchLastLogin(ctx context.Context, id uuid.UUID) error { return nil }

func (s *memStore) ListCategories(ctx context.Context) ([]resources.Category, error) {
	out := make([]resources.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	return out, nil
}

func (s *memStore) CategoryByCode(ctx context.Context, code string) (resources.Category, error) {
	c, ok := s.categories[code]
	if !ok {
		return resources.Category{}, shared.ErrNotFound
	}
	return c, nil
}

func (s *memStore) ListResources(ctx context.Context, includeArchived bool) ([]resources.Resource, error) {
	var out []resources.Resource
	for _, res := range s.items {
		if res.IsArchived && !includeArchived {
			continue
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *memStore) GetResource(ctx context.Context, id uuid.UUID) (resources.Resource, error) {
	res, ok := s.items[id]
	if !ok {
		return resources.Resource{}, shared.ErrNotFound
	}
	return res, nil
}

func (s *memStore) InsertResource(ctx context.Context, res resources.Resource) (resources.Resource, error) {
	res.ID = uuid.New()
	res.CategoryCode = "document"
	res.CreatedAt = time.Now()
	res.UpdatedAt = res.CreatedAt
	s.items[res.ID] = res
	return res, nil
}

func (s *memStore) UpdateResource(ctx context.Context, res resources.Resource) error {
	if _, ok := s.items[res.ID]; !ok {
		return shared.ErrNotFound
	}
	s.items[res.ID] = res
	return nil
}

func (s *memStore) ArchiveResource(ctx context.Context, id uuid.UUID) error {
	res, ok := s.items[id]
	if !ok || res.IsArchived {
		return shared.ErrNotFound
	}
	res.IsArchived = true
	s.items[id] = res
	return nil
}

func (s *memStore) DirectRoles(ctx context.Context, userID uuid.UUID) ([]authz.Role, error) {
	return nil, nil
}

func (s *memStore) RoleByID(ctx context.Context, id int64) (authz.Role, bool, error) {
	return authz.Role{}, false, nil
}

func (s *memStore) GrantsFor(ctx context.Context, roleID, categoryID int64, action authz.Action) ([]authz.Grant, error) {
	return nil, nil
}

func (s *memStore) EffectiveOverride(ctx context.Context, userID, resourceID uuid.UUID, action authz.Action) (*authz.Override, error) {
	var best *authz.Override
	for i := range s.overrides {
		o := s.overrides[i]
		if o.UserID != userID || o.ResourceID != resourceID || o.Action != action {
			continue
		}
		if o.ExpiresAt != nil && !o.ExpiresAt.After(time.Now()) {
			continue
		}
		if best == nil || o.GrantedAt.After(best.GrantedAt) {
			best = &o
		}
	}
	return best, nil
}

func (s *memStore) InsertOverride(ctx context.Context, o authz.Override) error {
	s.nextID++
	o.ID = s.nextID
	s.overrides = append(s.overrides, o)
	return nil
}

func (s *memStore) DeleteOverride(ctx context.Context, userID, resourceID uuid.UUID, action authz.Action) (int64, error) {
	var kept []authz.Override
	var deleted int64
	for _, o := range s.overrides {
		if o.UserID == userID && o.ResourceID == resourceID && o.Action == action {
			deleted++
			continue
		}
		kept = append(kept, o)
	}
	s.overrides = kept
	return deleted, nil
}

func (s *memStore) WasGrantedBy(ctx context.Context, granterID, userID, resourceID uuid.UUID, action authz.Action) (bool, error) {
	for _, o := range s.overrides {
		if o.GrantedBy != nil && *o.GrantedBy == granterID &&
			o.UserID == userID && o.ResourceID == resourceID && o.Action == action {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) addAccount(t *testing.T, email string) *auth.Account {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2-hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	account := &auth.Account{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		IsActive:     true,
	}
	s.accounts[account.ID] = account
	return account
}

func newStack(t *testing.T) (http.Handler, *memStore) {
	t.Helper()
	store := newMemStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	tokens := token.NewManager("e2e-secret", time.Hour)
	revoked := token.NewRevocationStore(redisClient)
	authService := auth.NewService(store)
	authHandler := auth.NewHandler(logger, authService, tokens, revoked)
	middleware := auth.NewMiddleware(logger, tokens, revoked, authService)

	engine := authz.NewEngine(store, nil, logger)
	permCache := authz.NewCache(redisClient, 5*time.Minute)
	decider := authz.NewService(engine, permCache, logger)
	overrides := authz.NewOverrideService(store, decider, permCache, logger)

	resourceService := resources.NewService(store, decider, permCache, logger)
	resourceHandler := resources.NewHandler(logger, resourceService)
	permissionHandler := authz.NewHandler(logger, overrides, decider, resourceService)

	router := chi.NewRouter()
	router.Route("/auth", func(r chi.Router) {
		authHandler.MountPublicRoutes(r)
	})
	router.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate)
		r.Route("/resources", resourceHandler.MountRoutes)
		r.Route("/permissions", permissionHandler.MountRoutes)
	})
	return router, store
}

func login(t *testing.T, router http.Handler, email string) string {
	t.Helper()
	res := request(t, router, http.MethodPost, "/auth/login", map[string]any{
		"email":    email,
		"password": "hunter2-hunter2",
	}, "")
	if res.Code != http.StatusOK {
		t.Fatalf("login %s: status %d: %s", email, res.Code, res.Body.String())
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return out.AccessToken
}

func request(t *testing.T, router http.Handler, method, path string, body any, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestOverrideGrantFlow(t *testing.T) {
	router, store := newStack(t)
	owner := store.addAccount(t, "owner@example.com")
	stranger := store.addAccount(t, "stranger@example.com")

	ownerToken := login(t, router, owner.Email)
	strangerToken := login(t, router, stranger.Email)

	// The owner creates a private resource.
	res := request(t, router, http.MethodPost, "/resources/", map[string]any{
		"category_code": "document",
		"kind":          "document",
		"name":          "battle-plan",
	}, ownerToken)
	if res.Code != http.StatusCreated {
		t.Fatalf("create resource: status %d: %s", res.Code, res.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created resource: %v", err)
	}

	// The stranger cannot read it.
	res = request(t, router, http.MethodGet, "/resources/"+created.ID, nil, strangerToken)
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 before the override, got %d", res.Code)
	}

	// A silent check agrees without recording anything.
	res = request(t, router, http.MethodGet, "/permissions/check?resource_id="+created.ID+"&action=read", nil, strangerToken)
	if res.Code != http.StatusOK {
		t.Fatalf("check: status %d: %s", res.Code, res.Body.String())
	}
	var verdict struct {
		Allowed bool   `json:"allowed"`
		Reason  string `json:"reason"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &verdict); err != nil {
		t.Fatalf("decode verdict: %v", err)
	}
	if verdict.Allowed || verdict.Reason != "denied" {
		t.Fatalf("expected a denial, got %+v", verdict)
	}

	// The owner grants a personal read override.
	res = request(t, router, http.MethodPost, "/permissions/grant", map[string]any{
		"user_id":     stranger.ID.String(),
		"resource_id": created.ID,
		"action":      "read",
	}, ownerToken)
	if res.Code != http.StatusCreated {
		t.Fatalf("grant: status %d: %s", res.Code, res.Body.String())
	}

	// The stranger can now read, and the cached verdict was invalidated.
	res = request(t, router, http.MethodGet, "/resources/"+created.ID, nil, strangerToken)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 after the override, got %d: %s", res.Code, res.Body.String())
	}

	// Revoking closes access again.
	res = request(t, router, http.MethodPost, "/permissions/revoke", map[string]any{
		"user_id":     stranger.ID.String(),
		"resource_id": created.ID,
		"action":      "read",
	}, ownerToken)
	if res.Code != http.StatusOK {
		t.Fatalf("revoke: status %d: %s", res.Code, res.Body.String())
	}
	res = request(t, router, http.MethodGet, "/resources/"+created.ID, nil, strangerToken)
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 after the revoke, got %d", res.Code)
	}

	// The stranger cannot grant on a resource they do not own.
	res = request(t, router, http.MethodPost, "/permissions/grant", map[string]any{
		"user_id":     stranger.ID.String(),
		"resource_id": created.ID,
		"action":      "update",
	}, strangerToken)
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a non-owner grant, got %d", res.Code)
	}
}
