package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helporbit/helporbit/internal/db/models"
)

func TestOrganizationCreate_DerivesSlugAndMakesOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "Alice", "alice@example.com")

	org, err := env.svc.Organizations.Create(ctx, alice, CreateOrganizationInput{Name: "  Acme Support "})
	require.NoError(t, err)
	assert.Equal(t, "Acme Support", org.Name)
	assert.Equal(t, "acme-support", org.Slug)
	assert.False(t, org.IsPublic)
	assert.NotNil(t, org.Metadata)

	mine, err := env.svc.Organizations.ListMine(ctx, alice)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, models.RoleOwner, mine[0].Role)
	assert.Equal(t, org.ID, mine[0].OrganizationID)
}

func TestOrganizationCreate_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "Alice", "alice@example.com")

	tests := []struct {
		name  string
		in    CreateOrganizationInput
		field string
	}{
		{"missing name", CreateOrganizationInput{Slug: "acme"}, "name"},
		{"underscore in slug", CreateOrganizationInput{Name: "Acme", Slug: "acme_co"}, "slug"},
		{"slug too short", CreateOrganizationInput{Name: "Acme", Slug: "a"}, "slug"},
		{"name without slug characters", CreateOrganizationInput{Name: "!!!"}, "slug"},
		{"bad logo", CreateOrganizationInput{Name: "Acme", Logo: strPtr("not a url")}, "logo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Organizations.Create(ctx, alice, tt.in)
			assert.Contains(t, fieldErrors(t, err), tt.field)
			assert.Equal(t, CodeValidation, ErrorCode(err))
		})
	}
}

func TestOrganizationCreate_SlugNormalizedAndTaken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "Alice", "alice@example.com")
	bob := env.user(t, "Bob", "bob@example.com")

	org, err := env.svc.Organizations.Create(ctx, alice, CreateOrganizationInput{Name: "Acme", Slug: " ACME "})
	require.NoError(t, err)
	assert.Equal(t, "acme", org.Slug)

	_, err = env.svc.Organizations.Create(ctx, bob, CreateOrganizationInput{Name: "Other", Slug: "acme"})
	assert.ErrorIs(t, err, ErrSlugTaken)

	free, err := env.svc.Organizations.CheckSlug(ctx, "Acme")
	require.NoError(t, err)
	assert.False(t, free)
	free, err = env.svc.Organizations.CheckSlug(ctx, "acme-2")
	require.NoError(t, err)
	assert.True(t, free)
}

func TestOrganizationCreate_ConcurrentSameSlug(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const n = 8
	actors := make([]Actor, n)
	for i := range actors {
		actors[i] = env.user(t, fmt.Sprintf("User %d", i), fmt.Sprintf("user%d@example.com", i))
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range actors {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.Organizations.Create(ctx, actors[i], CreateOrganizationInput{Name: "Race", Slug: "race"})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrSlugTaken)
	}
	assert.Equal(t, 1, succeeded)
}

func TestOrganizationGet_Visibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "Alice", "alice@example.com")
	outsider := env.user(t, "Olga", "olga@example.com")
	org := env.org(t, alice, "private-co")

	view, err := env.svc.Organizations.Get(ctx, alice, "private-co")
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, view.Role)
	assert.Contains(t, view.Permissions, "organization:delete")

	_, err = env.svc.Organizations.Get(ctx, outsider, "private-co")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.svc.Organizations.Get(ctx, Actor{}, "private-co")
	assert.ErrorIs(t, err, ErrNotFound)

	public := true
	_, err = env.svc.Organizations.Update(ctx, alice, org.ID, UpdateOrganizationInput{IsPublic: &public})
	require.NoError(t, err)

	view, err = env.svc.Organizations.Get(ctx, outsider, "private-co")
	require.NoError(t, err)
	assert.Empty(t, view.Role)
	assert.Empty(t, view.Permissions)
}

func TestOrganizationUpdate_Permissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.user(t, "Owner", "owner@example.com")
	admin := env.user(t, "Admin", "admin@example.com")
	member := env.user(t, "Member", "member@example.com")
	org := env.org(t, owner, "acme")
	env.join(t, org, admin, models.RoleAdmin)
	env.join(t, org, member, models.RoleMember)

	name := "Acme Inc"
	updated, err := env.svc.Organizations.Update(ctx, admin, org.ID, UpdateOrganizationInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Acme Inc", updated.Name)

	public := true
	_, err = env.svc.Organizations.Update(ctx, admin, org.ID, UpdateOrganizationInput{IsPublic: &public})
	assert.ErrorIs(t, err, ErrPermission)

	_, err = env.svc.Organizations.Update(ctx, member, org.ID, UpdateOrganizationInput{Name: &name})
	assert.ErrorIs(t, err, ErrPermission)

	assert.ErrorIs(t, env.svc.Organizations.Delete(ctx, admin, org.ID), ErrPermission)
	require.NoError(t, env.svc.Organizations.Delete(ctx, owner, org.ID))
	_, err = env.svc.Organizations.Resolve(ctx, "acme")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOrganizationUpdate_SlugChange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.user(t, "Owner", "owner@example.com")
	org := env.org(t, owner, "acme")
	env.org(t, owner, "globex")

	taken := "globex"
	_, err := env.svc.Organizations.Update(ctx, owner, org.ID, UpdateOrganizationInput{Slug: &taken})
	assert.ErrorIs(t, err, ErrSlugTaken)

	same := "ACME"
	_, err = env.svc.Organizations.Update(ctx, owner, org.ID, UpdateOrganizationInput{Slug: &same})
	require.NoError(t, err)

	next := "acme-corp"
	updated, err := env.svc.Organizations.Update(ctx, owner, org.ID, UpdateOrganizationInput{Slug: &next})
	require.NoError(t, err)
	assert.Equal(t, "acme-corp", updated.Slug)

	_, err = env.svc.Organizations.Resolve(ctx, "acme")
	assert.ErrorIs(t, err, ErrNotFound)
	resolved, err := env.svc.Organizations.Resolve(ctx, "acme-corp")
	require.NoError(t, err)
	assert.Equal(t, org.ID, resolved.ID)
}

func TestOrganizationResolve_CacheInvalidatedOnUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.user(t, "Owner", "owner@example.com")
	org := env.org(t, owner, "acme")

	first, err := env.svc.Organizations.Resolve(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "Org acme", first.Name)

	name := "Renamed"
	_, err = env.svc.Organizations.Update(ctx, owner, org.ID, UpdateOrganizationInput{Name: &name})
	require.NoError(t, err)

	second, err := env.svc.Organizations.Resolve(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", second.Name)
}

func TestOrganizationSearch_OnlyPublic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.user(t, "Owner", "owner@example.com")

	_, err := env.svc.Organizations.Create(ctx, owner, CreateOrganizationInput{
		Name:     "Acme Public",
		Slug:     "acme-public",
		IsPublic: true,
		Metadata: models.OrganizationMetadata{"domain": "acme.io"},
	})
	require.NoError(t, err)
	_, err = env.svc.Organizations.Create(ctx, owner, CreateOrganizationInput{Name: "Acme Hidden", Slug: "acme-hidden"})
	require.NoError(t, err)

	found, err := env.svc.Organizations.Search(ctx, "acme", 0, 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "acme-public", found[0].Slug)

	byDomain, err := env.svc.Organizations.Search(ctx, "acme.io", 0, 0)
	require.NoError(t, err)
	assert.Len(t, byDomain, 1)
}

func TestOrganizationCreate_RequiresSignIn(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Organizations.Create(context.Background(), Actor{}, CreateOrganizationInput{Name: "Acme"})
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, CodeNeedsLogin, ErrorCode(err))
}

func strPtr(s string) *string { return &s }
