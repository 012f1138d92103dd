package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/eventhub/internal/apperr"
	"github.com/iliyamo/eventhub/internal/model"
	"github.com/iliyamo/eventhub/internal/repository"
)

func TestUserServiceSetStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "a@x.com", "d1")
	us := NewUserService(f.users, f.ledger, f.clock)

	_, err := us.SetStatus(ctx, reg.User.ID, "frozen")
	requireKind(t, err, apperr.KindValidation, "invalid status")
	_, err = us.SetStatus(ctx, "missing", "ACTIVE")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	sum, err := us.SetStatus(ctx, reg.User.ID, "disabled")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, sum.ID)
	assert.Equal(t, model.TokenRevoked, f.state(t, reg.RefreshToken))

	_, err = f.svc.Login(ctx, "a@x.com", "secret1", "d1", "")
	requireKind(t, err, apperr.KindUnauthorized, msgInvalidCredentials)

	_, err = us.SetStatus(ctx, reg.User.ID, "ACTIVE")
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, "a@x.com", "secret1", "d1", "")
	require.NoError(t, err)
}

func TestUserServiceSetRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "a@x.com", "d1")
	us := NewUserService(f.users, f.ledger, f.clock)

	_, err := us.SetRole(ctx, reg.User.ID, "OWNER")
	requireKind(t, err, apperr.KindValidation, "invalid role")

	sum, err := us.SetRole(ctx, reg.User.ID, " admin ")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, sum.Role)

	login, err := f.svc.Login(ctx, "a@x.com", "secret1", "d1", "")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, login.User.Role)
}

func TestUserServiceDeleteUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin, err := f.svc.AdminPasscodeLogin(ctx, testPasscode, "d1", "")
	require.NoError(t, err)
	reg := f.register(t, "a@x.com", "d1")
	us := NewUserService(f.users, f.ledger, f.clock)

	assert.ErrorIs(t, us.DeleteUser(ctx, admin.User.ID, admin.User.ID), repository.ErrForbidden)
	assert.ErrorIs(t, us.DeleteUser(ctx, admin.User.ID, "missing"), repository.ErrNotFound)

	require.NoError(t, us.DeleteUser(ctx, admin.User.ID, reg.User.ID))
	assert.Equal(t, model.TokenRevoked, f.state(t, reg.RefreshToken))
	_, err = f.users.FindByID(ctx, reg.User.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	list, err := us.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, admin.User.ID, list[0].ID)
}
