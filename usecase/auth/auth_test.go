package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/places/domain"
	"github.com/fastygo/places/internal/fakebackend/fbtest"
	"github.com/fastygo/places/usecase/auth"
)

func TestRegisterLoginLogout(t *testing.T) {
	env := fbtest.Start(t)
	uc := auth.New(env.Client.Auth, nil)
	ctx := context.Background()

	session, err := uc.Register(ctx, " traveler@example.com ", "secret1", "Traveler")
	require.NoError(t, err)
	assert.Equal(t, "Traveler", session.User.Username())

	user, err := uc.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "traveler@example.com", user.Email)

	require.NoError(t, uc.Logout(ctx))
	_, err = uc.CurrentUser(ctx)
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)

	session, err = uc.Login(ctx, "traveler@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.UserID())
}

func TestLoginWrongPassword(t *testing.T) {
	env := fbtest.Start(t)
	env.SignIn(t, "a@b.com")
	uc := auth.New(env.Client.Auth, nil)
	ctx := context.Background()
	before := env.Client.Auth.GetSession(ctx)

	_, err := uc.Login(ctx, "a@b.com", "wrong-password")
	require.Error(t, err)
	assert.Equal(t, before.AccessToken, env.Client.Auth.GetSession(ctx).AccessToken)
}

func TestRegisterValidation(t *testing.T) {
	env := fbtest.Start(t)
	uc := auth.New(env.Client.Auth, nil)

	_, err := uc.Register(context.Background(), "", "secret1", "x")
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
	assert.Zero(t, env.Server.RequestCount("/auth/v1/signup"))
}

func TestResetPassword(t *testing.T) {
	env := fbtest.Start(t)
	uc := auth.New(env.Client.Auth, nil)
	ctx := context.Background()

	assert.True(t, domain.IsDomainError(uc.ResetPassword(ctx, "  "), domain.ErrCodeInvalid))
	require.NoError(t, uc.ResetPassword(ctx, "lost@example.com"))
	assert.Equal(t, []string{"lost@example.com"}, env.Server.Recoveries())
}
