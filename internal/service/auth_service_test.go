package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"swapmarket/internal/models"
)

func register(t *testing.T, f *fixture, email string) AuthResult {
	t.Helper()
	result, err := f.auth.Register(context.Background(), RegisterInput{
		Name:     "Sam",
		Email:    email,
		Password: "correct horse",
	})
	require.NoError(t, err)
	return result
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, PointsExact)

	result := register(t, f, "Sam@Swap.test")
	require.Equal(t, "sam@swap.test", result.User.Email)
	require.Equal(t, models.UserRoleUser, result.User.Role)
	require.Zero(t, result.User.Points)
	require.NotEmpty(t, result.RefreshToken)

	user, claims, err := f.auth.Authenticate(ctx, result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, result.User.ID, user.ID)
	require.Equal(t, result.DeviceID, claims.DeviceID)

	_, err = f.auth.Register(ctx, RegisterInput{Name: "Sam", Email: "sam@swap.test", Password: "another pass"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.auth.Register(ctx, RegisterInput{Name: "Kim", Email: "kim@swap.test", Password: "short"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.auth.Register(ctx, RegisterInput{Name: "Kim", Email: "not-an-email", Password: "long enough"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestAdminEmailsGetAdminRole(t *testing.T) {
	f := newFixture(t, PointsExact)
	result := register(t, f, "root@swap.test")
	require.Equal(t, models.UserRoleAdmin, result.User.Role)
}

func TestLoginRefreshLogout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, PointsExact)
	registered := register(t, f, "sam@swap.test")

	_, err := f.auth.Login(ctx, LoginInput{Email: "sam@swap.test", Password: "wrong password"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.auth.Login(ctx, LoginInput{Email: "nobody@swap.test", Password: "correct horse"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	login, err := f.auth.Login(ctx, LoginInput{Email: "SAM@swap.test", Password: "correct horse", DeviceName: "phone"})
	require.NoError(t, err)
	require.Equal(t, registered.User.ID, login.User.ID)

	refreshed, err := f.auth.Refresh(ctx, RefreshInput{
		UserID:       login.User.ID,
		DeviceID:     login.DeviceID,
		RefreshToken: login.RefreshToken,
	})
	require.NoError(t, err)
	require.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	_, err = f.auth.Refresh(ctx, RefreshInput{
		UserID:       login.User.ID,
		DeviceID:     login.DeviceID,
		RefreshToken: login.RefreshToken,
	})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	sessions, err := f.auth.Sessions(ctx, login.User.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	signOut := RefreshInput{UserID: login.User.ID, DeviceID: login.DeviceID, RefreshToken: login.RefreshToken}
	require.ErrorIs(t, f.auth.SignOut(ctx, signOut), ErrInvalidCredentials)

	signOut.RefreshToken = refreshed.RefreshToken
	require.NoError(t, f.auth.SignOut(ctx, signOut))
	_, _, err = f.auth.Authenticate(ctx, refreshed.AccessToken)
	require.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, f.auth.RevokeDevice(ctx, registered.User.ID, registered.DeviceID))
	_, _, err = f.auth.Authenticate(ctx, registered.AccessToken)
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSessionLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, PointsExact)
	register(t, f, "sam@swap.test")

	for i := 0; i < 3; i++ {
		_, err := f.auth.Login(ctx, LoginInput{Email: "sam@swap.test", Password: "correct horse"})
		require.NoError(t, err)
	}

	user, err := f.store.Users().FindByEmail(ctx, "sam@swap.test")
	require.NoError(t, err)
	sessions, err := f.auth.Sessions(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
}
