package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sukritx/piyanutai/store"
)

func TestUserStore(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	user, err := createTestingUser(ctx, ts, "piyanut")
	require.NoError(t, err)
	require.Greater(t, user.ID, int32(0))

	byUsername, err := ts.GetUser(ctx, &store.FindUser{Username: &user.Username})
	require.NoError(t, err)
	require.NotNil(t, byUsername)
	require.Equal(t, user.ID, byUsername.ID)

	byID, err := ts.GetUser(ctx, &store.FindUser{ID: &user.ID})
	require.NoError(t, err)
	require.NotNil(t, byID)
	require.Equal(t, user.Username, byID.Username)

	missing := "nobody"
	none, err := ts.GetUser(ctx, &store.FindUser{Username: &missing})
	require.NoError(t, err)
	require.Nil(t, none)

	err = ts.DeleteUser(ctx, &store.DeleteUser{ID: user.ID})
	require.NoError(t, err)
	gone, err := ts.GetUser(ctx, &store.FindUser{ID: &user.ID})
	require.NoError(t, err)
	require.Nil(t, gone)
}
