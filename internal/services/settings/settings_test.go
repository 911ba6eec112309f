// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package settings_test

import (
	"context"
	"testing"

	"codeberg.org/oliverandrich/mdn-accounts/internal/services/settings"
	"codeberg.org/oliverandrich/mdn-accounts/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_DefaultThenOverride(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	store := settings.NewStore(repo)
	ctx := context.Background()

	v, err := store.Get(ctx, settings.CommonReasonsToBanUsers)
	require.NoError(t, err)
	assert.Equal(t, settings.Defaults[settings.CommonReasonsToBanUsers], v)

	require.NoError(t, store.Set(ctx, settings.CommonReasonsToBanUsers, `["Trolling"]`))
	v, err = store.Get(ctx, settings.CommonReasonsToBanUsers)
	require.NoError(t, err)
	assert.Equal(t, `["Trolling"]`, v)

	require.NoError(t, store.Reset(ctx, settings.CommonReasonsToBanUsers))
	v, err = store.Get(ctx, settings.CommonReasonsToBanUsers)
	require.NoError(t, err)
	assert.Equal(t, settings.Defaults[settings.CommonReasonsToBanUsers], v)
}

func TestStore_UnknownKey(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	store := settings.NewStore(repo)

	err := store.Set(context.Background(), "NOPE", "1")
	assert.ErrorIs(t, err, settings.ErrUnknownKey)

	v, err := store.Get(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestKeys(t *testing.T) {
	assert.Contains(t, settings.Keys(), settings.CommonReasonsToBanUsers)
}
