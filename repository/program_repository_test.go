package repository

import (
	"context"
	"testing"

	"loyaltycast/models"
	"loyaltycast/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgramRepository_GetByTenantAndWalletID(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewProgramRepository(testDB.DB)
	ctx := context.Background()

	program := testutil.CreateTestProgram("tenant-a", "wp-1")
	require.NoError(t, repo.Create(ctx, program))
	require.NotZero(t, program.ID)

	t.Run("found", func(t *testing.T) {
		got, err := repo.GetByTenantAndWalletID(ctx, "tenant-a", "wp-1")
		require.NoError(t, err)
		require.NotNil(t, got)

		assert.Equal(t, program.ID, got.ID)
		assert.Equal(t, models.ProtocolMembership, got.Protocol)
		assert.Equal(t, program.Tiers, got.Tiers)
		assert.Equal(t, program.Birthday, got.Birthday)
	})

	t.Run("other tenant cannot resolve it", func(t *testing.T) {
		got, err := repo.GetByTenantAndWalletID(ctx, "tenant-b", "wp-1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("same wallet id under another tenant is a different program", func(t *testing.T) {
		other := testutil.CreateTestProgram("tenant-b", "wp-1")
		require.NoError(t, repo.Create(ctx, other))

		got, err := repo.GetByTenantAndWalletID(ctx, "tenant-b", "wp-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, other.ID, got.ID)
		assert.NotEqual(t, program.ID, got.ID)
	})
}

func TestProgramRepository_Create_RejectsDescendingThresholds(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewProgramRepository(testDB.DB)
	program := testutil.CreateTestProgram("tenant-a", "wp-bad")
	program.Tiers.SilverMax = 100

	err := repo.Create(context.Background(), program)
	assert.Error(t, err)
}

func TestProgramRepository_ListBirthdayEnabled(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewProgramRepository(testDB.DB)
	ctx := context.Background()

	enabled := testutil.CreateTestProgram("tenant-a", "wp-on")
	disabled := testutil.CreateTestProgram("tenant-a", "wp-off")
	disabled.Birthday.Enabled = false
	coupon := testutil.CreateTestProgramWithProtocol("tenant-a", "wp-coupon", models.ProtocolCoupon)
	coupon.Birthday.Enabled = true

	for _, p := range []*models.Program{enabled, disabled, coupon} {
		require.NoError(t, repo.Create(ctx, p))
	}

	programs, err := repo.ListBirthdayEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, programs, 1)
	assert.Equal(t, enabled.ID, programs[0].ID)
}
