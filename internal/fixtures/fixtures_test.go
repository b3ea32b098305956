package fixtures

import (
	"context"
	"testing"
	"time"

	"github.com/RaikyD/merch-pickup-service/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrdersAreValid(t *testing.T) {
	now := time.Now().UTC()
	for _, o := range Orders(now) {
		o := o
		o.Normalize()
		require.NoError(t, o.Validate(), o.OrderCode)
		assert.True(t, o.Total.Equal(o.ItemsTotal()), o.OrderCode)
	}
}

func TestSeedIsRepeatable(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	now := time.Now().UTC()

	n, err := Seed(ctx, repo, now)
	require.NoError(t, err)
	assert.Equal(t, len(Orders(now)), n)

	n, err = Seed(ctx, repo, now)
	require.NoError(t, err)
	assert.Zero(t, n)
}
