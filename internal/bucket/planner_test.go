package bucket_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dig-network/digcap/internal/bucket"
)

func TestPlan_ZeroLength(t *testing.T) {
	b, k := bucket.Plan(0)
	require.Equal(t, bucket.Min, b)
	require.Equal(t, 1, k)
}

func TestPlan_ExactBucketBoundary(t *testing.T) {
	for _, size := range bucket.Sizes {
		b, k := bucket.Plan(size)
		require.Equal(t, size, b)
		require.Equal(t, 1, k)
	}
}

func TestPlan_JustOverBoundaryPicksNextBucket(t *testing.T) {
	b, k := bucket.Plan(bucket.Sizes[0] + 1)
	require.Equal(t, bucket.Sizes[1], b)
	require.Equal(t, 1, k)
}

func TestPlan_ExceedsMaxUsesMultipleChunks(t *testing.T) {
	b, k := bucket.Plan(bucket.Max + 1)
	require.Equal(t, bucket.Max, b)
	require.Equal(t, 2, k)
}

func TestPlan_NegativeLengthClampedToZero(t *testing.T) {
	b, k := bucket.Plan(-5)
	require.Equal(t, bucket.Min, b)
	require.Equal(t, 1, k)
}

func TestPlan_IsDeterministic(t *testing.T) {
	for _, n := range []int64{0, 1, 262144, 262145, 999999999, bucket.Max, bucket.Max * 3} {
		b1, k1 := bucket.Plan(n)
		b2, k2 := bucket.Plan(n)
		require.Equal(t, b1, b2)
		require.Equal(t, k1, k2)
	}
}

func TestIsValid(t *testing.T) {
	require.True(t, bucket.IsValid(262144))
	require.True(t, bucket.IsValid(bucket.Max))
	require.False(t, bucket.IsValid(262145))
	require.False(t, bucket.IsValid(0))
}

func TestList_ReturnsCopy(t *testing.T) {
	list := bucket.List()
	require.Len(t, list, len(bucket.Sizes))

	list[0] = -1
	require.NotEqual(t, list[0], bucket.Sizes[0])
}
