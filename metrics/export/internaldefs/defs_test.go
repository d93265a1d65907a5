package internaldefs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCounterNamesAreUniqueAndSuffixed(t *testing.T) {
	seen := make(map[string]bool)
	for _, def := range CounterDefs {
		require.True(t, strings.HasPrefix(def.Name, "gothrottle_"), def.Name)
		require.True(t, strings.HasSuffix(def.Name, "_total"), def.Name)
		require.False(t, seen[def.Name], "duplicate %s", def.Name)
		seen[def.Name] = true
	}
	require.Len(t, HistogramBoundSuffix, len(HistogramBounds))
}

func TestBucketHelpers(t *testing.T) {
	norm := NormalizeBuckets([]uint64{1, 2, 3})
	require.Equal(t, [8]uint64{1, 2, 3}, norm)

	require.Equal(t, [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}, CumulativeBuckets(norm))

	long := NormalizeBuckets([]uint64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1})
	require.Equal(t, uint64(8), CumulativeBuckets(long)[7])
}
