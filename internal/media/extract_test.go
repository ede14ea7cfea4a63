package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTimeRangesEmpty(t *testing.T) {
	assert.Nil(t, ComputeTimeRanges(nil, 1.0, 0.5, 60))
}

func TestComputeTimeRangesSingleGroup(t *testing.T) {
	ranges := ComputeTimeRanges([]int{10}, 1.0, 0.5, 60)
	require.Len(t, ranges, 1)
	assert.InDelta(t, 9.5, ranges[0].StartSec, 0.001)
	assert.InDelta(t, 11.5, ranges[0].EndSec, 0.001)
}

func TestComputeTimeRangesMergesAdjacent(t *testing.T) {
	// Groups 10 and 11 overlap once padded by the margin.
	ranges := ComputeTimeRanges([]int{10, 11}, 1.0, 0.5, 60)
	require.Len(t, ranges, 1)
	assert.InDelta(t, 9.5, ranges[0].StartSec, 0.001)
	assert.InDelta(t, 12.5, ranges[0].EndSec, 0.001)
}

func TestComputeTimeRangesKeepsDistant(t *testing.T) {
	ranges := ComputeTimeRanges([]int{5, 40}, 1.0, 0.5, 60)
	require.Len(t, ranges, 2)
	assert.Less(t, ranges[0].EndSec, ranges[1].StartSec)
}

func TestComputeTimeRangesClampsToClip(t *testing.T) {
	ranges := ComputeTimeRanges([]int{0, 59}, 1.0, 2.0, 60)
	require.Len(t, ranges, 2)
	assert.InDelta(t, 0.0, ranges[0].StartSec, 0.001)
	assert.InDelta(t, 60.0, ranges[1].EndSec, 0.001)
}

func TestComputeTimeRangesUnsortedInput(t *testing.T) {
	ranges := ComputeTimeRanges([]int{40, 5, 41}, 1.0, 0.5, 60)
	require.Len(t, ranges, 2)
	assert.InDelta(t, 4.5, ranges[0].StartSec, 0.001)
	assert.InDelta(t, 42.5, ranges[1].EndSec, 0.001)
}

func TestTimeRangeDuration(t *testing.T) {
	assert.InDelta(t, 2.0, TimeRange{StartSec: 9.5, EndSec: 11.5}.Duration(), 0.001)
}
