package selection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hm(hour, minute int) time.Time {
	return time.Date(2022, 12, 24, hour, minute, 0, 0, time.UTC)
}

func TestPackMergesAdjacentRanges(t *testing.T) {
	s := New()
	require.NoError(t, s.Add(hm(12, 0), hm(13, 0)))
	require.NoError(t, s.Add(hm(13, 0), hm(14, 0)))

	assert.Equal(t, []Range{{Start: hm(12, 0), End: hm(14, 0)}}, s.Ranges())
}

func TestPackSortsAndMergesChains(t *testing.T) {
	s := New()
	s.AddHour(hm(15, 0))
	s.AddHour(hm(13, 0))
	s.AddHour(hm(20, 0))
	s.AddHour(hm(14, 0))

	assert.Equal(t, []Range{
		{Start: hm(13, 0), End: hm(16, 0)},
		{Start: hm(20, 0), End: hm(21, 0)},
	}, s.Ranges())
}

func TestPackMergesOverlaps(t *testing.T) {
	s := New()
	require.NoError(t, s.Add(hm(12, 0), hm(13, 30)))
	require.NoError(t, s.Add(hm(13, 0), hm(14, 0)))
	require.NoError(t, s.Add(hm(12, 15), hm(12, 45)))

	assert.Equal(t, []Range{{Start: hm(12, 0), End: hm(14, 0)}}, s.Ranges())
}

func TestIsSelectedIsHalfOpen(t *testing.T) {
	s := New()
	require.NoError(t, s.Add(hm(12, 0), hm(13, 0)))

	assert.True(t, s.IsSelected(hm(12, 0)))
	assert.True(t, s.IsSelected(hm(12, 30)))
	assert.False(t, s.IsSelected(hm(13, 0)))
	assert.False(t, s.IsSelected(hm(13, 30)))
	assert.False(t, s.IsSelected(hm(11, 59)))
}

func TestSameStartLastWriteWins(t *testing.T) {
	s := New()
	require.NoError(t, s.Add(hm(17, 0), hm(18, 0)))
	require.NoError(t, s.Add(hm(17, 0), hm(17, 30)))

	assert.Equal(t, []Range{{Start: hm(17, 0), End: hm(17, 30)}}, s.Ranges())
}

func TestAddRejectsInvertedRanges(t *testing.T) {
	s := New()
	assert.ErrorIs(t, s.Add(hm(13, 0), hm(12, 0)), ErrInvalidRange)
	assert.ErrorIs(t, s.Add(hm(13, 0), hm(13, 0)), ErrInvalidRange)
	assert.Equal(t, 0, s.Len())
}

func TestAllIsRestartable(t *testing.T) {
	s := New()
	s.AddHour(hm(10, 0))
	s.AddHour(hm(12, 0))

	for pass := 0; pass < 2; pass++ {
		var starts []time.Time
		for r := range s.All() {
			starts = append(starts, r.Start)
		}
		assert.Equal(t, []time.Time{hm(10, 0), hm(12, 0)}, starts)
	}

	count := 0
	for range s.All() {
		count++
		break
	}
	assert.Equal(t, 1, count)
}

func TestTimesNormalisedToUTC(t *testing.T) {
	helsinki := time.FixedZone("EET", 2*60*60)
	s := New()
	s.AddHour(time.Date(2022, 12, 24, 14, 0, 0, 0, helsinki))

	assert.True(t, s.IsSelected(hm(12, 30)))
	assert.Equal(t, time.UTC, s.Ranges()[0].Start.Location())
}

func TestHoursAndClear(t *testing.T) {
	s := New()
	s.AddHour(hm(1, 0))
	s.AddHour(hm(2, 0))
	s.AddHour(hm(5, 0))
	assert.InDelta(t, 3.0, s.Hours(), 1e-9)

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, "", s.String())
}
