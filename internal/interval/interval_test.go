package interval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 11, 3, hour, minute, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	base := New(at(10, 0), at(11, 0))

	tests := []struct {
		name  string
		other Interval
		want  bool
	}{
		{"partial overlap at end", New(at(10, 30), at(11, 30)), true},
		{"partial overlap at start", New(at(9, 30), at(10, 30)), true},
		{"contained", New(at(10, 15), at(10, 45)), true},
		{"containing", New(at(9, 0), at(12, 0)), true},
		{"identical", base, true},
		{"touching after", New(at(11, 0), at(12, 0)), false},
		{"touching before", New(at(9, 0), at(10, 0)), false},
		{"disjoint", New(at(13, 0), at(14, 0)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(base, tt.other))
			assert.Equal(t, tt.want, Overlaps(tt.other, base), "overlap must be symmetric")
		})
	}
}

func TestOverlapsSelf(t *testing.T) {
	i := New(at(8, 0), at(8, 1))
	assert.True(t, Overlaps(i, i))
}

func TestDurationHours(t *testing.T) {
	assert.Equal(t, 1.5, DurationHours(New(at(10, 0), at(11, 30))))
	assert.Equal(t, 0.0, DurationHours(New(at(10, 0), at(10, 0))))
}

func TestContains(t *testing.T) {
	outer := New(at(0, 0), at(23, 59))
	assert.True(t, Contains(outer, New(at(9, 0), at(10, 0))))
	assert.True(t, Contains(outer, outer))
	assert.False(t, Contains(outer, New(at(23, 0), at(23, 59).Add(time.Minute))))
}

func TestIntersection(t *testing.T) {
	got := Intersection(New(at(10, 0), at(11, 0)), New(at(10, 30), at(11, 30)))
	assert.Equal(t, New(at(10, 30), at(11, 0)), got)
}

func TestSpansDays(t *testing.T) {
	t.Run("single day", func(t *testing.T) {
		assert.Equal(t, []string{"2026-11-03"}, SpansDays(New(at(10, 0), at(11, 0)), time.UTC))
	})

	t.Run("crosses midnight", func(t *testing.T) {
		i := New(at(22, 0), at(22, 0).Add(4*time.Hour))
		assert.Equal(t, []string{"2026-11-03", "2026-11-04"}, SpansDays(i, time.UTC))
	})

	t.Run("ends exactly at midnight", func(t *testing.T) {
		i := New(at(20, 0), time.Date(2026, 11, 4, 0, 0, 0, 0, time.UTC))
		assert.Equal(t, []string{"2026-11-03"}, SpansDays(i, time.UTC))
	})

	t.Run("uses the canonical location", func(t *testing.T) {
		loc := time.FixedZone("UTC+9", 9*3600)
		i := New(at(14, 0), at(16, 0)) // 23:00 to 01:00 in UTC+9
		assert.Equal(t, []string{"2026-11-03", "2026-11-04"}, SpansDays(i, loc))
	})

	t.Run("degenerate interval", func(t *testing.T) {
		assert.Equal(t, []string{"2026-11-03"}, SpansDays(New(at(9, 0), at(9, 0)), time.UTC))
	})
}

func TestWholeDays(t *testing.T) {
	i, err := WholeDays("2026-11-03", "2026-11-05", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 11, 3, 0, 0, 0, 0, time.UTC), i.Start)
	assert.Equal(t, time.Date(2026, 11, 6, 0, 0, 0, 0, time.UTC), i.End)

	single, err := WholeDays("2026-11-03", "2026-11-03", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 24.0, DurationHours(single))

	_, err = WholeDays("03/11/2026", "2026-11-05", time.UTC)
	assert.Error(t, err)
}

func TestSort(t *testing.T) {
	ivs := []Interval{
		New(at(12, 0), at(13, 0)),
		New(at(9, 0), at(11, 0)),
		New(at(9, 0), at(10, 0)),
	}
	Sort(ivs)
	assert.Equal(t, at(9, 0), ivs[0].Start)
	assert.Equal(t, at(10, 0), ivs[0].End)
	assert.Equal(t, at(11, 0), ivs[1].End)
	assert.Equal(t, at(12, 0), ivs[2].Start)
}
