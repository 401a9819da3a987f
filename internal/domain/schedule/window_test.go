package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowAtSpreadsLinearly(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	w, err := DayWindow(day, ClockTime{Hour: 6}, ClockTime{Hour: 8})
	require.NoError(t, err)

	now := day.Add(5 * time.Hour)

	// Four accounts across a two-hour window land 40 minutes apart.
	want := []time.Time{
		day.Add(6 * time.Hour),
		day.Add(6*time.Hour + 40*time.Minute),
		day.Add(7*time.Hour + 20*time.Minute),
		day.Add(8 * time.Hour),
	}
	for i, expected := range want {
		assert.Equal(t, expected, w.At(i, 4, now), "index %d", i)
	}
}

func TestWindowAtClampsToNow(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	w, err := DayWindow(day, ClockTime{Hour: 3}, ClockTime{Hour: 7})
	require.NoError(t, err)

	// Halfway through the window: slots already in the past collapse to now.
	now := day.Add(5 * time.Hour)
	assert.Equal(t, now, w.At(0, 4, now))
	assert.Equal(t, now, w.At(1, 4, now))
	assert.Equal(t, day.Add(5*time.Hour+40*time.Minute), w.At(2, 4, now))
	assert.Equal(t, day.Add(7*time.Hour), w.At(3, 4, now))
}

func TestWindowAtEdgeCases(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 3, 15, 3, 0, 0, 0, time.UTC)
	w := Window{Start: start, End: start.Add(4 * time.Hour)}
	now := start.Add(-time.Hour)

	// Single account takes the window start.
	assert.Equal(t, start, w.At(0, 1, now))

	// Out-of-range indices clamp to the window bounds.
	assert.Equal(t, start, w.At(-1, 4, now))
	assert.Equal(t, w.End, w.At(99, 4, now))
}

func TestNewWindowRejectsInvertedBounds(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 3, 15, 7, 0, 0, 0, time.UTC)
	_, err := NewWindow(start, start.Add(-time.Hour))
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestSlotWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 15, 10, 44, 0, 0, time.UTC)
	w := SlotWindow(now, 30*time.Minute)

	assert.Equal(t, time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2024, 3, 15, 11, 0, 0, 0, time.UTC), w.End)
	assert.Equal(t, 30*time.Minute, w.Duration())
}

func TestParseClockTime(t *testing.T) {
	t.Parallel()

	ct, err := ParseClockTime("03:00")
	require.NoError(t, err)
	assert.Equal(t, ClockTime{Hour: 3}, ct)

	ct, err = ParseClockTime(" 23:59 ")
	require.NoError(t, err)
	assert.Equal(t, ClockTime{Hour: 23, Minute: 59}, ct)

	for _, invalid := range []string{"", "7", "24:00", "12:60", "ab:cd", "-1:30"} {
		_, err := ParseClockTime(invalid)
		assert.Error(t, err, "input %q", invalid)
	}
}

func TestClockTimeUnmarshalText(t *testing.T) {
	t.Parallel()

	var ct ClockTime
	require.NoError(t, ct.UnmarshalText([]byte("07:30")))
	assert.Equal(t, ClockTime{Hour: 7, Minute: 30}, ct)

	assert.Error(t, ct.UnmarshalText([]byte("bogus")))
}

func TestClockTimeBeforeAndString(t *testing.T) {
	t.Parallel()

	assert.True(t, ClockTime{Hour: 3}.Before(ClockTime{Hour: 7}))
	assert.True(t, ClockTime{Hour: 3, Minute: 15}.Before(ClockTime{Hour: 3, Minute: 30}))
	assert.False(t, ClockTime{Hour: 7}.Before(ClockTime{Hour: 7}))
	assert.False(t, ClockTime{Hour: 7}.Before(ClockTime{Hour: 3}))

	assert.Equal(t, "03:05", ClockTime{Hour: 3, Minute: 5}.String())
}

func TestClockTimeOnPreservesLocation(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("BRT", -3*60*60)
	day := time.Date(2024, 3, 15, 18, 0, 0, 0, loc)

	at := ClockTime{Hour: 3, Minute: 30}.On(day)
	assert.Equal(t, time.Date(2024, 3, 15, 3, 30, 0, 0, loc), at)
}
