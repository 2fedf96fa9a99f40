package timewindow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

// TestPreviousMonth_MidMonth verifies the window spans the whole previous
// calendar month.
func TestPreviousMonth_MidMonth(t *testing.T) {
	jst := mustLoad(t, "Asia/Tokyo")
	now := time.Date(2024, time.March, 15, 10, 30, 0, 0, jst)

	w := PreviousMonth(now)

	assert.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, jst), w.Start)
	assert.Equal(t, time.Date(2024, time.February, 29, 23, 59, 59, 0, jst), w.End)
}

// TestPreviousMonth_EndIsOneSecondBeforeCurrentMonth checks the exact
// boundary relationship for several representative instants.
func TestPreviousMonth_EndIsOneSecondBeforeCurrentMonth(t *testing.T) {
	jst := mustLoad(t, "Asia/Tokyo")
	nows := []time.Time{
		time.Date(2024, time.January, 1, 0, 0, 0, 0, jst),
		time.Date(2024, time.January, 31, 23, 59, 59, 0, jst),
		time.Date(2023, time.December, 5, 12, 0, 0, 0, jst),
		time.Date(2024, time.July, 30, 3, 4, 5, 0, jst),
	}

	for _, now := range nows {
		w := PreviousMonth(now)
		firstOfThisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, jst)

		assert.Equal(t, firstOfThisMonth.Add(-time.Second), w.End, "now=%s", now)
		assert.Equal(t, 1, w.Start.Day())
		assert.True(t, w.Start.Before(w.End))
		assert.Equal(t, w.End.Month(), w.Start.Month())
	}
}

// TestPreviousMonth_JanuaryRollsToDecember verifies year rollover.
func TestPreviousMonth_JanuaryRollsToDecember(t *testing.T) {
	jst := mustLoad(t, "Asia/Tokyo")
	now := time.Date(2024, time.January, 10, 9, 0, 0, 0, jst)

	w := PreviousMonth(now)

	assert.Equal(t, time.Date(2023, time.December, 1, 0, 0, 0, 0, jst), w.Start)
	assert.Equal(t, time.Date(2023, time.December, 31, 23, 59, 59, 0, jst), w.End)
}

// TestWindow_UnixBounds verifies the unix-second accessors used as API
// query parameters.
func TestWindow_UnixBounds(t *testing.T) {
	jst := mustLoad(t, "Asia/Tokyo")
	w := PreviousMonth(time.Date(2024, time.March, 1, 0, 0, 0, 0, jst))

	assert.Equal(t, w.Start.Unix(), w.FromUnix())
	assert.Equal(t, w.End.Unix(), w.ToUnix())
	assert.Less(t, w.FromUnix(), w.ToUnix())
}
