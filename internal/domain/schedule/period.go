package schedule

import "time"

// Formats used for dedup key values and sync date ranges.
const (
	DayFormat        = "2006-01-02"
	CompetenceFormat = "2006-01"
	SlotFormat       = "2006-01-02T15:04"
)

// Key is the deduplication key identifying one recurrence period of a job
// type for one account. Exactly one field is set.
type Key struct {
	Competence *string
	JobDay     *string
	JobSlot    *string
}

// CompetenceKey returns the Key for the competence month containing t.
func CompetenceKey(t time.Time) Key {
	v := t.Format(CompetenceFormat)
	return Key{Competence: &v}
}

// PreviousCompetenceKey returns the Key for the month before t.
func PreviousCompetenceKey(t time.Time) Key {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	v := first.AddDate(0, -1, 0).Format(CompetenceFormat)
	return Key{Competence: &v}
}

// DayKey returns the Key for the calendar day containing t.
func DayKey(t time.Time) Key {
	v := t.Format(DayFormat)
	return Key{JobDay: &v}
}

// SlotKey returns the Key for the fixed-length slot containing t.
func SlotKey(t time.Time, slot time.Duration) Key {
	v := t.Truncate(slot).Format(SlotFormat)
	return Key{JobSlot: &v}
}

// Value returns the populated key value.
func (k Key) Value() (string, bool) {
	switch {
	case k.Competence != nil:
		return *k.Competence, true
	case k.JobDay != nil:
		return *k.JobDay, true
	case k.JobSlot != nil:
		return *k.JobSlot, true
	}
	return "", false
}

// DateRange is an inclusive from/to pair of calendar days.
type DateRange struct {
	From string
	To   string
}

// PreviousDay returns the range covering the calendar day before t.
func PreviousDay(t time.Time) DateRange {
	d := t.AddDate(0, 0, -1).Format(DayFormat)
	return DateRange{From: d, To: d}
}

// PreviousWeek returns the most recent complete Monday-Sunday week before t.
func PreviousWeek(t time.Time) DateRange {
	sinceMonday := (int(t.Weekday()) + 6) % 7
	thisMonday := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).
		AddDate(0, 0, -sinceMonday)
	prevMonday := thisMonday.AddDate(0, 0, -7)
	prevSunday := thisMonday.AddDate(0, 0, -1)
	return DateRange{From: prevMonday.Format(DayFormat), To: prevSunday.Format(DayFormat)}
}

// PreviousCompetenceMonth returns the full range of the month before t.
func PreviousCompetenceMonth(t time.Time) DateRange {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	prevFirst := first.AddDate(0, -1, 0)
	prevLast := first.AddDate(0, 0, -1)
	return DateRange{From: prevFirst.Format(DayFormat), To: prevLast.Format(DayFormat)}
}
