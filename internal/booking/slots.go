package booking

import (
	"sort"
	"strings"
	"time"
)

// Interval is a busy window reported by a calendar.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether [aStart,aEnd) and [bStart,bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// FreeSlots walks [dayStart, dayEnd) in step increments and returns every
// window of the given duration that does not overlap a busy interval.
func FreeSlots(dayStart, dayEnd time.Time, duration, step time.Duration, busy []Interval) []Slot {
	if duration <= 0 || step <= 0 {
		return nil
	}
	sorted := make([]Interval, len(busy))
	copy(sorted, busy)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	var slots []Slot
	for start := dayStart; !start.Add(duration).After(dayEnd); start = start.Add(step) {
		end := start.Add(duration)
		free := true
		for _, b := range sorted {
			if !b.Start.Before(end) {
				break
			}
			if Overlaps(start, end, b.Start, b.End) {
				free = false
				break
			}
		}
		if free {
			slots = append(slots, Slot{Start: start, End: end, DurationMinutes: int(duration / time.Minute)})
		}
	}
	return slots
}

// SplitName splits a full name into first and last name.
func SplitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

// ParseDateTime combines a YYYY-MM-DD date and an HH:MM time in loc.
func ParseDateTime(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	clock = strings.TrimSpace(clock)
	layout := "2006-01-02 15:04"
	if strings.Count(clock, ":") == 2 {
		layout = "2006-01-02 15:04:05"
	}
	return time.ParseInLocation(layout, strings.TrimSpace(date)+" "+clock, loc)
}
