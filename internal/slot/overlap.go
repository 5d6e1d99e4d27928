package slot

import "time"

// DefaultCell is the width of one availability display cell.
const DefaultCell = time.Hour

// MalformedFunc receives the index and value of an existing interval that
// failed validation and was therefore ignored.
type MalformedFunc func(index int, iv Interval)

// Overlaps reports whether a and b share at least one minute.
// Touching intervals (a.End == b.Start) do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

// FindConflict returns the first existing interval that overlaps candidate.
// Malformed existing intervals never conflict; each one is passed to report
// when report is non-nil.
func FindConflict(candidate Interval, existing []Interval, report MalformedFunc) (Interval, bool) {
	for i, iv := range existing {
		if !iv.Valid() {
			if report != nil {
				report(i, iv)
			}
			continue
		}
		if Overlaps(candidate, iv) {
			return iv, true
		}
	}
	return Interval{}, false
}

// Cells splits the day into consecutive cells of the given width. A
// non-positive width falls back to DefaultCell; a width that does not divide
// the day truncates the last cell at the end of the day.
func Cells(cell time.Duration) []Interval {
	width := int(cell / time.Minute)
	if width <= 0 {
		width = int(DefaultCell / time.Minute)
	}

	cells := make([]Interval, 0, (MinutesPerDay+width-1)/width)
	for start := 0; start < MinutesPerDay; start += width {
		end := start + width
		if end > MinutesPerDay {
			end = MinutesPerDay
		}
		cells = append(cells, Interval{Start: TimeOfDay(start), End: TimeOfDay(end)})
	}
	return cells
}

// Partition projects booked intervals onto the display grid. A cell is booked
// when any valid booked interval overlaps it, even partially. Each malformed
// booked interval is passed to report once.
func Partition(cell time.Duration, booked []Interval, report MalformedFunc) (bookedCells, freeCells []Interval) {
	valid := make([]Interval, 0, len(booked))
	for i, iv := range booked {
		if !iv.Valid() {
			if report != nil {
				report(i, iv)
			}
			continue
		}
		valid = append(valid, iv)
	}

	for _, c := range Cells(cell) {
		if _, hit := FindConflict(c, valid, nil); hit {
			bookedCells = append(bookedCells, c)
		} else {
			freeCells = append(freeCells, c)
		}
	}
	return bookedCells, freeCells
}

// FreeSlots returns the cells of the day that no booked interval touches.
func FreeSlots(cell time.Duration, booked []Interval) []Interval {
	_, free := Partition(cell, booked, nil)
	return free
}
