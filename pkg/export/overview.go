package export

import "time"

// PeriodRow is one contract period line in a client overview. A nil End is an
// open-ended period and renders as "open".
type PeriodRow struct {
	Category string
	Start    time.Time
	End      *time.Time
}

// Overview is a client's contract period table ready for rendering.
type Overview struct {
	Title string
	Rows  []PeriodRow
}

var columns = []string{"Category", "Start", "End"}

func (r PeriodRow) cells() []string {
	end := "open"
	if r.End != nil {
		end = r.End.Format(time.DateOnly)
	}
	return []string{r.Category, r.Start.Format(time.DateOnly), end}
}
