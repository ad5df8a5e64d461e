package revenue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const dayLayout = "2006-01-02"

// Named periods accepted by the stats endpoint.
const (
	PeriodToday  = "today"
	PeriodWeek   = "week"
	PeriodMonth  = "month"
	PeriodYear   = "year"
	PeriodCustom = "custom"
)

// Period is an inclusive range of calendar days. Start and End are stored as
// UTC midnights so day arithmetic never crosses a DST boundary.
type Period struct {
	Name  string
	Start time.Time
	End   time.Time
}

func civilDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// parseDay accepts "2006-01-02" and anything that starts with it, such as an
// ISO date-time ("2025-03-04T10:00:00").
func parseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		s = s[:i]
	}
	return time.Parse(dayLayout, s)
}

// MonthPeriod covers every day of the given calendar month.
func MonthPeriod(year int, month time.Month) Period {
	start := civilDate(year, month, 1)
	return Period{
		Name:  PeriodCustom,
		Start: start,
		End:   start.AddDate(0, 1, -1),
	}
}

// ParseMonth parses "YYYY-MM".
func ParseMonth(s string) (Period, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return Period{}, fmt.Errorf("%w: month %q: %v", ErrInvalidPeriod, s, err)
	}
	return MonthPeriod(t.Year(), t.Month()), nil
}

// NewCustomPeriod builds a period from two "YYYY-MM-DD" bounds.
func NewCustomPeriod(startDate, endDate string) (Period, error) {
	start, err := parseDay(startDate)
	if err != nil {
		return Period{}, fmt.Errorf("%w: startDate %q", ErrInvalidPeriod, startDate)
	}
	end, err := parseDay(endDate)
	if err != nil {
		return Period{}, fmt.Errorf("%w: endDate %q", ErrInvalidPeriod, endDate)
	}
	p := Period{Name: PeriodCustom, Start: start, End: end}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// ResolvePeriod turns a named period into concrete bounds relative to now,
// read in now's location. startDate and endDate are only used for "custom".
func ResolvePeriod(name string, now time.Time, startDate, endDate string) (Period, error) {
	today := civilDate(now.Year(), now.Month(), now.Day())
	switch strings.ToLower(strings.TrimSpace(name)) {
	case PeriodToday:
		return Period{Name: PeriodToday, Start: today, End: today}, nil
	case PeriodWeek:
		return Period{Name: PeriodWeek, Start: today.AddDate(0, 0, -6), End: today}, nil
	case PeriodMonth:
		p := MonthPeriod(today.Year(), today.Month())
		p.Name = PeriodMonth
		return p, nil
	case PeriodYear:
		return Period{
			Name:  PeriodYear,
			Start: civilDate(today.Year(), time.January, 1),
			End:   civilDate(today.Year(), time.December, 31),
		}, nil
	case PeriodCustom, "":
		return NewCustomPeriod(startDate, endDate)
	default:
		return Period{}, fmt.Errorf("%w: unknown period %q", ErrInvalidPeriod, name)
	}
}

func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return fmt.Errorf("%w: missing bounds", ErrInvalidPeriod)
	}
	if p.Days() <= 0 {
		return fmt.Errorf("%w: %s is after %s", ErrInvalidPeriod, p.StartDate(), p.EndDate())
	}
	return nil
}

// Days is the number of calendar days in the period, both bounds included.
func (p Period) Days() int {
	if p.Start.IsZero() || p.End.IsZero() {
		return 0
	}
	return int(p.End.Sub(p.Start).Hours()/24) + 1
}

func (p Period) StartDate() string { return p.Start.Format(dayLayout) }

func (p Period) EndDate() string { return p.End.Format(dayLayout) }

func (p Period) containsTime(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// Contains reports whether a "YYYY-MM-DD" (or ISO date-time) day is inside the period.
func (p Period) Contains(day string) bool {
	t, err := parseDay(day)
	if err != nil {
		return false
	}
	return p.containsTime(t)
}

// Dates lists every day of the period in ascending order.
func (p Period) Dates() []string {
	n := p.Days()
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, p.Start.AddDate(0, 0, i).Format(dayLayout))
	}
	return out
}

func (p Period) String() string {
	return p.StartDate() + ".." + p.EndDate()
}

type periodJSON struct {
	Name      string `json:"name"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Days      int    `json:"days"`
}

func (p Period) MarshalJSON() ([]byte, error) {
	return json.Marshal(periodJSON{
		Name:      p.Name,
		StartDate: p.StartDate(),
		EndDate:   p.EndDate(),
		Days:      p.Days(),
	})
}

func (p *Period) UnmarshalJSON(data []byte) error {
	var raw periodJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	start, err := parseDay(raw.StartDate)
	if err != nil {
		return err
	}
	end, err := parseDay(raw.EndDate)
	if err != nil {
		return err
	}
	*p = Period{Name: raw.Name, Start: start, End: end}
	return nil
}
