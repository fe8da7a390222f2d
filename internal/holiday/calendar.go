// Package holiday decides which days are business days for one national
// calendar and shifts dates forward to the next business day.
//
// Holidays come from a Rules value: fixed month/day pairs plus offsets from
// Easter Sunday. The set for a year is computed once per Calendar and kept
// for the Calendar's lifetime.
package holiday

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"billremind/internal/core"
)

const (
	MinYear = 1
	MaxYear = 9999

	// maxAdjustDays bounds AdjustToBusinessDay. No sane rule set produces
	// two weeks of consecutive non-business days.
	maxAdjustDays = 14
)

type yearSet struct {
	movable []core.Date
	days    map[int]struct{} // keyed by day of year
}

// Calendar is safe for concurrent use.
type Calendar struct {
	rules Rules

	mu    sync.RWMutex
	years map[int]*yearSet

	computed int // number of year sets built, for tests
}

func New(rules Rules) *Calendar {
	return &Calendar{
		rules: Rules{
			Fixed:         slices.Clone(rules.Fixed),
			EasterOffsets: slices.Clone(rules.EasterOffsets),
		},
		years: make(map[int]*yearSet),
	}
}

// Easter returns Easter Sunday of the Gregorian calendar for year
// (anonymous Gregorian algorithm, Meeus/Jones/Butcher).
func Easter(year int) (core.Date, error) {
	if err := validateYear(year); err != nil {
		return core.Date{}, err
	}
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := ((h + l - 7*m + 114) % 31) + 1

	return core.NewDate(year, month, day), nil
}

// MovableHolidays returns the Easter-anchored holidays of year in rule order.
func (c *Calendar) MovableHolidays(year int) ([]core.Date, error) {
	ys, err := c.yearSet(year)
	if err != nil {
		return nil, err
	}
	return slices.Clone(ys.movable), nil
}

// HolidaysFor returns every holiday of year, sorted.
func (c *Calendar) HolidaysFor(year int) ([]core.Date, error) {
	ys, err := c.yearSet(year)
	if err != nil {
		return nil, err
	}
	out := make([]core.Date, 0, len(ys.days))
	for yday := range ys.days {
		out = append(out, core.NewDate(year, 1, yday))
	}
	slices.SortFunc(out, func(a, b core.Date) int { return a.Time.Compare(b.Time) })
	return out, nil
}

// IsHoliday reports whether d is a fixed or movable holiday.
func (c *Calendar) IsHoliday(d core.Date) (bool, error) {
	ys, err := c.yearSet(d.Year())
	if err != nil {
		return false, err
	}
	_, ok := ys.days[d.YearDay()]
	return ok, nil
}

// IsWeekend reports whether d is a Saturday or Sunday.
func (c *Calendar) IsWeekend(d core.Date) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (c *Calendar) IsBusinessDay(d core.Date) (bool, error) {
	if c.IsWeekend(d) {
		return false, nil
	}
	holiday, err := c.IsHoliday(d)
	if err != nil {
		return false, err
	}
	return !holiday, nil
}

// AdjustToBusinessDay returns the first business day on or after d.
func (c *Calendar) AdjustToBusinessDay(d core.Date) (core.Date, error) {
	adjusted := d
	for i := 0; i <= maxAdjustDays; i++ {
		ok, err := c.IsBusinessDay(adjusted)
		if err != nil {
			return core.Date{}, err
		}
		if ok {
			return adjusted, nil
		}
		adjusted = adjusted.AddDays(1)
	}
	return core.Date{}, core.InvariantViolationf(
		"no business day within %d days of %s: holiday rules are malformed", maxAdjustDays, d)
}

// Preload builds the holiday sets of the given years ahead of use.
func (c *Calendar) Preload(years ...int) error {
	for _, y := range years {
		if _, err := c.yearSet(y); err != nil {
			return err
		}
	}
	return nil
}

func (c *Calendar) yearSet(year int) (*yearSet, error) {
	if err := validateYear(year); err != nil {
		return nil, err
	}

	c.mu.RLock()
	ys, ok := c.years[year]
	c.mu.RUnlock()
	if ok {
		return ys, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another goroutine may have built it while we waited.
	if ys, ok := c.years[year]; ok {
		return ys, nil
	}

	ys, err := c.build(year)
	if err != nil {
		return nil, err
	}
	c.years[year] = ys
	c.computed++

	slog.Debug("Holiday set computed",
		"component", "holiday",
		"year", year,
		"holidays", len(ys.days))
	return ys, nil
}

func (c *Calendar) build(year int) (*yearSet, error) {
	ys := &yearSet{days: make(map[int]struct{})}

	for _, md := range c.rules.Fixed {
		d := core.NewDate(year, int(md.Month), md.Day)
		// Feb 29 outside leap years normalizes into March; skip it.
		if d.Time.Month() != md.Month {
			continue
		}
		ys.days[d.YearDay()] = struct{}{}
	}

	easter, err := Easter(year)
	if err != nil {
		return nil, err
	}
	for _, offset := range c.rules.EasterOffsets {
		ys.movable = append(ys.movable, easter.AddDays(offset))
	}

	// Large offsets can push a holiday anchored on a neighbouring year's
	// Easter into this year.
	for _, y := range []int{year - 1, year, year + 1} {
		if validateYear(y) != nil {
			continue
		}
		anchor, err := Easter(y)
		if err != nil {
			return nil, err
		}
		for _, offset := range c.rules.EasterOffsets {
			if d := anchor.AddDays(offset); d.Year() == year {
				ys.days[d.YearDay()] = struct{}{}
			}
		}
	}
	return ys, nil
}

func validateYear(year int) error {
	if year < MinYear || year > MaxYear {
		return core.InvalidInputf("year %d out of range %d-%d", year, MinYear, MaxYear)
	}
	return nil
}
