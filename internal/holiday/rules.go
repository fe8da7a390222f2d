package holiday

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"billremind/internal/core"
)

// MonthDay is a holiday that falls on the same day every year.
type MonthDay struct {
	Month time.Month
	Day   int
}

func (md MonthDay) String() string {
	return fmt.Sprintf("%02d-%02d", int(md.Month), md.Day)
}

// Rules is the holiday rule set of one national calendar: fixed dates plus
// day offsets from Easter Sunday.
type Rules struct {
	Fixed         []MonthDay
	EasterOffsets []int
}

// NationalRules returns the Brazilian national holidays.
func NationalRules() Rules {
	return Rules{
		Fixed: []MonthDay{
			{time.January, 1},    // Confraternização Universal
			{time.April, 21},     // Tiradentes
			{time.May, 1},        // Dia do Trabalho
			{time.September, 7},  // Independência
			{time.October, 12},   // Nossa Senhora Aparecida
			{time.November, 2},   // Finados
			{time.November, 15},  // Proclamação da República
			{time.December, 25},  // Natal
		},
		// Carnival Tuesday, Good Friday, Easter, Corpus Christi
		EasterOffsets: []int{-47, -2, 0, 60},
	}
}

// ParseRules builds rules from configuration strings. fixed is a comma
// separated list of MM-DD dates and offsets a comma separated list of day
// offsets from Easter. Empty strings fall back to NationalRules.
func ParseRules(fixed, offsets string) (Rules, error) {
	rules := NationalRules()

	if strings.TrimSpace(fixed) != "" {
		rules.Fixed = nil
		for _, item := range strings.Split(fixed, ",") {
			md, err := parseMonthDay(strings.TrimSpace(item))
			if err != nil {
				return Rules{}, err
			}
			rules.Fixed = append(rules.Fixed, md)
		}
	}

	if strings.TrimSpace(offsets) != "" {
		rules.EasterOffsets = nil
		for _, item := range strings.Split(offsets, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(item))
			if err != nil {
				return Rules{}, core.InvalidInputf("invalid easter offset %q", item)
			}
			if n < -120 || n > 120 {
				return Rules{}, core.InvalidInputf("easter offset %d out of range -120..120", n)
			}
			rules.EasterOffsets = append(rules.EasterOffsets, n)
		}
	}

	return rules, nil
}

func parseMonthDay(s string) (MonthDay, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return MonthDay{}, core.InvalidInputf("invalid holiday %q: expected MM-DD", s)
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return MonthDay{}, core.InvalidInputf("invalid holiday month in %q", s)
	}
	day, err := strconv.Atoi(parts[1])
	// 2000 is a leap year, so Feb 29 is accepted here and skipped in other years.
	if err != nil || day < 1 || day > core.DaysIn(2000, time.Month(month)) {
		return MonthDay{}, core.InvalidInputf("invalid holiday day in %q", s)
	}
	return MonthDay{Month: time.Month(month), Day: day}, nil
}
