// Package pricing computes the maximum price a provider may charge for a
// service, based on their years of experience.
package pricing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Bracket matches when years >= MinYears && years < MaxYears.
// MaxPrice is in minor units.
type Bracket struct {
	MinYears int
	MaxYears int
	MaxPrice int64
}

// Table holds brackets in configured order plus a flat maximum.
// Unmatched experience falls back to the flat maximum; overlapping
// brackets resolve to the first match.
// TODO: confirm with product whether a gap between brackets should be an
// error instead of falling back to FlatMax.
type Table struct {
	Brackets []Bracket
	FlatMax  int64
}

// MaxPriceFor returns the price ceiling for a provider with the given
// years of experience.
func (t Table) MaxPriceFor(years int) int64 {
	for _, b := range t.Brackets {
		if years >= b.MinYears && years < b.MaxYears {
			return b.MaxPrice
		}
	}

	return t.FlatMax
}

// ParseBrackets reads the configured bracket string, e.g.
// "0-2:50000,2-5:80000,5-10:120000".
func ParseBrackets(s string, flatMax int64) (Table, error) {
	table := Table{FlatMax: flatMax}

	s = strings.TrimSpace(s)
	if s == "" {
		return table, nil
	}

	for _, part := range strings.Split(s, ",") {
		rangePrice := strings.Split(part, ":")
		if len(rangePrice) != 2 {
			return Table{}, fmt.Errorf("malformed bracket %q", part)
		}

		bounds := strings.Split(rangePrice[0], "-")
		if len(bounds) != 2 {
			return Table{}, fmt.Errorf("malformed bracket range %q", rangePrice[0])
		}

		minYears, err := strconv.Atoi(strings.TrimSpace(bounds[0]))
		if err != nil {
			return Table{}, fmt.Errorf("malformed bracket range %q", rangePrice[0])
		}
		maxYears, err := strconv.Atoi(strings.TrimSpace(bounds[1]))
		if err != nil {
			return Table{}, fmt.Errorf("malformed bracket range %q", rangePrice[0])
		}
		if maxYears <= minYears {
			return Table{}, errors.New("bracket upper bound must exceed lower bound")
		}

		maxPrice, err := strconv.ParseInt(strings.TrimSpace(rangePrice[1]), 10, 64)
		if err != nil {
			return Table{}, fmt.Errorf("malformed bracket price %q", rangePrice[1])
		}

		table.Brackets = append(table.Brackets, Bracket{
			MinYears: minYears,
			MaxYears: maxYears,
			MaxPrice: maxPrice,
		})
	}

	return table, nil
}
