// Package roles builds the per-setting probability table that the simulator
// samples from.
//
// # Sampling
//
// A Table keeps its entries in declaration order together with their running
// cumulative probability. Sample picks the first entry whose cumulative value
// is strictly greater than the draw. When no entry qualifies, because the
// probabilities sum to less than one or rounding left the draw above the last
// partial sum, the last entry is selected. That fallback is part of the model:
// the remaining mass is credited to the final entry, never to the first.
package roles

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/louisbranch/slotsim/internal/core/xorshift"
)

// CountScale is the denominator applied to raw probability counts.
const CountScale = 65536

var (
	// ErrEmptySetting indicates that no rows belong to the requested setting.
	ErrEmptySetting = errors.New("setting has no roles")
	// ErrInvalidProbability indicates a raw count outside (0, 65536].
	ErrInvalidProbability = errors.New("role count must be between 1 and 65536")
	// ErrInvalidPayout indicates a negative payout.
	ErrInvalidPayout = errors.New("role payout must be non-negative")
	// ErrEmptyName indicates a row without a role name.
	ErrEmptyName = errors.New("role name is required")
)

// Category groups roles that the session counters track.
type Category int

const (
	CategoryUnspecified Category = iota
	CategoryMajor
	CategoryMinor
	CategoryOther
)

func (c Category) String() string {
	switch c {
	case CategoryUnspecified:
		return "Unspecified"
	case CategoryMajor:
		return "Major"
	case CategoryMinor:
		return "Minor"
	case CategoryOther:
		return "Other"
	default:
		return "Unknown"
	}
}

// ParseCategory maps a category label to a Category. Empty input returns
// CategoryUnspecified.
func ParseCategory(label string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "":
		return CategoryUnspecified, nil
	case "major", "big":
		return CategoryMajor, nil
	case "minor", "reg":
		return CategoryMinor, nil
	case "other":
		return CategoryOther, nil
	default:
		return CategoryUnspecified, fmt.Errorf("unknown role category %q", label)
	}
}

// Classify derives a category from a role name. Names containing "BIG" are
// major bonuses and names containing "REG" are minor bonuses.
func Classify(name string) Category {
	switch {
	case strings.Contains(name, "BIG"):
		return CategoryMajor
	case strings.Contains(name, "REG"):
		return CategoryMinor
	default:
		return CategoryOther
	}
}

// Row is one line of the full probability table as loaded from its source.
type Row struct {
	Setting  int
	Name     string
	Count    int
	Payout   int
	Category Category
}

// Entry is one outcome of a Table.
type Entry struct {
	Name        string
	Probability float64
	Payout      int
	Category    Category
}

// Table is the immutable outcome list for one setting.
type Table struct {
	setting    int
	entries    []Entry
	cumulative []float64
}

// NewTable filters rows to setting and builds its cumulative table.
func NewTable(rows []Row, setting int) (*Table, error) {
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		if row.Setting != setting {
			continue
		}
		name := strings.TrimSpace(row.Name)
		if name == "" {
			return nil, ErrEmptyName
		}
		if row.Count <= 0 || row.Count > CountScale {
			return nil, fmt.Errorf("%w: %s has count %d", ErrInvalidProbability, name, row.Count)
		}
		if row.Payout < 0 {
			return nil, fmt.Errorf("%w: %s has payout %d", ErrInvalidPayout, name, row.Payout)
		}
		category := row.Category
		if category == CategoryUnspecified {
			category = Classify(name)
		}
		entries = append(entries, Entry{
			Name:        name,
			Probability: float64(row.Count) / CountScale,
			Payout:      row.Payout,
			Category:    category,
		})
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: setting %d", ErrEmptySetting, setting)
	}

	cumulative := make([]float64, len(entries))
	acc := 0.0
	for i, entry := range entries {
		acc += entry.Probability
		cumulative[i] = acc
	}

	return &Table{setting: setting, entries: entries, cumulative: cumulative}, nil
}

// Setting returns the setting the table was filtered to.
func (t *Table) Setting() int {
	return t.setting
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// Entries returns a copy of the entries in declaration order.
func (t *Table) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

// Entry returns the entry at index i.
func (t *Table) Entry(i int) Entry {
	return t.entries[i]
}

// Cumulative returns a copy of the cumulative probabilities.
func (t *Table) Cumulative() []float64 {
	return append([]float64(nil), t.cumulative...)
}

// Total returns the final cumulative probability. Anything below one is the
// mass that Sample assigns to the last entry.
func (t *Table) Total() float64 {
	return t.cumulative[len(t.cumulative)-1]
}

// Sample returns the index selected by draw r.
func (t *Table) Sample(r float64) int {
	for i, c := range t.cumulative {
		if r < c {
			return i
		}
	}
	return len(t.cumulative) - 1
}

// Draw consumes one value from src and returns the selected entry.
func (t *Table) Draw(src *xorshift.Source) Entry {
	return t.entries[t.Sample(src.Uniform())]
}

// Settings returns the distinct settings present in rows, ascending.
func Settings(rows []Row) []int {
	seen := make(map[int]struct{}, len(rows))
	settings := make([]int, 0)
	for _, row := range rows {
		if _, ok := seen[row.Setting]; ok {
			continue
		}
		seen[row.Setting] = struct{}{}
		settings = append(settings, row.Setting)
	}
	sort.Ints(settings)
	return settings
}
