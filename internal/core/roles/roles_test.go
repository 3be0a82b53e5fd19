package roles

import (
	"errors"
	"math"
	"testing"

	"github.com/louisbranch/slotsim/internal/core/xorshift"
)

func testRows() []Row {
	return []Row{
		{Setting: 1, Name: "BIG", Count: 1, Payout: 240},
		{Setting: 1, Name: "REG", Count: 1, Payout: 96},
		{Setting: 2, Name: "BIG", Count: 2, Payout: 240},
		{Setting: 2, Name: "REG", Count: 2, Payout: 96},
		{Setting: 2, Name: "ベル", Count: 8192, Payout: 8},
	}
}

func TestNewTable_FiltersBySetting(t *testing.T) {
	table, err := NewTable(testRows(), 2)
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	if table.Len() != 3 {
		t.Fatalf("len = %d, want 3", table.Len())
	}
	if table.Setting() != 2 {
		t.Fatalf("setting = %d, want 2", table.Setting())
	}
	entries := table.Entries()
	wantNames := []string{"BIG", "REG", "ベル"}
	for i, want := range wantNames {
		if entries[i].Name != want {
			t.Fatalf("entries[%d].Name = %q, want %q", i, entries[i].Name, want)
		}
	}
	if entries[0].Probability != 2.0/65536 {
		t.Fatalf("probability = %v, want %v", entries[0].Probability, 2.0/65536)
	}
}

func TestNewTable_CumulativeIsRunningSum(t *testing.T) {
	table, err := NewTable(testRows(), 2)
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	cum := table.Cumulative()
	acc := 0.0
	for i, entry := range table.Entries() {
		acc += entry.Probability
		if cum[i] != acc {
			t.Fatalf("cumulative[%d] = %v, want %v", i, cum[i], acc)
		}
		if i > 0 && cum[i] < cum[i-1] {
			t.Fatalf("cumulative decreased at %d", i)
		}
	}
	if table.Total() != acc {
		t.Fatalf("total = %v, want %v", table.Total(), acc)
	}
}

func TestNewTable_Errors(t *testing.T) {
	tests := []struct {
		name    string
		rows    []Row
		setting int
		wantErr error
	}{
		{name: "no rows", rows: nil, setting: 1, wantErr: ErrEmptySetting},
		{name: "unknown setting", rows: testRows(), setting: 6, wantErr: ErrEmptySetting},
		{name: "zero count", rows: []Row{{Setting: 1, Name: "BIG", Count: 0}}, setting: 1, wantErr: ErrInvalidProbability},
		{name: "count too large", rows: []Row{{Setting: 1, Name: "BIG", Count: 65537}}, setting: 1, wantErr: ErrInvalidProbability},
		{name: "negative payout", rows: []Row{{Setting: 1, Name: "BIG", Count: 1, Payout: -1}}, setting: 1, wantErr: ErrInvalidPayout},
		{name: "blank name", rows: []Row{{Setting: 1, Name: " ", Count: 1}}, setting: 1, wantErr: ErrEmptyName},
		{name: "invalid row in other setting ignored", rows: []Row{{Setting: 2, Count: -5}, {Setting: 1, Name: "A", Count: 1}}, setting: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(tt.rows, tt.setting)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := map[string]Category{
		"BIG":         CategoryMajor,
		"BIG+チェリー":    CategoryMajor,
		"REG":         CategoryMinor,
		"スイカREG":      CategoryMinor,
		"ベル":          CategoryOther,
		"big":         CategoryOther,
		"REPLAY":      CategoryOther,
		"BIG_AND_REG": CategoryMajor,
	}
	for name, want := range tests {
		if got := Classify(name); got != want {
			t.Errorf("Classify(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestNewTable_ExplicitCategoryWins(t *testing.T) {
	table, err := NewTable([]Row{{Setting: 1, Name: "BIG", Count: 1, Category: CategoryOther}}, 1)
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	if got := table.Entry(0).Category; got != CategoryOther {
		t.Fatalf("category = %v, want Other", got)
	}
}

func TestParseCategory(t *testing.T) {
	for label, want := range map[string]Category{"": CategoryUnspecified, "Major": CategoryMajor, "reg": CategoryMinor, "other": CategoryOther} {
		got, err := ParseCategory(label)
		if err != nil {
			t.Fatalf("parse %q: %v", label, err)
		}
		if got != want {
			t.Fatalf("parse %q = %v, want %v", label, got, want)
		}
	}
	if _, err := ParseCategory("jackpot"); err == nil {
		t.Fatal("expected error for unknown category")
	}
}

func TestSample_FirstStrictlyGreater(t *testing.T) {
	table, err := NewTable([]Row{
		{Setting: 1, Name: "A", Count: 16384},
		{Setting: 1, Name: "B", Count: 16384},
		{Setting: 1, Name: "C", Count: 32768},
	}, 1)
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	tests := []struct {
		r    float64
		want int
	}{
		{0, 0},
		{0.2499, 0},
		{0.25, 1},
		{0.4999, 1},
		{0.5, 2},
		{0.9999, 2},
	}
	for _, tt := range tests {
		if got := table.Sample(tt.r); got != tt.want {
			t.Errorf("Sample(%v) = %d, want %d", tt.r, got, tt.want)
		}
	}
}

func TestSample_FallbackSelectsLastEntry(t *testing.T) {
	table, err := NewTable(testRows(), 1)
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	last := table.Len() - 1
	for _, r := range []float64{table.Total(), 0.5, 0.999999, 1, 2} {
		if got := table.Sample(r); got != last {
			t.Fatalf("Sample(%v) = %d, want last index %d", r, got, last)
		}
	}
}

func TestSample_TiesResolveToLowestIndex(t *testing.T) {
	// Equal cumulative values cannot arise from positive counts, so build the
	// table directly.
	table := &Table{
		entries:    []Entry{{Name: "A"}, {Name: "B"}, {Name: "C"}},
		cumulative: []float64{0.5, 0.5, 1},
	}
	if got := table.Sample(0.4); got != 0 {
		t.Fatalf("Sample(0.4) = %d, want 0", got)
	}
	if got := table.Sample(0.5); got != 2 {
		t.Fatalf("Sample(0.5) = %d, want 2", got)
	}
}

func TestDraw_ConvergesToDeclaredFrequencies(t *testing.T) {
	table, err := NewTable([]Row{
		{Setting: 1, Name: "BIG", Count: 6554, Payout: 240},
		{Setting: 1, Name: "REG", Count: 9830, Payout: 96},
		{Setting: 1, Name: "ベル", Count: 16384, Payout: 8},
		{Setting: 1, Name: "ハズレ", Count: 32768, Payout: 0},
	}, 1)
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	if table.Total() != 1 {
		t.Fatalf("total = %v, want 1", table.Total())
	}

	const draws = 400000
	src := xorshift.New(42)
	counts := make([]int, table.Len())
	for i := 0; i < draws; i++ {
		counts[table.Sample(src.Uniform())]++
	}
	for i, entry := range table.Entries() {
		got := float64(counts[i]) / draws
		if math.Abs(got-entry.Probability) > 0.005 {
			t.Errorf("%s frequency = %.4f, want %.4f ± 0.005", entry.Name, got, entry.Probability)
		}
	}
}

func TestSettings(t *testing.T) {
	got := Settings([]Row{{Setting: 3}, {Setting: 1}, {Setting: 3}, {Setting: 2}})
	want := []int{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("settings = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("settings = %v, want %v", got, want)
		}
	}
}
