package models

import (
	"testing"
	"time"
)

func TestDateKeyEncoding(t *testing.T) {
	day := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	if got := DateKey(day); got != 20251101 {
		t.Fatalf("expected 20251101, got %d", got)
	}
}

func TestNewDimDateDecomposition(t *testing.T) {
	row := NewDimDate(time.Date(2025, 11, 9, 13, 45, 0, 0, time.UTC))

	if row.DateKey != 20251109 {
		t.Fatalf("unexpected date key %d", row.DateKey)
	}
	if row.Day != 9 || row.Month != 11 || row.Year != 2025 {
		t.Fatalf("unexpected decomposition: %+v", row)
	}
	if row.Quarter != 4 {
		t.Fatalf("november belongs to Q4, got %d", row.Quarter)
	}
	if row.FullDate.Hour() != 0 {
		t.Fatalf("full date should be truncated to midnight, got %v", row.FullDate)
	}
}

func TestNewDimDateQuarterBoundaries(t *testing.T) {
	cases := map[time.Month]int{
		time.January:   1,
		time.March:     1,
		time.April:     2,
		time.June:      2,
		time.July:      3,
		time.September: 3,
		time.October:   4,
		time.December:  4,
	}
	for month, want := range cases {
		row := NewDimDate(time.Date(2025, month, 15, 0, 0, 0, 0, time.UTC))
		if row.Quarter != want {
			t.Fatalf("month %s: expected quarter %d, got %d", month, want, row.Quarter)
		}
	}
}
