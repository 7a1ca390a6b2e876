package installment

import (
	"testing"
	"time"
)

func TestAllocate_RemainderGoesToLast(t *testing.T) {
	parts := Allocate(100, 3)

	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(parts))
	}
	if parts[0] != 33 || parts[1] != 33 || parts[2] != 34 {
		t.Errorf("expected [33 33 34], got %v", parts)
	}
}

func TestAllocate_SumInvariant(t *testing.T) {
	cases := []struct {
		total int64
		count int
	}{
		{100, 3},
		{101, 2},
		{61, 60},
		{999999999, 7},
		{1050000, 2},
		{123456789, 60},
		{60, 60},
	}

	for _, tc := range cases {
		parts := Allocate(tc.total, tc.count)
		if len(parts) != tc.count {
			t.Errorf("Allocate(%d, %d): expected %d parts, got %d", tc.total, tc.count, tc.count, len(parts))
		}
		var sum int64
		for _, p := range parts {
			sum += p
		}
		if sum != tc.total {
			t.Errorf("Allocate(%d, %d): parts sum to %d, want %d", tc.total, tc.count, sum, tc.total)
		}
	}
}

func TestCanSplit_RoundUpOvershoot(t *testing.T) {
	cases := []struct {
		total int64
		count int
		want  bool
	}{
		{100, 3, true},
		{60, 60, true},    // exactly one unit each
		{90, 60, false},   // base rounds to 2, 2*59 > 90
		{1000, 60, false}, // base rounds to 17, 17*59 > 1000
		{118, 60, true},   // base 2, last part exactly 0
		{3, 5, false},     // below count, base rounds to 0
		{10000, 4, true},
	}

	for _, tc := range cases {
		if got := CanSplit(tc.total, tc.count); got != tc.want {
			t.Errorf("CanSplit(%d, %d) = %v, want %v", tc.total, tc.count, got, tc.want)
		}
	}
}

func TestAllocate_NonNegativeWhenSplittable(t *testing.T) {
	// Sweep the small-total region where the rounded base can overshoot.
	for count := 2; count <= 60; count++ {
		for total := int64(count); total < int64(count)*40; total++ {
			if !CanSplit(total, count) {
				continue
			}
			parts := Allocate(total, count)
			for i, p := range parts {
				if p < 0 {
					t.Fatalf("Allocate(%d, %d): part %d is negative: %d", total, count, i+1, p)
				}
			}
		}
	}
}

func TestAllocate_ExactDivision(t *testing.T) {
	// 10.000 grams = 10000 mg across 4 installments: 2500 mg each, no drift.
	parts := Allocate(10000, 4)

	for i, p := range parts {
		if p != 2500 {
			t.Errorf("installment %d: expected 2500 mg, got %d", i+1, p)
		}
	}
}

func TestDueDates_FirstEqualsStart(t *testing.T) {
	start := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	dates := DueDates(start, 30, 4)

	want := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	if !dates[0].Equal(want) {
		t.Errorf("first due date = %v, want %v", dates[0], want)
	}
}

func TestDueDates_MonotonicByInterval(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	dates := DueDates(start, 15, 6)

	if len(dates) != 6 {
		t.Fatalf("expected 6 dates, got %d", len(dates))
	}
	for i := 1; i < len(dates); i++ {
		gap := dates[i].Sub(dates[i-1])
		if gap != 15*24*time.Hour {
			t.Errorf("gap between installment %d and %d = %v, want 360h", i, i+1, gap)
		}
	}
}

func TestDueDates_CrossesMonthBoundary(t *testing.T) {
	start := time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC)
	dates := DueDates(start, 10, 3)

	want := time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)
	if !dates[2].Equal(want) {
		t.Errorf("third due date = %v, want %v", dates[2], want)
	}
}

func TestApplyInterest(t *testing.T) {
	cases := []struct {
		principal int64
		rate      float64
		want      int64
	}{
		{1000000, 5, 1050000},
		{1000000, 0, 1000000},
		{999, 10, 1099},   // 99.9 rounds up to 100
		{1001, 2.5, 1026}, // 25.025 rounds down to 25
	}

	for _, tc := range cases {
		got := ApplyInterest(tc.principal, tc.rate)
		if got != tc.want {
			t.Errorf("ApplyInterest(%d, %v) = %d, want %d", tc.principal, tc.rate, got, tc.want)
		}
	}
}

func TestBuildCurrency_InterestScenario(t *testing.T) {
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	total, descriptors := BuildCurrency(1000000, 5, start, 30, 2)

	if total != 1050000 {
		t.Errorf("adjusted total = %d, want 1050000", total)
	}
	if len(descriptors) != 2 {
		t.Fatalf("expected 2 installments, got %d", len(descriptors))
	}
	if descriptors[0].AmountDue != 525000 || descriptors[1].AmountDue != 525000 {
		t.Errorf("expected [525000 525000], got [%d %d]", descriptors[0].AmountDue, descriptors[1].AmountDue)
	}
	if descriptors[0].Number != 1 || descriptors[1].Number != 2 {
		t.Errorf("expected numbering 1,2; got %d,%d", descriptors[0].Number, descriptors[1].Number)
	}
}

func TestBuildCurrency_Boundaries(t *testing.T) {
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	_, two := BuildCurrency(500000, 0, start, 7, 2)
	if len(two) != 2 {
		t.Errorf("count=2: expected 2 installments, got %d", len(two))
	}

	total, sixty := BuildCurrency(98765432, 12.5, start, 30, 60)
	if len(sixty) != 60 {
		t.Errorf("count=60: expected 60 installments, got %d", len(sixty))
	}
	var sum int64
	for _, d := range sixty {
		sum += d.AmountDue
	}
	if sum != total {
		t.Errorf("count=60: installments sum to %d, want %d", sum, total)
	}
}

func TestBuildGold_ExactSplit(t *testing.T) {
	start := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	descriptors := BuildGold(10000, start, 30, 4)

	if len(descriptors) != 4 {
		t.Fatalf("expected 4 installments, got %d", len(descriptors))
	}
	for _, d := range descriptors {
		if d.GoldWeightDueMg != 2500 {
			t.Errorf("installment %d: expected 2500 mg, got %d", d.Number, d.GoldWeightDueMg)
		}
		if d.AmountDue != 0 {
			t.Errorf("installment %d: gold schedule must not carry a currency amount", d.Number)
		}
	}
}

func TestBuildCurrency_Idempotent(t *testing.T) {
	start := time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC)

	totalA, a := BuildCurrency(777777, 3.3, start, 14, 7)
	totalB, b := BuildCurrency(777777, 3.3, start, 14, 7)

	if totalA != totalB {
		t.Fatalf("totals differ: %d vs %d", totalA, totalB)
	}
	for i := range a {
		if a[i].AmountDue != b[i].AmountDue || !a[i].DueDate.Equal(b[i].DueDate) {
			t.Errorf("installment %d differs between identical invocations", i+1)
		}
	}
}
