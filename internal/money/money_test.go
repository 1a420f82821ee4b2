package money

import (
	"errors"
	"testing"
)

func TestParseRoundsHalfUp(t *testing.T) {
	cases := map[string]Money{
		"0":       0,
		"10":      1000,
		"10.5":    1050,
		"10.005":  1001,
		"10.004":  1000,
		"-10.005": -1000,
		"0.01":    1,
		"320.00":  32000,
	}
	for raw, want := range cases {
		got, err := Parse(raw)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", raw, err)
		}
		if got != want {
			t.Fatalf("Parse(%q)=%d, want %d", raw, got, want)
		}
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse("12,50"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestArithmeticIsExact(t *testing.T) {
	price := FromCents(1999)
	if got := price.Times(3); got != 5997 {
		t.Fatalf("expected 5997, got %d", got)
	}
	if got := FromCents(10).Add(20).Add(30).Sub(60); !got.IsZero() {
		t.Fatalf("expected zero, got %d", got)
	}
	if got := FromCents(-1000).String(); got != "-10.00" {
		t.Fatalf("unexpected string %s", got)
	}
}

func TestRatioPercentRoundsOnce(t *testing.T) {
	// 1.00 of 3.00 = 33.333...% -> 33.33
	if got := FromCents(100).RatioPercent(300); got.String() != "33.33" {
		t.Fatalf("expected 33.33, got %s", got)
	}
	if got := FromCents(-1000).RatioPercent(32000); got.String() != "-3.12" {
		t.Fatalf("expected -3.12, got %s", got)
	}
	if got := FromCents(50).RatioPercent(0); !got.IsZero() {
		t.Fatalf("expected zero ratio on zero base, got %s", got)
	}
}
