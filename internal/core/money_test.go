package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", -100, true},
		{"-1500,00", -150000, true},
		{"+3.50", 350, true},
		{"0", 0, false},
		{"-0.00", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"--1", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestParsePositiveDecimalToCents(t *testing.T) {
	if _, err := ParsePositiveDecimalToCents("-5"); err == nil {
		t.Fatal("negative amount should be rejected")
	}
	got, err := ParsePositiveDecimalToCents("5")
	if err != nil || got != 500 {
		t.Fatalf("expected 500, got %d (err=%v)", got, err)
	}
}

func TestMoneyAbs(t *testing.T) {
	if (Money{Cents: -250}).Abs().Cents != 250 {
		t.Error("Abs of negative should be positive")
	}
	if (Money{Cents: 250}).Abs().Cents != 250 {
		t.Error("Abs of positive should be unchanged")
	}
	if !(Money{Cents: -1}).IsOutflow() {
		t.Error("negative amount should be an outflow")
	}
}
