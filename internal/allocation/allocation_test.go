package allocation

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestAllocate(t *testing.T) {
	tests := []struct {
		name     string
		quantity int
		pct      string
		want     int
	}{
		{"sixty percent of 137 floors", 137, "60.00", 82},
		{"full allocation", 50, "100", 50},
		{"zero percent", 999, "0", 0},
		{"zero quantity", 0, "75.5", 0},
		{"fractional percent", 10, "33.33", 3},
		{"just under a whole unit", 3, "33.33", 0},
		{"binary float trap", 100, "0.29", 0},
		{"exact boundary", 200, "0.50", 1},
		{"decimal that floats get wrong", 1000, "57.01", 570},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Allocate(tt.quantity, decimal.RequireFromString(tt.pct))
			if err != nil {
				t.Fatalf("Allocate: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Allocate(%d, %s) = %d, want %d", tt.quantity, tt.pct, got, tt.want)
			}
		})
	}
}

func TestAllocateRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		quantity int
		pct      string
	}{
		{"negative quantity", -1, "50"},
		{"percent above 100", 10, "100.01"},
		{"negative percent", 10, "-0.01"},
		{"three decimals", 10, "12.345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Allocate(tt.quantity, decimal.RequireFromString(tt.pct)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

// Every two-decimal percentage against a spread of quantities: the result is
// the exact integer floor, never negative and never above the ERP quantity.
func TestAllocateGrid(t *testing.T) {
	quantities := []int{0, 1, 2, 3, 7, 10, 99, 100, 137, 1000, 4999, 9999, 10000}

	for hundredths := int64(0); hundredths <= 10000; hundredths++ {
		pct := decimal.New(hundredths, -2)
		for _, q := range quantities {
			got, err := Allocate(q, pct)
			if err != nil {
				t.Fatalf("Allocate(%d, %s): %v", q, pct, err)
			}
			// floor(q * h / 10000) in integer arithmetic.
			want := int(int64(q) * hundredths / 10000)
			if got != want {
				t.Fatalf("Allocate(%d, %s) = %d, want %d", q, pct, got, want)
			}
			if got < 0 || got > q {
				t.Fatalf("Allocate(%d, %s) = %d out of range", q, pct, got)
			}
		}
	}
}

func TestValidatePercentage(t *testing.T) {
	for _, ok := range []string{"0", "0.01", "50", "99.99", "100", "100.00"} {
		if err := ValidatePercentage(decimal.RequireFromString(ok)); err != nil {
			t.Errorf("ValidatePercentage(%s): %v", ok, err)
		}
	}
	for _, bad := range []string{"-1", "100.001", "101", "0.001"} {
		if err := ValidatePercentage(decimal.RequireFromString(bad)); err == nil {
			t.Errorf("ValidatePercentage(%s) accepted", bad)
		}
	}
}
