package domain

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

func TestMulQtyRoundsHalfUp(t *testing.T) {
	tests := []struct {
		name   string
		amount QuantizedAmount
		qty    string
		want   int64
	}{
		{"whole quantity", 250, "4", 1000},
		{"exact fractional product", 200, "0.25", 50},
		{"half rounds up", 333, "0.5", 167},
		{"just below half rounds down", 333, "0.4999", 166},
		{"sub cent half rounds up", 100, "1.005", 101},
		{"sub cent below half rounds down", 100, "1.004", 100},
		{"zero quantity", 999, "0", 0},
		{"negative amount rounds away from zero", -333, "0.5", -167},
		{"large amount", 1999999, "2.5", 4999998},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qty, err := decimal.NewFromString(tt.qty)
			if err != nil {
				t.Fatalf("bad quantity %q: %v", tt.qty, err)
			}
			got := tt.amount.MulQty(qty)
			if got.Int64() != tt.want {
				t.Errorf("MulQty(%d, %s) = %d, want %d", tt.amount, tt.qty, got, tt.want)
			}
		})
	}
}

func TestDivQtyRoundsHalfUp(t *testing.T) {
	tests := []struct {
		name   string
		amount QuantizedAmount
		qty    string
		want   int64
	}{
		{"exact division", 1000, "4", 250},
		{"repeating third rounds down", 1000, "3", 333},
		{"repeating two thirds rounds up", 500, "3", 167},
		{"half rounds up", 25, "2", 13},
		{"below half stays down", 9, "20", 0},
		{"fractional qty rounds once", 6, "1.1", 5},
		{"negative below half stays up", -9, "20", 0},
		{"zero quantity returns amount", 425, "0", 425},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qty, err := decimal.NewFromString(tt.qty)
			if err != nil {
				t.Fatalf("bad quantity %q: %v", tt.qty, err)
			}
			got := tt.amount.DivQty(qty)
			if got.Int64() != tt.want {
				t.Errorf("DivQty(%d, %s) = %d, want %d", tt.amount, tt.qty, got, tt.want)
			}
		})
	}
}

func TestMajorRoundTrip(t *testing.T) {
	for _, minor := range []int64{0, 1, 99, 100, 10050, -250} {
		amount := QuantizedAmount(minor)
		if got := FromMajor(amount.Major()); got != amount {
			t.Errorf("FromMajor(Major(%d)) = %d, want %d", minor, got, minor)
		}
	}
}

func TestFromMajorQuantizes(t *testing.T) {
	v, _ := decimal.NewFromString("100.505")
	if got := FromMajor(v); got != 10051 {
		t.Errorf("FromMajor(100.505) = %d, want 10051", got)
	}
	v, _ = decimal.NewFromString("100.504")
	if got := FromMajor(v); got != 10050 {
		t.Errorf("FromMajor(100.504) = %d, want 10050", got)
	}
}

func TestMulQtyProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("integer quantities are exact", prop.ForAll(
		func(amount int64, qty int64) bool {
			a := QuantizedAmount(amount)
			return a.MulQty(decimal.NewFromInt(qty)).Int64() == amount*qty
		},
		gen.Int64Range(-1_000_000, 1_000_000),
		gen.Int64Range(0, 1000),
	))

	properties.Property("result differs from the exact product by at most half a unit", prop.ForAll(
		func(amount int64, num int64, den int64) bool {
			a := QuantizedAmount(amount)
			qty := decimal.NewFromInt(num).Div(decimal.NewFromInt(den))
			exact := decimal.NewFromInt(amount).Mul(qty)
			diff := decimal.NewFromInt(a.MulQty(qty).Int64()).Sub(exact).Abs()
			half := decimal.NewFromFloat(0.5)
			return diff.Cmp(half) <= 0
		},
		gen.Int64Range(-100_000, 100_000),
		gen.Int64Range(1, 1000),
		gen.Int64Range(1, 1000),
	))

	properties.Property("multiplying by one is the identity", prop.ForAll(
		func(amount int64) bool {
			a := QuantizedAmount(amount)
			return a.MulQty(decimal.NewFromInt(1)) == a
		},
		gen.Int64Range(-1_000_000_000, 1_000_000_000),
	))

	properties.TestingRun(t)
}

func TestCmp(t *testing.T) {
	if QuantizedAmount(1).Cmp(2) != -1 {
		t.Error("expected 1 < 2")
	}
	if QuantizedAmount(2).Cmp(2) != 0 {
		t.Error("expected 2 == 2")
	}
	if QuantizedAmount(3).Cmp(2) != 1 {
		t.Error("expected 3 > 2")
	}
}
