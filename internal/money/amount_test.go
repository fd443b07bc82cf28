package money_test

import (
	"testing"

	"github.com/nexusengine/liveauction/internal/money"
)

func TestParseAmount_RoundTrip(t *testing.T) {
	a := money.MustParseAmount("100.00")
	if got := a.String(); got != "100.00" {
		t.Fatalf("String() = %q, want 100.00", got)
	}
}

func TestAdd_Exact(t *testing.T) {
	a := money.MustParseAmount("0.10")
	b := money.MustParseAmount("0.20")
	got := a.Add(b)
	if got.String() != "0.30" {
		t.Fatalf("0.10 + 0.20 = %s, want 0.30 (binary float would give 0.30000000000000004)", got)
	}
}

func TestCmp_StrictIncrement(t *testing.T) {
	current := money.MustParseAmount("100.00")
	increment := money.MustParseAmount("5.00")
	minimum := current.Add(increment)

	equalBid := money.MustParseAmount("105.00")
	if !equalBid.GreaterThanOrEqual(minimum) {
		t.Fatalf("105.00 should satisfy minimum 105.00")
	}

	oneCentLess := money.MustParseAmount("104.99")
	if oneCentLess.GreaterThanOrEqual(minimum) {
		t.Fatalf("104.99 should not satisfy minimum 105.00")
	}
}

func TestCents(t *testing.T) {
	a := money.MustParseAmount("19.99")
	if got := a.Cents(); got != 1999 {
		t.Fatalf("Cents() = %d, want 1999", got)
	}
}
