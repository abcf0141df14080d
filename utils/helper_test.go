package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestIsValidEmail(t *testing.T) {
	valid := []string{"a@b.co", "owner+tag@example.com", "first.last@sub.domain.io"}
	for _, e := range valid {
		if !IsValidEmail(e) {
			t.Errorf("expected %q to be valid", e)
		}
	}
	invalid := []string{"", "plain", "@no-local.com", "user@", "user@domain", "user @domain.com"}
	for _, e := range invalid {
		if IsValidEmail(e) {
			t.Errorf("expected %q to be invalid", e)
		}
	}
}

func TestDereferencePtr(t *testing.T) {
	if v := DereferencePtr[int](nil); v != 0 {
		t.Errorf("nil without default: want 0 got %d", v)
	}
	if v := DereferencePtr[int](nil, 7); v != 7 {
		t.Errorf("nil with default: want 7 got %d", v)
	}
	n := 5
	if v := DereferencePtr(&n, 7); v != 5 {
		t.Errorf("non-nil: want 5 got %d", v)
	}
}

func TestNilIfEmpty(t *testing.T) {
	if p := NilIfEmpty(""); p != nil {
		t.Errorf("empty string: want nil got %v", *p)
	}
	if p := NilIfEmpty("x"); p == nil || *p != "x" {
		t.Errorf("non-empty string: want x got %v", p)
	}
	if p := NilIfEmpty(0); p != nil {
		t.Errorf("zero int: want nil got %v", *p)
	}
}

func TestParseDecimal(t *testing.T) {
	if _, err := ParseDecimal(""); err == nil {
		t.Errorf("expected error for empty string")
	}
	if _, err := ParseDecimal("  "); err == nil {
		t.Errorf("expected error for blank string")
	}
	d, err := ParseDecimal(" 12.50 ")
	if err != nil {
		t.Fatalf("ParseDecimal: %v", err)
	}
	if d.Cmp(decimal.RequireFromString("12.5")) != 0 {
		t.Errorf("want 12.5 got %s", d.String())
	}
}
