package evcodes

import "testing"

func TestParseTypeSymbolicName(t *testing.T) {
	cases := map[string]int{
		"KEY":    EV_KEY,
		"key":    EV_KEY,
		"EV_KEY": EV_KEY,
		"abs":    EV_ABS,
	}
	for in, want := range cases {
		got, ok := ParseType(in)
		if !ok {
			t.Fatalf("ParseType(%q): expected ok", in)
		}
		if got != want {
			t.Fatalf("ParseType(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestParseTypeNumeric(t *testing.T) {
	cases := map[string]int{
		"1":    1,
		"0x03": 3,
		"011":  9, // octal
	}
	for in, want := range cases {
		got, ok := ParseType(in)
		if !ok || got != want {
			t.Fatalf("ParseType(%q) = (%d, %v), want (%d, true)", in, got, ok, want)
		}
	}
}

func TestParseTypeUnknown(t *testing.T) {
	if _, ok := ParseType("NOT_A_TYPE"); ok {
		t.Fatal("expected ParseType to fail on an unknown symbolic name")
	}
}

func TestTypeNameRoundTrip(t *testing.T) {
	if got := TypeName(EV_ABS); got != "ABS" {
		t.Fatalf("TypeName(EV_ABS) = %q, want ABS", got)
	}
	if got, ok := ParseType(TypeName(EV_ABS)); !ok || got != EV_ABS {
		t.Fatalf("ParseType(TypeName(EV_ABS)) = (%d, %v), want (%d, true)", got, ok, EV_ABS)
	}
	if got := TypeName(0xff); got != "" {
		t.Fatalf("TypeName(0xff) = %q, want empty", got)
	}
}

func TestTypeMax(t *testing.T) {
	max, ok := TypeMax(EV_KEY)
	if !ok || max != KEY_MAX {
		t.Fatalf("TypeMax(EV_KEY) = (%d, %v), want (%d, true)", max, ok, KEY_MAX)
	}
	if _, ok := TypeMax(EV_SYN); ok {
		t.Fatal("EV_SYN has no per-type sub-bitfield, expected ok=false")
	}
}
