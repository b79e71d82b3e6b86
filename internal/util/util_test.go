package util

import "testing"

func TestFormatMinorUnits(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{15000, "150.00"},
		{100, "1.00"},
		{7, "0.07"},
		{0, "0.00"},
		{-2550, "-25.50"},
	}
	for _, c := range cases {
		if got := FormatMinorUnits(c.in); got != c.want {
			t.Errorf("FormatMinorUnits(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFirstName(t *testing.T) {
	if got := FirstName("Maria Silva"); got != "Maria" {
		t.Fatalf("expected Maria, got %q", got)
	}
	if got := FirstName("  Jose  "); got != "Jose" {
		t.Fatalf("expected Jose, got %q", got)
	}
	if got := FirstName(""); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
