package gateway

import "testing"

func TestCanonicalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"22997074180", "5522997074180"},
		{"5522997074180", "5522997074180"},
		{"+5522997074180", "5522997074180"},
		{"5522997074180@s.whatsapp.net", "5522997074180"},
		{"whatsapp_22997074180", "5522997074180"},
		{" 22 99707-4180 ", "5522997074180"},
	}
	for _, c := range cases {
		if got := CanonicalizePhone(c.in); got != c.want {
			t.Errorf("CanonicalizePhone(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCanonicalizePhoneIdempotent(t *testing.T) {
	shapes := []string{
		"22997074180",
		"+5522997074180",
		"5522997074180@s.whatsapp.net",
		"whatsapp_5522997074180",
	}
	for _, s := range shapes {
		once := CanonicalizePhone(s)
		twice := CanonicalizePhone(once)
		if once != twice {
			t.Errorf("not idempotent for %q: %q != %q", s, once, twice)
		}
		if len(once) < 2 || once[:2] != "55" {
			t.Errorf("canonical form of %q does not start with 55: %q", s, once)
		}
	}
}
