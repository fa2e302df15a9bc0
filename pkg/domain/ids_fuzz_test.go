package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseDelegateID checks that parsing never panics and that accepted IDs
// round-trip.
func FuzzParseDelegateID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseDelegateID(input)
		if err == nil {
			roundTrip, err2 := ParseDelegateID(id.String())
			if err2 != nil {
				t.Errorf("valid ID failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("round-trip changed ID value")
			}
		}
		if !utf8.ValidString(input) && err == nil {
			t.Error("non-UTF8 input was accepted")
		}
	})
}

// FuzzParsePersonID checks that normalization is idempotent and digits-only.
func FuzzParsePersonID(f *testing.F) {
	f.Add("123.456.789-09")
	f.Add("")
	f.Add("abc")
	f.Add("٣٤٥")

	f.Fuzz(func(t *testing.T, input string) {
		p, err := ParsePersonID(input)
		if err != nil {
			return
		}
		for i := 0; i < len(p); i++ {
			if p[i] < '0' || p[i] > '9' {
				t.Fatalf("non-digit %q in %q", p[i], p)
			}
		}
		again, err := ParsePersonID(string(p))
		if err != nil || again != p {
			t.Fatalf("normalization not idempotent: %q -> %q (%v)", p, again, err)
		}
	})
}
