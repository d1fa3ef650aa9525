package mpesa

import (
	"errors"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0712345678", "254712345678"},
		{"+254712345678", "254712345678"},
		{"254712345678", "254712345678"},
		{"712345678", "254712345678"},
		{"0712 345 678", "254712345678"},
		{"0712-345-678", "254712345678"},
		{" 0712345678 ", "254712345678"},
	}
	for _, tc := range cases {
		got, err := NormalizePhone(tc.in)
		if err != nil {
			t.Fatalf("NormalizePhone(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizePhoneInvalid(t *testing.T) {
	for _, in := range []string{"", "12345", "07123456789999", "07123A5678", "notaphone"} {
		if _, err := NormalizePhone(in); !errors.Is(err, ErrInvalidPhoneNumber) {
			t.Fatalf("NormalizePhone(%q): expected ErrInvalidPhoneNumber, got %v", in, err)
		}
	}
}
