package voucher

import (
	"strings"
	"testing"
)

func TestGenerateCodeFormat(t *testing.T) {
	for i := 0; i < 1000; i++ {
		code := GenerateCode()
		if len(code) != 7 {
			t.Fatalf("code %q: expected length 7", code)
		}
		if code[3] != '-' {
			t.Fatalf("code %q: expected dash at position 3", code)
		}
		if !strings.ContainsRune(codeConsonants, rune(code[0])) {
			t.Fatalf("code %q: position 0 is not a consonant", code)
		}
		if !strings.ContainsRune(codeVowels, rune(code[1])) {
			t.Fatalf("code %q: position 1 is not a vowel", code)
		}
		if !strings.ContainsRune(codeConsonants, rune(code[2])) {
			t.Fatalf("code %q: position 2 is not a consonant", code)
		}
		for i := 4; i < 7; i++ {
			if !strings.ContainsRune(codeDigits, rune(code[i])) {
				t.Fatalf("code %q: position %d is not a digit", code, i)
			}
		}
	}
}

func TestGenerateCodeVariety(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		seen[GenerateCode()] = struct{}{}
	}
	// The space holds over two million codes; 200 draws collapsing to a
	// handful would mean a broken generator.
	if len(seen) < 150 {
		t.Fatalf("expected varied codes, got %d distinct out of 200", len(seen))
	}
}
