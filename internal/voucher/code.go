package voucher

import (
	"crypto/rand"
	"math/big"
)

// Code alphabet. Consonant-vowel-consonant followed by three digits keeps
// codes short enough to transcribe on a captive-portal login screen while
// staying pronounceable ("KAP-239").
const (
	codeConsonants = "BCDFGHJKLMNPQRSTVWXYZ"
	codeVowels     = "AEIOU"
	codeDigits     = "0123456789"
)

// GenerateCode produces a CVC-DDD voucher code such as "TIR-847".
func GenerateCode() string {
	buf := make([]byte, 0, 7)
	buf = append(buf, randomChar(codeConsonants))
	buf = append(buf, randomChar(codeVowels))
	buf = append(buf, randomChar(codeConsonants))
	buf = append(buf, '-')
	buf = append(buf, randomChar(codeDigits))
	buf = append(buf, randomChar(codeDigits))
	buf = append(buf, randomChar(codeDigits))
	return string(buf)
}

// randomChar picks a uniformly random character from the alphabet.
func randomChar(alphabet string) byte {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		// crypto/rand only fails when the platform entropy source is broken.
		panic(err)
	}
	return alphabet[n.Int64()]
}
