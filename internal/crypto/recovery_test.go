package crypto

import (
	"regexp"
	"testing"
)

var recoveryCodePattern = regexp.MustCompile(`^[0-9a-hjkmnp-tv-z]{5}-[0-9a-hjkmnp-tv-z]{5}$`)

func TestGenerateRecoveryCodes(t *testing.T) {
	codes, err := GenerateRecoveryCodes()
	if err != nil {
		t.Fatalf("GenerateRecoveryCodes() error = %v", err)
	}

	if len(codes) != recoveryCodeCount {
		t.Fatalf("len(codes) = %d, want %d", len(codes), recoveryCodeCount)
	}

	seen := make(map[string]bool, len(codes))
	for _, code := range codes {
		if !recoveryCodePattern.MatchString(code) {
			t.Errorf("code %q does not match XXXXX-XXXXX shape over the restricted alphabet", code)
		}
		if seen[code] {
			t.Errorf("duplicate recovery code generated: %q", code)
		}
		seen[code] = true
	}
}

func TestRecoveryAlphabetExcludesAmbiguousCharacters(t *testing.T) {
	for _, excluded := range []byte{'i', 'l', 'o', 'u'} {
		for _, c := range recoveryAlphabet {
			if c == excluded {
				t.Errorf("recoveryAlphabet contains excluded character %q", excluded)
			}
		}
	}
}
