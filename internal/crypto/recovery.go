package crypto

import "crypto/rand"

// recoveryAlphabet is the 32-character alphabet from spec section 4.6:
// digits 1-9,0 then lowercase a-z with i, l, o, u removed to avoid visual
// ambiguity. Ported verbatim from original_source's util.rs ALPHABET.
var recoveryAlphabet = [32]byte{
	'1', '2', '3', '4', '5', '6', '7', '8', '9', '0',
	'a', 'b', 'c', 'd', 'e', 'f', 'g', 'h', 'j', 'k',
	'm', 'n', 'p', 'q', 'r', 's', 't', 'v', 'w', 'x', 'y', 'z',
}

const recoveryCodeCount = 10
const recoveryBlockLength = 5

// GenerateRecoveryCodes returns 10 codes of the shape XXXXX-XXXXX, each
// 5-character block drawn from recoveryAlphabet.
func GenerateRecoveryCodes() ([]string, error) {
	codes := make([]string, recoveryCodeCount)
	for i := range codes {
		code, err := recoveryCode()
		if err != nil {
			return nil, err
		}
		codes[i] = code
	}
	return codes, nil
}

func recoveryCode() (string, error) {
	buf := make([]byte, recoveryBlockLength*2)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	out := make([]byte, 0, recoveryBlockLength*2+1)
	for i, b := range buf {
		if i == recoveryBlockLength {
			out = append(out, '-')
		}
		out = append(out, recoveryAlphabet[int(b)%len(recoveryAlphabet)])
	}
	return string(out), nil
}
