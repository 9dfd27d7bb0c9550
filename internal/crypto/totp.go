package crypto

import (
	"crypto/rand"
	"encoding/base32"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// totpSecretBytes is the raw entropy behind a TOTP secret before base32
// encoding (spec section 4.6: "generates 10 random bytes, base32-encodes").
const totpSecretBytes = 10

// GenerateTOTPSecret mints a fresh base32 (RFC 4648, no padding) TOTP
// secret.
func GenerateTOTPSecret() (string, error) {
	raw := make([]byte, totpSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw), nil
}

// GenerateTOTPCode returns the code for secret at the current 30-second step.
func GenerateTOTPCode(secret string) (string, error) {
	return totp.GenerateCodeCustom(secret, time.Now(), totp.ValidateOpts{
		Period:    30,
		Skew:      0,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
}

// VerifyTOTPCode reports whether code is valid for secret at the current
// step. #IMPLEMENTATION_DECISION: Skew 0 per spec section 9's Open Question
// decision - the strict ±0 drift window is preserved, matching
// original_source's totp_lite::totp_custom call (no window parameter); the
// caller layers the per-ticket last_totp_code replay allowance on top.
func VerifyTOTPCode(secret, code string) (bool, error) {
	return totp.ValidateCustom(code, secret, time.Now(), totp.ValidateOpts{
		Period:    30,
		Skew:      0,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
}
