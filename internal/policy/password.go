package policy

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nisfix-tools/authcore/internal/models"
)

const minPasswordLength = 8

// PasswordScannerMode discriminates the PasswordPolicy's compromised-list
// source (spec section 4.3).
type PasswordScannerMode string

const (
	PasswordScannerNone       PasswordScannerMode = "none"
	PasswordScannerCustom     PasswordScannerMode = "custom"
	PasswordScannerBundled    PasswordScannerMode = "bundled"
	PasswordScannerLocalHIBP  PasswordScannerMode = "local_hibp"
	PasswordScannerRemoteHIBP PasswordScannerMode = "remote_hibp"
)

// PasswordPolicy enforces the minimum length then the configured
// compromised-password scanner (spec section 4.3), ported from
// PasswordScanning::assert_safe.
type PasswordPolicy struct {
	Mode            PasswordScannerMode
	CustomPasswords map[string]struct{}
	HIBPServiceURL  string
	client          *http.Client
}

// NewPasswordPolicy constructs a PasswordPolicy.
func NewPasswordPolicy(mode PasswordScannerMode, customPasswords []string, hibpServiceURL string) *PasswordPolicy {
	set := make(map[string]struct{}, len(customPasswords))
	for _, p := range customPasswords {
		set[p] = struct{}{}
	}
	return &PasswordPolicy{
		Mode:            mode,
		CustomPasswords: set,
		HIBPServiceURL:  hibpServiceURL,
		client:          &http.Client{Timeout: 10 * time.Second},
	}
}

// AssertSafe reports whether password may be used, per spec section 4.3:
// short passwords fail with ShortPassword regardless of scanner mode;
// anything matching the active compromised list fails with
// CompromisedPassword.
func (p *PasswordPolicy) AssertSafe(ctx context.Context, password string) *models.Error {
	if len(password) < minPasswordLength {
		return models.ErrShortPassword
	}

	switch p.Mode {
	case PasswordScannerNone:
		return nil
	case PasswordScannerCustom:
		if _, found := p.CustomPasswords[password]; found {
			return models.ErrCompromisedPassword
		}
		return nil
	case PasswordScannerBundled:
		if _, found := compromisedPasswordSet[password]; found {
			return models.ErrCompromisedPassword
		}
		return nil
	case PasswordScannerLocalHIBP:
		return p.checkLocalHIBP(ctx, password)
	case PasswordScannerRemoteHIBP:
		// Reserved per spec section 4.3 ("remote HIBP lookup (reserved)").
		return nil
	default:
		return nil
	}
}

// checkLocalHIBP queries a locally-hosted HIBP-style service by SHA-1 hash
// prefix (spec section 4.3), grounded on original_source's EasyPwned arm.
func (p *PasswordPolicy) checkLocalHIBP(ctx context.Context, password string) *models.Error {
	sum := sha1.Sum([]byte(password))
	hash := strings.ToUpper(hex.EncodeToString(sum[:]))

	url := fmt.Sprintf("%s/hash/%s", p.HIBPServiceURL, hash)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.ErrInternalError
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return models.ErrInternalError
	}
	defer resp.Body.Close()

	var result struct {
		Secure bool `json:"secure"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return models.ErrInternalError
	}

	if !result.Secure {
		return models.ErrCompromisedPassword
	}
	return nil
}
