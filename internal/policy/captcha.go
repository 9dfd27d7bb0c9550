package policy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nisfix-tools/authcore/internal/models"
)

const hcaptchaVerifyURL = "https://hcaptcha.com/siteverify"

// CaptchaMode discriminates the CaptchaPolicy's provider (spec section 4.3;
// only hCaptcha is implemented per the Open Question in spec section 9).
type CaptchaMode string

const (
	CaptchaDisabled CaptchaMode = "disabled"
	CaptchaHCaptcha CaptchaMode = "hcaptcha"
)

// CaptchaPolicy verifies a captcha response token, ported from
// original_source's Captcha::check.
type CaptchaPolicy struct {
	Mode   CaptchaMode
	Secret string
	client *http.Client
}

// NewCaptchaPolicy constructs a CaptchaPolicy.
func NewCaptchaPolicy(mode CaptchaMode, secret string) *CaptchaPolicy {
	return &CaptchaPolicy{
		Mode:   mode,
		Secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Check verifies response against the configured provider. A missing token
// when a provider is configured, any transport failure, or a `success:
// false` response all collapse to CaptchaFailed (spec section 4.3: "any
// transport failure, missing token, or success=false response maps to
// CaptchaFailed").
func (p *CaptchaPolicy) Check(ctx context.Context, response string) *models.Error {
	if p.Mode == CaptchaDisabled {
		return nil
	}

	if response == "" {
		return models.ErrCaptchaFailed
	}

	form := url.Values{}
	form.Set("secret", p.Secret)
	form.Set("response", response)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hcaptchaVerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return models.ErrCaptchaFailed
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return models.ErrCaptchaFailed
	}
	defer resp.Body.Close()

	var result struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return models.ErrCaptchaFailed
	}
	if !result.Success {
		return models.ErrCaptchaFailed
	}
	return nil
}
