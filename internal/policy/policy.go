package policy

import (
	"context"

	"github.com/nisfix-tools/authcore/internal/config"
	"github.com/nisfix-tools/authcore/internal/models"
)

// Engine aggregates the four independent checks AccountService composes
// before registration and other sensitive operations (spec section 4.3:
// "callers compose them in documented order (captcha -> shield -> email ->
// password, in registration)").
type Engine struct {
	Email   *EmailPolicy
	Password *PasswordPolicy
	Captcha *CaptchaPolicy
	Shield  *ShieldPolicy
}

// NewEngine builds an Engine from process configuration.
func NewEngine(cfg *config.Config) *Engine {
	return &Engine{
		Email:    NewEmailPolicy(EmailBlocklistMode(cfg.EmailBlocklistMode), cfg.EmailBlocklistDomains),
		Password: NewPasswordPolicy(PasswordScannerMode(cfg.PasswordScannerMode), nil, cfg.HIBPServiceURL),
		Captcha:  NewCaptchaPolicy(CaptchaMode(cfg.CaptchaMode), cfg.HCaptchaSecret),
		Shield:   NewShieldPolicy(ShieldMode(cfg.ShieldMode), cfg.ShieldAPIKey, cfg.ShieldStrict),
	}
}

// CheckRegistration runs the documented registration-order composition:
// captcha, then shield, then email, then password (spec section 4.3).
func (e *Engine) CheckRegistration(ctx context.Context, input ShieldValidationInput, captchaResponse, email, password string) *models.Error {
	if err := e.Captcha.Check(ctx, captchaResponse); err != nil {
		return err
	}
	if err := e.Shield.Validate(ctx, input); err != nil {
		return err
	}
	if err := e.Email.ValidateEmail(email); err != nil {
		return err
	}
	if err := e.Password.AssertSafe(ctx, password); err != nil {
		return err
	}
	return nil
}
