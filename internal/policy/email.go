package policy

import (
	"net/mail"
	"strings"

	"github.com/nisfix-tools/authcore/internal/models"
)

// EmailBlocklistMode discriminates the EmailPolicy's blocklist source (spec
// section 4.3: "Disabled, Custom{domains}, or a bundled disposable-mail
// list").
type EmailBlocklistMode string

const (
	EmailBlocklistDisabled EmailBlocklistMode = "disabled"
	EmailBlocklistCustom   EmailBlocklistMode = "custom"
	EmailBlocklistBundled  EmailBlocklistMode = "bundled"
)

// EmailPolicy validates email syntax and enforces a domain blocklist.
type EmailPolicy struct {
	Mode           EmailBlocklistMode
	CustomDomains  map[string]struct{}
}

// NewEmailPolicy constructs an EmailPolicy. customDomains is only consulted
// when mode is EmailBlocklistCustom.
func NewEmailPolicy(mode EmailBlocklistMode, customDomains []string) *EmailPolicy {
	set := make(map[string]struct{}, len(customDomains))
	for _, d := range customDomains {
		set[strings.ToLower(d)] = struct{}{}
	}
	return &EmailPolicy{Mode: mode, CustomDomains: set}
}

// blocklist returns the active domain set, or nil when disabled.
func (p *EmailPolicy) blocklist() map[string]struct{} {
	switch p.Mode {
	case EmailBlocklistCustom:
		return p.CustomDomains
	case EmailBlocklistBundled:
		return disposableDomainSet
	default:
		return nil
	}
}

// ValidateEmail checks syntax (RFC 5322-ish, via net/mail) then the
// configured blocklist, per spec section 4.3. Ported from
// EmailBlockList::validate_email.
func (p *EmailPolicy) ValidateEmail(email string) *models.Error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return models.IncorrectData("email")
	}

	list := p.blocklist()
	if list == nil {
		return nil
	}

	at := strings.LastIndex(email, "@")
	if at < 0 {
		return models.IncorrectData("email")
	}
	domain := strings.ToLower(email[at+1:])
	if _, blocked := list[domain]; blocked {
		return models.BlacklistedEmail(email, "This email provider is not allowed. Please contact support if you believe this is an error.")
	}

	return nil
}
