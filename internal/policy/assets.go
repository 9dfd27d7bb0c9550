// Package policy implements the "can this request proceed" checks the
// AccountService composes before registration, password change and
// sensitive re-auth: email validation/blocklist, password safety, captcha
// and shield (spec section 4.3). Grounded on original_source's
// crates/rauth/src/config/{blocklists,passwords}.rs and
// crates/authifier/src/config/{captcha,shield}.rs, reshaped from a closed
// Rust enum per concern into a Go struct-with-mode plus a Check method.
package policy

import (
	_ "embed"
	"strings"
)

//go:embed assets/disposable_domains.txt
var bundledDisposableDomains string

//go:embed assets/top_compromised_passwords.txt
var bundledCompromisedPasswords string

// loadLines parses a sorted newline-delimited bundled list (spec section 6)
// into a lookup set. #LIBRARY_CHOICE: go:embed into string variables, the same mechanism
// fazt-sh-fazt uses for its bundled assets - process-scoped, read-only,
// loaded once at package init rather than re-read from disk per request.
func loadLines(data string) map[string]struct{} {
	lines := strings.Split(data, "\n")
	set := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		set[line] = struct{}{}
	}
	return set
}

var (
	disposableDomainSet     = loadLines(bundledDisposableDomains)
	compromisedPasswordSet  = loadLines(bundledCompromisedPasswords)
)
