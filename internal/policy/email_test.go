package policy

import "testing"

func TestEmailPolicyValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		mode    EmailBlocklistMode
		domains []string
		email   string
		wantErr string
	}{
		{"accepts valid email, disabled list", EmailBlocklistDisabled, nil, "valid@example.com", ""},
		{"rejects malformed email", EmailBlocklistDisabled, nil, "invalid", "IncorrectData"},
		{"rejects custom-blocked domain", EmailBlocklistCustom, []string{"example.com"}, "test@example.com", "Blacklisted"},
		{"rejects bundled-blocked domain", EmailBlocklistBundled, nil, "test@mailinator.com", "Blacklisted"},
		{"accepts domain absent from bundled list", EmailBlocklistBundled, nil, "test@validemail.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewEmailPolicy(tt.mode, tt.domains)
			err := p.ValidateEmail(tt.email)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateEmail(%q) = %v, want nil", tt.email, err)
				}
				return
			}
			if err == nil || string(err.Kind) != tt.wantErr {
				t.Errorf("ValidateEmail(%q) = %v, want Kind %s", tt.email, err, tt.wantErr)
			}
		})
	}
}
