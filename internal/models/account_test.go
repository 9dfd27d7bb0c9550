package models

import (
	"testing"
	"time"
)

func parseTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse time %q: %v", value, err)
	}
	return parsed
}

func TestNormaliseEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
	}{
		{"boundary scenario: tag and case", "Ex.Ample+tag@VALIDEMAIL.com", "example@validemail.com"},
		{"no tag", "jane.doe@example.com", "janedoe@example.com"},
		{"already normalised", "jane@example.com", "jane@example.com"},
		{"multiple plus signs", "jane+a+b@example.com", "jane@example.com"},
		{"no at sign lowercases only", "not-an-email", "not-an-email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormaliseEmail(tt.email); got != tt.want {
				t.Errorf("NormaliseEmail(%q) = %q, want %q", tt.email, got, tt.want)
			}
		})
	}
}

func TestLockoutIsActive(t *testing.T) {
	now := parseTime(t, "2026-01-01T00:00:00Z")
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	tests := []struct {
		name    string
		lockout *Lockout
		want    bool
	}{
		{"nil lockout", nil, false},
		{"no expiry set", &Lockout{Attempts: 2}, false},
		{"expiry in future", &Lockout{Attempts: 4, Expiry: &future}, true},
		{"expiry in past", &Lockout{Attempts: 4, Expiry: &past}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.lockout.IsActive(now); got != tt.want {
				t.Errorf("IsActive() = %v, want %v", got, tt.want)
			}
		})
	}
}
