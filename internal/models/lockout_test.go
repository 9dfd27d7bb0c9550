package models

import (
	"testing"
	"time"
)

func TestRecordPasswordFailureEscalation(t *testing.T) {
	now := time.Now().UTC()
	a := &Account{}

	a.RecordPasswordFailure(now) // 1
	if a.Lockout.Attempts != 1 || a.Lockout.Expiry != nil {
		t.Fatalf("after 1 failure: attempts=%d expiry=%v, want 1/nil", a.Lockout.Attempts, a.Lockout.Expiry)
	}

	a.RecordPasswordFailure(now) // 2
	if a.Lockout.Attempts != 2 || a.Lockout.Expiry != nil {
		t.Fatalf("after 2 failures: attempts=%d expiry=%v, want 2/nil", a.Lockout.Attempts, a.Lockout.Expiry)
	}

	a.RecordPasswordFailure(now) // 3
	if a.Lockout.Attempts != 3 || a.Lockout.Expiry == nil {
		t.Fatalf("after 3 failures: expected a 60s lock to be set")
	}
	if got := a.Lockout.Expiry.Sub(now); got != 60*time.Second {
		t.Errorf("3rd failure lock duration = %v, want 60s", got)
	}

	a.RecordPasswordFailure(now) // 4
	if got := a.Lockout.Expiry.Sub(now); got != 300*time.Second {
		t.Errorf("4th failure lock duration = %v, want 300s", got)
	}

	a.RecordPasswordFailure(now) // 5
	if got := a.Lockout.Expiry.Sub(now); got != 3600*time.Second {
		t.Errorf("5th failure lock duration = %v, want 3600s", got)
	}

	a.RecordPasswordFailure(now) // 6, stays at 3600s
	if got := a.Lockout.Expiry.Sub(now); got != 3600*time.Second {
		t.Errorf("6th failure lock duration = %v, want 3600s", got)
	}
}

func TestCheckLockout(t *testing.T) {
	now := time.Now().UTC()
	a := &Account{}
	if err := a.CheckLockout(now); err != nil {
		t.Errorf("no lockout: CheckLockout() = %v, want nil", err)
	}

	future := now.Add(time.Minute)
	a.Lockout = &Lockout{Attempts: 3, Expiry: &future}
	if err := a.CheckLockout(now); err == nil || err.Kind != KindLockedOut {
		t.Errorf("active lockout: CheckLockout() = %v, want LockedOut", err)
	}

	past := now.Add(-time.Minute)
	a.Lockout = &Lockout{Attempts: 3, Expiry: &past}
	if err := a.CheckLockout(now); err != nil {
		t.Errorf("expired lockout: CheckLockout() = %v, want nil", err)
	}
}

func TestMFAMethods(t *testing.T) {
	a := &Account{PasswordHash: "hash"}
	methods := a.MFAMethods()
	if len(methods) != 1 || methods[0] != MFAMethodPassword {
		t.Errorf("MFAMethods() = %v, want [Password]", methods)
	}

	a.MFA.RecoveryCodes = []string{"a-b"}
	a.MFA.TotpStatus = TotpEnabled
	methods = a.MFAMethods()
	if len(methods) != 3 {
		t.Errorf("MFAMethods() = %v, want 3 methods", methods)
	}
}
