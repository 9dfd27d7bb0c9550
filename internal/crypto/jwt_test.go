package crypto

import (
	"testing"
	"time"
)

func TestStateSignerSignAndVerify(t *testing.T) {
	signer := NewStateSigner([]byte("test-secret-at-least-32-bytes!!"), time.Minute)

	token, err := signer.Sign("01ARZ3NDEKTSV4RRFFQ69G5FAV")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	got, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got != "01ARZ3NDEKTSV4RRFFQ69G5FAV" {
		t.Errorf("Verify() = %q, want %q", got, "01ARZ3NDEKTSV4RRFFQ69G5FAV")
	}
}

func TestStateSignerRejectsWrongSecret(t *testing.T) {
	signer := NewStateSigner([]byte("secret-one-at-least-32-bytes!!!!"), time.Minute)
	other := NewStateSigner([]byte("secret-two-at-least-32-bytes!!!!"), time.Minute)

	token, err := signer.Sign("state")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	if _, err := other.Verify(token); err == nil {
		t.Errorf("Verify() with wrong secret succeeded, want error")
	}
}

func TestStateSignerRejectsExpiredToken(t *testing.T) {
	signer := NewStateSigner([]byte("test-secret-at-least-32-bytes!!"), -time.Minute)

	token, err := signer.Sign("state")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	if _, err := signer.Verify(token); err == nil {
		t.Errorf("Verify() of an already-expired token succeeded, want error")
	}
}
