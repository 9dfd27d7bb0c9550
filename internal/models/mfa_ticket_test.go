package models

import (
	"testing"
	"time"
)

func TestMFATicketIsExpired(t *testing.T) {
	ticket := NewMFATicket("account1", "tok", false)
	created, ok := IDTimestamp(ticket.ID)
	if !ok {
		t.Fatalf("expected ticket ID to be a parseable ULID")
	}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"immediately after creation", created, false},
		{"59 seconds later", created.Add(59 * time.Second), false},
		{"61 seconds later", created.Add(61 * time.Second), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ticket.IsExpired(tt.now); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMFATicketIsExpiredInvalidID(t *testing.T) {
	ticket := &MFATicket{ID: "not-a-ulid"}
	if !ticket.IsExpired(time.Now()) {
		t.Errorf("expected an unparseable ID to be treated as expired")
	}
}
