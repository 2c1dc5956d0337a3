package order

import (
	"errors"
	"testing"
)

func TestStateApply(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		action  Action
		want    State
		wantErr error
	}{
		{name: "Pay from authorized", state: StateAuthorized, action: ActionPay, want: StatePaid},
		{name: "Decline from open", state: StateOpen, action: ActionDecline, want: StateFailed},
		{name: "Pending review from open", state: StateOpen, action: ActionPendingReview, want: StatePendingReview},
		{name: "Pre review from open", state: StateOpen, action: ActionPreReview, want: StatePreReview},
		{name: "Pay when already paid resolves to the same state", state: StatePaid, action: ActionPay, want: StatePaid},
		{name: "Unknown action", state: StateOpen, action: Action("explode"), want: StateOpen, wantErr: ErrUnknownAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.state.Apply(tt.action)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Apply() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Apply() = %s, want %s", got, tt.want)
			}
		})
	}
}
