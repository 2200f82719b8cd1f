package appointment

import (
	"errors"
	"testing"
)

func TestNextStatus(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		event   Event
		want    Status
		wantErr bool
	}{
		{"pending + payment_verified", StatusPending, EventPaymentVerified, StatusConfirmed, false},
		{"pending + payment_failed", StatusPending, EventPaymentFailed, StatusCancelled, false},
		{"pending + cancel", StatusPending, EventCancel, StatusCancelled, false},
		{"pending + complete", StatusPending, EventComplete, "", true},
		{"confirmed + cancel", StatusConfirmed, EventCancel, StatusCancelled, false},
		{"confirmed + complete", StatusConfirmed, EventComplete, StatusCompleted, false},
		{"confirmed + payment_verified", StatusConfirmed, EventPaymentVerified, "", true},
		{"completed is terminal", StatusCompleted, EventCancel, "", true},
		{"cancelled is terminal", StatusCancelled, EventPaymentVerified, "", true},
		{"cancelled + cancel", StatusCancelled, EventCancel, "", true},
		{"unknown status", Status("limbo"), EventCancel, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextStatus(tt.from, tt.event)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("NextStatus() error = %v, want ErrInvalidTransition", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NextStatus() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("NextStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestValidCancelReason(t *testing.T) {
	valid := []CancelReason{
		ReasonPatientRequest, ReasonDoctorUnavailable, ReasonPaymentFailed,
		ReasonAdministrative, ReasonNoShow, ReasonOther,
	}
	for _, r := range valid {
		if !ValidCancelReason(r) {
			t.Errorf("ValidCancelReason(%s) = false, want true", r)
		}
	}

	for _, r := range []CancelReason{"", "whim", "PATIENT_REQUEST"} {
		if ValidCancelReason(r) {
			t.Errorf("ValidCancelReason(%q) = true, want false", r)
		}
	}
}
