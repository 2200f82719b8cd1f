package api

import (
	"encoding/json"
	"net/http"

	"github.com/careloop/clinic-booking/internal/appointment"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:         a.ID,
		SlotID:     a.SlotID,
		PatientID:  a.PatientID,
		DoctorID:   a.DoctorID,
		Status:     string(a.Status),
		CancelNote: a.CancelNote,
		ExpiresAt:  a.ExpiresAt,
	}
	if a.CancelReason != nil {
		r := string(*a.CancelReason)
		resp.CancelReason = &r
	}
	return resp
}
