package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/careloop/clinic-booking/internal/appointment"
	"github.com/careloop/clinic-booking/internal/db"
	"github.com/careloop/clinic-booking/internal/schedule"
)

func createAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		slotID, err := uuid.Parse(req.SlotID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot_id must be a valid UUID")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		appt, err := svc.Book(r.Context(), slotID, patientID)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			if errors.Is(err, appointment.ErrAppointmentNotFound) {
				writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req CancelAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.Cancel(r.Context(), id, appointment.CancelReason(req.Reason), req.Note)
		if err != nil {
			handleCancelError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func completeAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.Complete(r.Context(), id)
		if err != nil {
			handleCancelError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listAvailabilityHandler(avail *schedule.Availability) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		q := r.URL.Query()

		if date := q.Get("date"); date != "" {
			day, err := time.Parse("2006-01-02", date)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
				return
			}

			slots, err := avail.ListFree(r.Context(), doctorID, day)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
				return
			}

			writeJSON(w, http.StatusOK, toSlotResponses(slots))
			return
		}

		from, err := time.Parse("2006-01-02", q.Get("from"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_range", "provide date= or from=/to= as YYYY-MM-DD")
			return
		}
		to, err := time.Parse("2006-01-02", q.Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_range", "provide date= or from=/to= as YYYY-MM-DD")
			return
		}

		days, err := avail.ListFreeRange(r.Context(), doctorID, from, to)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		out := make([]DayAvailabilityResponse, 0, len(days))
		for _, d := range days {
			out = append(out, DayAvailabilityResponse{
				Date:  d.Date.Format("2006-01-02"),
				Slots: toSlotResponses(d.Slots),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func toSlotResponses(slots []schedule.TimeSlot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotResponse{ID: s.ID, Start: s.StartTime, End: s.EndTime})
	}
	return out
}

func createTemplateHandler(repo schedule.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateTemplateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		tpl, err := templateFromRequest(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_template", err.Error())
			return
		}

		if err := tpl.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_template", err.Error())
			return
		}

		existing, err := repo.ListActiveTemplates(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		if err := schedule.CheckNoConflict(tpl, existing); err != nil {
			writeError(w, http.StatusConflict, "template_conflict", err.Error())
			return
		}

		if err := repo.CreateTemplate(r.Context(), tpl); err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusCreated, TemplateResponse{ID: tpl.ID, DoctorID: tpl.DoctorID, Active: tpl.Active})
	}
}

func templateFromRequest(req CreateTemplateRequest) (*schedule.Template, error) {
	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		return nil, errors.New("doctor_id must be a valid UUID")
	}
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return nil, errors.New("start_date must be YYYY-MM-DD")
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		return nil, errors.New("end_date must be YYYY-MM-DD")
	}

	var weekdays schedule.Weekdays
	for _, d := range req.Weekdays {
		if d < 0 || d > 6 {
			return nil, errors.New("weekdays must be 0 (Sunday) through 6 (Saturday)")
		}
		weekdays |= schedule.WeekdaysOf(time.Weekday(d))
	}

	breaks := make([]schedule.BreakWindow, 0, len(req.Breaks))
	for _, b := range req.Breaks {
		breaks = append(breaks, schedule.BreakWindow{StartMin: b.StartMin, EndMin: b.EndMin})
	}

	return &schedule.Template{
		DoctorID:    doctorID,
		StartDate:   start,
		EndDate:     end,
		Weekdays:    weekdays,
		DayStartMin: req.DayStartMin,
		DayEndMin:   req.DayEndMin,
		SlotMinutes: req.SlotMinutes,
		Breaks:      breaks,
		Active:      true,
	}, nil
}

func generateSlotsHandler(repo schedule.Repository, gen *schedule.Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_template_id", "id must be a valid UUID")
			return
		}

		var req GenerateSlotsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		from, err := time.Parse("2006-01-02", req.From)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_range", "from must be YYYY-MM-DD")
			return
		}
		to, err := time.Parse("2006-01-02", req.To)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_range", "to must be YYYY-MM-DD")
			return
		}

		tpl, err := repo.GetTemplateByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, schedule.ErrTemplateNotFound) {
				writeError(w, http.StatusNotFound, "template_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		inserted, err := gen.Generate(r.Context(), tpl, from, to)
		if err != nil {
			if errors.Is(err, schedule.ErrInvalidTemplate) {
				writeError(w, http.StatusBadRequest, "invalid_template", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, GenerateSlotsResponse{Inserted: inserted})
	}
}

func handleBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, schedule.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, appointment.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", "slot is not available, pick another one")
	case errors.Is(err, db.ErrTxBusy):
		writeError(w, http.StatusServiceUnavailable, "store_busy", "could not start transaction in time, retry")
	case errors.Is(err, db.ErrTxTimeout):
		writeError(w, http.StatusServiceUnavailable, "transaction_timeout", "operation timed out and was rolled back, retry")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleCancelError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrInvalidCancelReason):
		writeError(w, http.StatusBadRequest, "invalid_cancel_reason", err.Error())
	case errors.Is(err, appointment.ErrNoteTooLong):
		writeError(w, http.StatusBadRequest, "note_too_long", err.Error())
	case errors.Is(err, db.ErrTxBusy):
		writeError(w, http.StatusServiceUnavailable, "store_busy", "could not start transaction in time, retry")
	case errors.Is(err, db.ErrTxTimeout):
		writeError(w, http.StatusServiceUnavailable, "transaction_timeout", "operation timed out and was rolled back, retry")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
