package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/careloop/clinic-booking/internal/payment"
)

// paymentWebhookHandler ingests provider payment events. Authentication is
// enforced by WebhookAuthMiddleware before this runs. Replays and no-op
// races both answer 200: the provider must never need to tell "already
// handled" from "newly handled".
func paymentWebhookHandler(proc *payment.Processor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not read body")
			return
		}

		var req PaymentWebhookRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if req.TransactionID == "" {
			writeError(w, http.StatusBadRequest, "missing_transaction_id", "transaction_id is required")
			return
		}

		// The appointment reference may already be gone; that is a
		// reconciliation outcome, not a request error.
		appointmentID, _ := uuid.Parse(req.AppointmentID)

		result, err := proc.Process(r.Context(), payment.WebhookEvent{
			ExternalTxnID: req.TransactionID,
			AppointmentID: appointmentID,
			AmountCents:   req.AmountCents,
			RawPayload:    body,
		})
		if err != nil {
			// Store or verifier failure: the provider's retry policy plus
			// deduplication make redelivery safe.
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := PaymentWebhookResponse{
			Outcome:       string(result.Outcome),
			TransactionID: req.TransactionID,
		}
		if result.Payment != nil {
			resp.PaymentStatus = string(result.Payment.Status)
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
