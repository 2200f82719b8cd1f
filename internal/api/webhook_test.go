package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/careloop/clinic-booking/internal/db"
	"github.com/careloop/clinic-booking/internal/payment"
)

type memPaymentRepo struct {
	byTxn map[string]*payment.Payment
}

func (r *memPaymentRepo) GetByExternalID(ctx context.Context, externalTxnID string) (*payment.Payment, error) {
	p, ok := r.byTxn[externalTxnID]
	if !ok {
		return nil, payment.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPaymentRepo) InsertIfAbsent(ctx context.Context, tx pgx.Tx, p *payment.Payment) (bool, error) {
	if _, ok := r.byTxn[p.ExternalTxnID]; ok {
		return false, nil
	}
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	cp := *p
	r.byTxn[p.ExternalTxnID] = &cp
	return true, nil
}

type okVerifier struct{}

func (okVerifier) Verify(ctx context.Context, externalTxnID string) (*payment.Verification, error) {
	return &payment.Verification{Confirmed: true, AmountCents: 5000}, nil
}

type passthroughMachine struct {
	applied bool
}

func (m *passthroughMachine) ApplyPaymentVerified(ctx context.Context, tx pgx.Tx, appointmentID, paymentID uuid.UUID) (bool, error) {
	return m.applied, nil
}

func (m *passthroughMachine) ApplyPaymentFailed(ctx context.Context, tx pgx.Tx, appointmentID, paymentID uuid.UUID) (bool, error) {
	return true, nil
}

type directRunner struct{}

func (directRunner) Run(ctx context.Context, fn db.TxFunc) error {
	return fn(ctx, nil)
}

func (directRunner) RunWith(ctx context.Context, opts db.TxOptions, fn db.TxFunc) error {
	return fn(ctx, nil)
}

const webhookKey = "hook-key"

func newWebhookRouter(machine payment.StateMachine) http.Handler {
	repo := &memPaymentRepo{byTxn: make(map[string]*payment.Payment)}
	proc := payment.NewProcessor(repo, okVerifier{}, machine, directRunner{}, zerolog.Nop())

	r := chi.NewRouter()
	r.Group(func(g chi.Router) {
		g.Use(WebhookAuthMiddleware(webhookKey))
		g.Post("/webhooks/payment", paymentWebhookHandler(proc))
	})
	return r
}

func postWebhook(t *testing.T, h http.Handler, body, auth string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPaymentWebhookApplied(t *testing.T) {
	h := newWebhookRouter(&passthroughMachine{applied: true})

	body := `{"transaction_id":"tx-123","appointment_id":"` + uuid.NewString() + `","amount_cents":5000}`

	rec := postWebhook(t, h, body, "Bearer "+webhookKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}

	var resp PaymentWebhookResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Outcome != "applied" {
		t.Errorf("outcome = %s, want applied", resp.Outcome)
	}
	if resp.TransactionID != "tx-123" {
		t.Errorf("transaction_id = %s, want tx-123", resp.TransactionID)
	}
	if resp.PaymentStatus != "verified" {
		t.Errorf("payment_status = %s, want verified", resp.PaymentStatus)
	}
}

func TestPaymentWebhookReplay(t *testing.T) {
	h := newWebhookRouter(&passthroughMachine{applied: true})

	body := `{"transaction_id":"tx-123","appointment_id":"` + uuid.NewString() + `","amount_cents":5000}`

	if rec := postWebhook(t, h, body, "Bearer "+webhookKey); rec.Code != http.StatusOK {
		t.Fatalf("first delivery status = %d", rec.Code)
	}

	rec := postWebhook(t, h, body, "Bearer "+webhookKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("replay status = %d, want 200", rec.Code)
	}

	var resp PaymentWebhookResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Outcome != "already_processed" {
		t.Errorf("replay outcome = %s, want already_processed", resp.Outcome)
	}
}

func TestPaymentWebhookNotTransitionable(t *testing.T) {
	h := newWebhookRouter(&passthroughMachine{applied: false})

	body := `{"transaction_id":"tx-gone","appointment_id":"` + uuid.NewString() + `","amount_cents":5000}`

	rec := postWebhook(t, h, body, "Bearer "+webhookKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp PaymentWebhookResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Outcome != "appointment_not_transitionable" {
		t.Errorf("outcome = %s, want appointment_not_transitionable", resp.Outcome)
	}
}

func TestPaymentWebhookUnauthorized(t *testing.T) {
	h := newWebhookRouter(&passthroughMachine{applied: true})

	body := `{"transaction_id":"tx-123","amount_cents":5000}`

	tests := []struct {
		name string
		auth string
	}{
		{"missing key", ""},
		{"wrong key", "Bearer nope"},
		{"no prefix", webhookKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postWebhook(t, h, body, tt.auth)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestPaymentWebhookBadRequest(t *testing.T) {
	h := newWebhookRouter(&passthroughMachine{applied: true})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"transaction_id":`},
		{"missing transaction id", `{"appointment_id":"` + uuid.NewString() + `","amount_cents":100}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postWebhook(t, h, tt.body, "Bearer "+webhookKey)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400; body %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestPaymentWebhookTolerantAppointmentID(t *testing.T) {
	// A garbled appointment reference is a reconciliation concern, not a
	// request error: the payment is still recorded.
	h := newWebhookRouter(&passthroughMachine{applied: false})

	body := `{"transaction_id":"tx-odd","appointment_id":"not-a-uuid","amount_cents":100}`

	rec := postWebhook(t, h, body, "Bearer "+webhookKey)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
