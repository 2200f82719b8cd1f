package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrVerificationNotFound means the verifier has no record of the
// transaction. A recoverable negative result, not a crash.
var ErrVerificationNotFound = errors.New("transaction not found by verifier")

// Verification is the verifier's answer for one external transaction.
type Verification struct {
	Confirmed   bool           `json:"confirmed"`
	AmountCents int64          `json:"amount_cents"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Verifier is the opaque external verification capability. It has its own
// latency and failure profile; never call it while holding a transaction
// open.
type Verifier interface {
	Verify(ctx context.Context, externalTxnID string) (*Verification, error)
}

// HTTPVerifier checks transactions against a remote verification service.
type HTTPVerifier struct {
	baseURL string
	client  *http.Client
}

func NewHTTPVerifier(baseURL string, timeout time.Duration) *HTTPVerifier {
	return &HTTPVerifier{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (v *HTTPVerifier) Verify(ctx context.Context, externalTxnID string) (*Verification, error) {
	u := fmt.Sprintf("%s/transactions/%s", v.baseURL, url.PathEscape(externalTxnID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build verify request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call verifier: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var out Verification
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode verifier response: %w", err)
		}
		return &out, nil
	case http.StatusNotFound:
		return nil, ErrVerificationNotFound
	default:
		return nil, fmt.Errorf("verifier returned status %d", resp.StatusCode)
	}
}
