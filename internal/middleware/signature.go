package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/finbridge/plaid-link-go/internal/audit"
	"github.com/finbridge/plaid-link-go/internal/util"
)

// SignatureHeader carries the webhook signature from Plaid.
const SignatureHeader = "plaid-verification"

// PlaidSignatureMiddleware verifies webhook authenticity. A present but
// invalid signature always rejects the request. A missing signature is
// governed by the required flag: when off, unsigned webhooks are
// processed (the legacy fail-open policy, now an explicit deployment
// choice).
type PlaidSignatureMiddleware struct {
	secret   string
	required bool
}

func NewPlaidSignatureMiddleware(secret string, required bool) *PlaidSignatureMiddleware {
	return &PlaidSignatureMiddleware{secret: secret, required: required}
}

func (m *PlaidSignatureMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.secret == "" {
			log.Warn().Msg("plaid signature verification bypassed: PLAID_WEBHOOK_SECRET is not configured")
			next.ServeHTTP(w, r)
			return
		}

		signature := r.Header.Get(SignatureHeader)
		if signature == "" {
			if m.required {
				audit.LogFromRequest(r, audit.Event{Type: audit.EventSignatureFailure, Details: map[string]interface{}{
					"reason": "missing signature",
				}})
				writeJSON(w, http.StatusUnauthorized, map[string]string{
					"error": "Missing signature",
				})
				return
			}
			audit.LogFromRequest(r, audit.Event{Type: audit.EventUnsignedWebhook})
			log.Warn().Msg("plaid webhook without signature accepted (signature not required)")
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.Error().Err(err).Msg("plaid signature middleware: failed to read body")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Failed to read request body",
			})
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		computed := util.HmacSHA256(m.secret, string(body))
		if !util.ConstantTimeEqual(computed, signature) {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventSignatureFailure, Details: map[string]interface{}{
				"reason": "signature mismatch",
			}})
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid signature",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
