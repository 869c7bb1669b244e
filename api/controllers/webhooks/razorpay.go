package webhooks

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/vastralabs/vastra-backend/api/responses"
	"github.com/vastralabs/vastra-backend/internal/payments"
	pkgerrors "github.com/vastralabs/vastra-backend/pkg/errors"
	"github.com/vastralabs/vastra-backend/pkg/logger"
)

const maxWebhookBodyBytes = 1 << 20

// WebhookVerifier checks the gateway's signature over the raw body.
type WebhookVerifier interface {
	VerifyWebhookSignature(body []byte, signature string) bool
}

type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// RazorpayWebhook reconciles server-to-server payment notifications. The
// webhook signature covers the raw body, so verification happens before any
// JSON parsing.
func RazorpayWebhook(svc payments.Service, verifier WebhookVerifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read webhook body"))
			return
		}

		signature := strings.TrimSpace(r.Header.Get("X-Razorpay-Signature"))
		if verifier == nil || !verifier.VerifyWebhookSignature(body, signature) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeSignature, "webhook signature mismatch"))
			return
		}

		var event webhookEvent
		if err := json.Unmarshal(body, &event); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed webhook payload"))
			return
		}

		if event.Event != "payment.captured" {
			// Acknowledge everything else so the gateway stops retrying.
			responses.WriteSuccess(w, map[string]string{"status": "ignored"})
			return
		}

		entity := event.Payload.Payment.Entity
		if entity.ID == "" || entity.OrderID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "webhook payload missing payment identifiers"))
			return
		}

		// The webhook signature already authenticated this notification, so
		// the per-payment HMAC carried by frontend confirmations is absent.
		order, err := svc.ConfirmFromWebhook(r.Context(), payments.WebhookConfirmInput{
			GatewayOrderID:   entity.OrderID,
			GatewayPaymentID: entity.ID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"order": order})
	}
}
