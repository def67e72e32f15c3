package server

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"cnom/internal/middleware"
	"cnom/internal/observability"
	"cnom/internal/service"

	"github.com/gofiber/fiber/v2"
)

const (
	// HeaderCallbackSignature carries the hex HMAC-SHA256 of the raw callback body.
	HeaderCallbackSignature = "X-Callback-Signature"

	webhookAllowHeaders = "authorization, x-client-info, apikey, content-type, x-callback-signature"
)

// airtelCallback is the provider's callback body.
type airtelCallback struct {
	Transaction struct {
		ID            string       `json:"id"`
		StatusCode    providerCode `json:"status_code"`
		Message       string       `json:"message"`
		AirtelMoneyID string       `json:"airtel_money_id"`
	} `json:"transaction"`
}

// providerCode accepts status codes sent either as JSON strings or numbers.
type providerCode string

func (p *providerCode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = providerCode(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return err
	}
	*p = providerCode(n.String())
	return nil
}

// webhookResponse is the provider-facing acknowledgement.
type webhookResponse struct {
	Success bool   `json:"success,omitempty"`
	Status  string `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
}

func setWebhookCORS(c *fiber.Ctx) {
	c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
	c.Set(fiber.HeaderAccessControlAllowHeaders, webhookAllowHeaders)
	c.Set(fiber.HeaderAccessControlAllowMethods, "POST, OPTIONS")
}

// AirtelMoneyPreflight answers CORS preflight for the payment webhook.
// @Summary Payment webhook preflight
// @Tags webhooks
// @Success 200 {string} string "ok"
// @Router /webhooks/airtel-money [options]
func (s *Server) AirtelMoneyPreflight(c *fiber.Ctx) error {
	setWebhookCORS(c)
	return c.Status(fiber.StatusOK).SendString("ok")
}

// AirtelMoneyCallback reconciles a payment from an Airtel Money callback.
// @Summary Airtel Money payment callback
// @Description Settles the pending payment named by transaction.id. Status codes "TS" and "200" complete it; anything else fails it.
// @Tags webhooks
// @Accept json
// @Produce json
// @Param X-Callback-Signature header string false "hex HMAC-SHA256 of the body, required when signing is configured"
// @Success 200 {object} webhookResponse
// @Failure 400 {object} webhookResponse
// @Failure 401 {object} webhookResponse
// @Failure 404 {object} webhookResponse
// @Failure 500 {object} webhookResponse
// @Router /webhooks/airtel-money [post]
func (s *Server) AirtelMoneyCallback(c *fiber.Ctx) error {
	setWebhookCORS(c)
	ctx := c.UserContext()
	body := c.Body()

	if secret := s.config.AirtelCallbackSecret; secret != "" {
		if !validSignature([]byte(secret), body, c.Get(HeaderCallbackSignature)) {
			observability.PaymentCallbacks.WithLabelValues(observability.OutcomeBadSignature).Inc()
			middleware.Logger.WarnContext(ctx, "payment callback rejected: bad signature", "ip", c.IP())
			return c.Status(fiber.StatusUnauthorized).JSON(webhookResponse{Error: "Invalid signature"})
		}
	}

	// A malformed body reaches the reconciler without a transaction id and is
	// rejected there, so it is journaled like any other invalid callback.
	var payload airtelCallback
	if err := json.Unmarshal(body, &payload); err != nil {
		middleware.Logger.WarnContext(ctx, "malformed payment callback body", "error", err)
		payload = airtelCallback{}
	}

	res, err := s.reconciler.Reconcile(ctx, service.CallbackInput{
		TransactionID: payload.Transaction.ID,
		StatusCode:    string(payload.Transaction.StatusCode),
		Message:       payload.Transaction.Message,
		AirtelMoneyID: payload.Transaction.AirtelMoneyID,
	})
	switch {
	case err == nil:
		return c.Status(fiber.StatusOK).JSON(webhookResponse{Success: true, Status: string(res.Status)})
	case errors.Is(err, service.ErrInvalidCallback):
		return c.Status(fiber.StatusBadRequest).JSON(webhookResponse{Error: "Invalid callback data"})
	case errors.Is(err, service.ErrPaymentNotFound):
		return c.Status(fiber.StatusNotFound).JSON(webhookResponse{Error: "Payment not found"})
	case errors.Is(err, service.ErrUpdateFailed):
		return c.Status(fiber.StatusInternalServerError).JSON(webhookResponse{Error: "Failed to update payment"})
	default:
		middleware.Logger.ErrorContext(ctx, "payment callback failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(webhookResponse{Error: "Internal server error"})
	}
}

func validSignature(secret, body []byte, signature string) bool {
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(got) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(body)
	return hmac.Equal(mac.Sum(nil), got)
}
