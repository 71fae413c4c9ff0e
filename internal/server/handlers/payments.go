package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// CallbackApplier is the slice of the reconciler this handler needs.
type CallbackApplier interface {
	ApplyCallback(ctx context.Context, checkoutRequestID string, resultCode int) error
}

type PaymentHandler struct {
	reconciler CallbackApplier
	log        zerolog.Logger
}

func NewPaymentHandler(reconciler CallbackApplier, log zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{reconciler: reconciler, log: log}
}

type stkCallbackEnvelope struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// MpesaCallback receives the provider's asynchronous result. The provider
// retries on anything but a success envelope, so this endpoint always
// acknowledges success; malformed or unmatched callbacks are logged and
// discarded.
func (h *PaymentHandler) MpesaCallback(c *gin.Context) {
	ack := gin.H{"ResultCode": 0, "ResultDesc": "Success"}

	var envelope stkCallbackEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		h.log.Warn().Err(err).Msg("malformed mpesa callback discarded")
		c.JSON(http.StatusOK, ack)
		return
	}

	cb := envelope.Body.StkCallback
	if err := h.reconciler.ApplyCallback(c.Request.Context(), cb.CheckoutRequestID, cb.ResultCode); err != nil {
		h.log.Error().Err(err).
			Str("checkout_request_id", cb.CheckoutRequestID).
			Msg("failed to apply mpesa callback")
	}

	c.JSON(http.StatusOK, ack)
}
