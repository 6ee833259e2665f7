package handler

import (
	"net/http"

	"pastpapers/internal/logger"
	"pastpapers/internal/service"
	"pastpapers/pkg/mpesa"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// callbackAck is the body Daraja expects back; anything else makes it retry.
var callbackAck = gin.H{"ResultCode": 0, "ResultDesc": "Accepted"}

type MpesaWebhookHandler struct {
	payments *service.PaymentService
}

func NewMpesaWebhookHandler(payments *service.PaymentService) *MpesaWebhookHandler {
	return &MpesaWebhookHandler{payments: payments}
}

// Callback receives the STK result pushed by Daraja. It always acknowledges:
// a body we cannot use is logged, and polling still settles the payment.
func (h *MpesaWebhookHandler) Callback(c *gin.Context) {
	cb, err := mpesa.ParseCallback(c.Request.Body)
	if err != nil {
		logger.Warn(c, "invalid mpesa callback", zap.Error(err))
		c.JSON(http.StatusOK, callbackAck)
		return
	}
	if _, err := h.payments.HandleCallback(c.Request.Context(), cb); err != nil {
		logger.Error(c, "store mpesa callback", err, zap.String("checkout_request_id", cb.CheckoutRequestID))
	}
	c.JSON(http.StatusOK, callbackAck)
}
