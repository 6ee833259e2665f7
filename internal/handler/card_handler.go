package handler

import (
	"net/http"

	"pastpapers/pkg/payment"

	"github.com/gin-gonic/gin"
)

type CardHandler struct {
	provider payment.CardProvider
}

func NewCardHandler(provider payment.CardProvider) *CardHandler {
	return &CardHandler{provider: provider}
}

type CardPaymentRequest struct {
	CardNumber string `json:"cardNumber" binding:"required"`
	ExpiryDate string `json:"expiryDate" binding:"required"` // MM/YY
	CVV        string `json:"cvv" binding:"required"`
	Amount     int64  `json:"amount" binding:"required"`
}

func (h *CardHandler) Pay(c *gin.Context) {
	var req CardPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	res, err := h.provider.Charge(c.Request.Context(), payment.CardCharge{
		Number: req.CardNumber,
		Expiry: req.ExpiryDate,
		CVV:    req.CVV,
		Amount: req.Amount,
	})
	if err != nil {
		if payment.IsValidation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		internalError(c, "card payment failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"transactionId": res.TransactionID,
		"message":       res.Message,
	})
}
