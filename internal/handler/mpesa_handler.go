package handler

import (
	"errors"
	"net/http"

	"pastpapers/internal/checkout"
	"pastpapers/internal/domain"
	"pastpapers/internal/logger"
	"pastpapers/internal/middleware"
	"pastpapers/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type MpesaHandler struct {
	initiator *checkout.Initiator
	checker   *checkout.StatusChecker
	poller    *checkout.Poller
	payments  *service.PaymentService
	audit     *service.AuditService
}

func NewMpesaHandler(
	initiator *checkout.Initiator,
	checker *checkout.StatusChecker,
	poller *checkout.Poller,
	payments *service.PaymentService,
	audit *service.AuditService,
) *MpesaHandler {
	return &MpesaHandler{initiator: initiator, checker: checker, poller: poller, payments: payments, audit: audit}
}

type InitiateRequest struct {
	PhoneNumber string `json:"phoneNumber" binding:"required"`
	Amount      int64  `json:"amount"`
	// Order, when sent, makes the server record the sale once the payment completes.
	Order *OrderRequest `json:"order"`
}

type OrderRequest struct {
	CustomerEmail string `json:"customerEmail"`
	PaperIDs      []uint `json:"paperIds"`
}

type QueryRequest struct {
	CheckoutRequestID string `json:"checkoutRequestId" binding:"required"`
}

// Initiate sends the STK prompt to the customer's phone.
func (h *MpesaHandler) Initiate(c *gin.Context) {
	var req InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	userID := middleware.CurrentUserID(c)

	var order *checkout.Order
	if req.Order != nil {
		order = &checkout.Order{
			CustomerEmail: req.Order.CustomerEmail,
			PaperIDs:      req.Order.PaperIDs,
			TotalAmount:   req.Amount,
			UserID:        userID,
		}
		in := checkout.SaleInput{
			CustomerEmail: order.CustomerEmail,
			PaperIDs:      order.PaperIDs,
			TotalAmount:   order.TotalAmount,
			PaymentMethod: domain.PaymentMethodMpesa,
		}
		if err := in.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
	}

	res := h.initiator.Initiate(c.Request.Context(), checkout.PaymentRequest{
		PhoneNumber: req.PhoneNumber,
		Amount:      req.Amount,
		UserID:      userID,
	})
	if !res.Success {
		c.JSON(failureStatus(res.Failure.Kind), gin.H{
			"success": false,
			"error":   res.Failure.Kind,
			"code":    res.Failure.Code,
			"message": res.Failure.Message,
		})
		return
	}

	entry := auditEntry(c)
	entry.Action = domain.AuditMpesaInitiated
	entry.Resource = "mpesa_payment"
	entry.ResourceID = res.CheckoutRequestID
	entry.Metadata = map[string]any{"amount": req.Amount, "serverTracked": order != nil}
	h.audit.Record(c.Request.Context(), entry)

	if order != nil {
		if _, err := h.poller.Start(res.CheckoutRequestID, order); err != nil {
			logger.Error(c, "start mpesa polling", err, zap.String("checkout_request_id", res.CheckoutRequestID))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"checkoutRequestId": res.CheckoutRequestID,
		"merchantRequestId": res.MerchantRequestID,
		"message":           res.CustomerMessage,
		"phoneNumber":       res.PhoneNumber,
	})
}

// Query answers one status query for an attempt. A settled attempt is answered
// from the stored outcome without asking the gateway again.
func (h *MpesaHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.checker.Check(c.Request.Context(), req.CheckoutRequestID)
	if err != nil {
		logger.Warn(c, "mpesa status query failed", zap.String("checkout_request_id", req.CheckoutRequestID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not reach M-Pesa, please retry"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ResultCode": res.ResultCode,
		"ResultDesc": res.ResultDesc,
		"status":     res.State,
	})
}

// Status reports the server-side state of an attempt, including a running poll session.
func (h *MpesaHandler) Status(c *gin.Context) {
	id := c.Param("checkoutRequestId")
	st, err := h.payments.Status(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrPaymentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
			return
		}
		internalError(c, "failed to load payment", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Cancel stops server-side polling for an attempt the customer abandoned. An
// attempt started from an account can only be cancelled by that account.
func (h *MpesaHandler) Cancel(c *gin.Context) {
	id := c.Param("checkoutRequestId")
	sess, ok := h.poller.Session(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active polling for this payment"})
		return
	}
	owner, err := h.payments.Owner(c.Request.Context(), id)
	if err != nil && !errors.Is(err, service.ErrPaymentNotFound) {
		internalError(c, "failed to load payment", err)
		return
	}
	if owner != nil {
		if caller := middleware.CurrentUserID(c); caller == nil || *caller != *owner {
			c.JSON(http.StatusForbidden, gin.H{"error": "payment belongs to another account"})
			return
		}
	}
	sess.Cancel()
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func failureStatus(kind checkout.FailureKind) int {
	switch kind {
	case checkout.InvalidPhoneFormat, checkout.InvalidAmount, checkout.GatewayRejected:
		return http.StatusBadRequest
	case checkout.GatewayAuthError:
		return http.StatusBadGateway
	default:
		return http.StatusServiceUnavailable
	}
}
