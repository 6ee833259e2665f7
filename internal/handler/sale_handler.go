package handler

import (
	"errors"
	"net/http"
	"strconv"

	"pastpapers/internal/checkout"
	"pastpapers/internal/middleware"
	"pastpapers/internal/service"

	"github.com/gin-gonic/gin"
)

type SaleHandler struct {
	svc *service.SaleService
}

func NewSaleHandler(svc *service.SaleService) *SaleHandler {
	return &SaleHandler{svc: svc}
}

type CreateSaleRequest struct {
	CustomerEmail     string `json:"customerEmail"`
	PaperIDs          []uint `json:"paperIds"`
	TotalAmount       int64  `json:"totalAmount"`
	PaymentMethod     string `json:"paymentMethod"`
	CheckoutRequestID string `json:"checkoutRequestId"`
}

// Create records a sale. Signed-in buyers get the papers linked to their account.
func (h *SaleHandler) Create(c *gin.Context) {
	var req CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sale, err := h.svc.Create(c.Request.Context(), checkout.SaleInput{
		CustomerEmail:     req.CustomerEmail,
		PaperIDs:          req.PaperIDs,
		TotalAmount:       req.TotalAmount,
		PaymentMethod:     req.PaymentMethod,
		UserID:            middleware.CurrentUserID(c),
		CheckoutRequestID: req.CheckoutRequestID,
	}, auditEntry(c))
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrEmptyPaperIDs),
			errors.Is(err, checkout.ErrInvalidEmail),
			errors.Is(err, checkout.ErrInvalidTotal),
			errors.Is(err, checkout.ErrInvalidPaymentMethod),
			errors.Is(err, service.ErrAmountMismatch):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrPaymentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrPaymentNotCompleted):
			c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
		default:
			internalError(c, "failed to process sale", err)
		}
		return
	}
	c.JSON(http.StatusCreated, sale)
}

// List returns recorded sales, newest first (admin).
func (h *SaleHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	sales, total, err := h.svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		internalError(c, "failed to fetch sales", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales": sales, "total": total})
}
