package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kaamsetu-in/kaamsetu/internal/payment"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PaymentHandler handles checkout and gateway callbacks.
type PaymentHandler struct {
	db      *gorm.DB
	settler *payment.Settler
	gateway payment.OrderCreator
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(db *gorm.DB, settler *payment.Settler, gateway payment.OrderCreator) *PaymentHandler {
	return &PaymentHandler{db: db, settler: settler, gateway: gateway}
}

// checkoutRequest defines the checkout request body.
type checkoutRequest struct {
	PlanID uint64 `json:"plan_id"`
}

// Checkout creates a gateway order for a credit pack purchase.
func (h *PaymentHandler) Checkout(c *gin.Context) {
	userID := getUserID(c)

	var body checkoutRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.PlanID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan_id is required"})
		return
	}

	record, errBegin := h.settler.BeginCheckout(c.Request.Context(), h.gateway, userID, body.PlanID)
	if errBegin != nil {
		if errors.Is(errBegin, payment.ErrInvalidPlan) {
			c.JSON(http.StatusNotFound, gin.H{"error": "plan not found"})
			return
		}
		log.WithError(errBegin).Error("payment: checkout failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "create order failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"order_id": record.GatewayOrderID,
		"amount":   record.Amount,
		"currency": record.Currency,
		"receipt":  record.Receipt,
	})
}

// callbackRequest defines the gateway callback body.
type callbackRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
	PlanID    uint64 `json:"plan_id"`
}

// Callback verifies the gateway signature and settles the purchase.
func (h *PaymentHandler) Callback(c *gin.Context) {
	userID := getUserID(c)

	var body callbackRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	account, errSettle := h.settler.VerifyAndSettle(c.Request.Context(), body.OrderID, body.PaymentID, body.Signature, body.PlanID, userID)
	if errSettle != nil {
		switch {
		case errors.Is(errSettle, payment.ErrInvalidSignature):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		case errors.Is(errSettle, payment.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		case errors.Is(errSettle, payment.ErrOrderFailed):
			c.JSON(http.StatusConflict, gin.H{"error": "order already failed, contact support"})
		case errors.Is(errSettle, payment.ErrInvalidPlan):
			c.JSON(http.StatusConflict, gin.H{"error": "plan no longer available, settlement held for review"})
		default:
			log.WithError(errSettle).Error("payment: settlement failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "settlement failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"plan_name":         account.PlanName,
		"views_allowed":     account.ViewsAllowed,
		"views_used":        account.ViewsUsed,
		"credits_remaining": account.Remaining(),
	})
}
