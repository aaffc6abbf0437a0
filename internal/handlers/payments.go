package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vivekcuts/vivekcuts-backend/internal/services"
)

type CreateOrderInput struct {
	ProductID string `json:"productId"`
	Email     string `json:"email"`
}

type VerifyPaymentInput struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

// CreateRazorpayOrder handles POST /create-razorpay-order.
func CreateRazorpayOrder(svc *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input CreateOrderInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingFields})
			return
		}

		result, err := svc.CreateOrder(c.Request.Context(), services.CreateOrderInput{
			ProductID: input.ProductID,
			Email:     input.Email,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// VerifyPayment handles POST /verify-payment.
func VerifyPayment(svc *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input VerifyPaymentInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing payment details"})
			return
		}

		result, err := svc.VerifyPayment(c.Request.Context(), services.VerifyPaymentInput{
			RazorpayOrderID:   input.RazorpayOrderID,
			RazorpayPaymentID: input.RazorpayPaymentID,
			RazorpaySignature: input.RazorpaySignature,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":      true,
			"message":      "Payment verified. Check your email!",
			"downloadLink": result.DownloadLink,
		})
	}
}
