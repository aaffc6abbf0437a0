package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vivekcuts/vivekcuts-backend/internal/services"
)

const (
	msgMissingFields    = "Missing required fields"
	msgInvalidEmail     = "Invalid email format"
	msgTooManyRequests  = "Too many requests. Please try again later."
	msgCaptchaFailed    = "CAPTCHA verification failed. Please try again."
	msgProductNotFound  = "Product not found"
	msgRequiresPurchase = "This product requires purchase"
	msgCodeGeneration   = "Failed to generate verification code"
	msgCodeEmailFailed  = "Failed to send verification email. Please try again."
	msgExpiredOrMissing = "Invalid or expired verification code"
	msgAttemptsExceeded = "Maximum verification attempts exceeded. Please request a new code."
	msgCodeMismatch     = "Invalid verification code"
	msgSigningFailed    = "Failed to generate download link"
	msgLinkEmailFailed  = "Failed to send email, but here is your download link"
	msgInternal         = "Internal server error"
)

// respondError writes the client-facing body for err. Anything unrecognised
// becomes a generic 500; the cause is attached to the context for the request logger.
func respondError(c *gin.Context, err error) {
	var mismatch *services.CodeMismatchError
	var delivery *services.DeliveryError

	switch {
	case errors.As(err, &delivery):
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgLinkEmailFailed, "downloadLink": delivery.Link})
	case errors.As(err, &mismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": msgCodeMismatch, "remainingAttempts": mismatch.Remaining})

	case errors.Is(err, services.ErrMissingFields):
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingFields})
	case errors.Is(err, services.ErrInvalidEmail):
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidEmail})
	case errors.Is(err, services.ErrMissingPayment):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing payment details"})
	case errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})

	case errors.Is(err, services.ErrQuotaExceeded):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": msgTooManyRequests, "remaining": 0})
	case errors.Is(err, services.ErrCaptchaFailed):
		c.JSON(http.StatusBadRequest, gin.H{"error": msgCaptchaFailed})
	case errors.Is(err, services.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": msgProductNotFound})
	case errors.Is(err, services.ErrProductNotEligible):
		c.JSON(http.StatusBadRequest, gin.H{"error": msgRequiresPurchase})
	case errors.Is(err, services.ErrProductIsFree):
		c.JSON(http.StatusBadRequest, gin.H{"error": "This product is free. Use the free download endpoint."})
	case errors.Is(err, services.ErrCodeExpiredOrMissing):
		c.JSON(http.StatusBadRequest, gin.H{"error": msgExpiredOrMissing})
	case errors.Is(err, services.ErrAttemptsExceeded):
		c.JSON(http.StatusBadRequest, gin.H{"error": msgAttemptsExceeded})

	case errors.Is(err, services.ErrInvalidSignature):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment signature"})
	case errors.Is(err, services.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
	case errors.Is(err, services.ErrOrderNotPayable):
		c.JSON(http.StatusConflict, gin.H{"error": "Order is not in a deliverable state"})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})

	case errors.Is(err, services.ErrStorageSigning):
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgSigningFailed})
	case errors.Is(err, services.ErrEmailDispatch):
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgCodeEmailFailed})
	case errors.Is(err, services.ErrCodeGeneration):
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgCodeGeneration})
	case errors.Is(err, services.ErrPaymentNotConfigured):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Payment system not configured"})
	case errors.Is(err, services.ErrGatewayFailed):
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create payment order"})

	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
	}
}

// validationMessage strips the sentinel prefix so clients see only the detail.
func validationMessage(err error) string {
	msg := err.Error()
	if detail, ok := strings.CutPrefix(msg, services.ErrValidation.Error()+": "); ok {
		return detail
	}
	return msg
}
