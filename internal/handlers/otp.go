package handlers

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vivekcuts/vivekcuts-backend/internal/services"
)

type SendOTPInput struct {
	Email        string `json:"email"`
	ProductID    string `json:"productId"`
	CaptchaToken string `json:"captchaToken"`
}

type VerifyOTPInput struct {
	Email     string `json:"email"`
	OTP       string `json:"otp"`
	ProductID string `json:"productId"`
}

// SendOTP handles POST /send-otp.
func SendOTP(svc *services.OTPService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input SendOTPInput
		if err := c.ShouldBindJSON(&input); err != nil {
			// The quota is checked before the body is looked at, so a bad body
			// still reaches the service and fails field validation there.
			input = SendOTPInput{}
		}

		result, err := svc.RequestCode(c.Request.Context(), services.RequestCodeInput{
			Email:        input.Email,
			ProductID:    input.ProductID,
			CaptchaToken: input.CaptchaToken,
			SourceIP:     sourceIP(c),
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"message":   "Verification code sent to your email",
			"remaining": result.Remaining,
		})
	}
}

// VerifyOTP handles POST /verify-otp.
func VerifyOTP(svc *services.OTPService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input VerifyOTPInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingFields})
			return
		}

		result, err := svc.VerifyCode(c.Request.Context(), services.VerifyCodeInput{
			Email:     input.Email,
			Code:      input.OTP,
			ProductID: input.ProductID,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":      true,
			"message":      "Download link sent to your email",
			"downloadLink": result.DownloadLink,
		})
	}
}

// sourceIP is the address the send-otp quota is keyed on. Forwarding headers
// count only through the router's trusted proxy and platform settings.
func sourceIP(c *gin.Context) string {
	if ip := c.ClientIP(); net.ParseIP(ip) != nil {
		return ip
	}
	return "unknown"
}
