package utils

import (
	"fmt"
	"html"
	"regexp"
	"time"
)

const brandName = "Vivek Cuts"

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValidEmail applies the storefront's permissive address check.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// Common header for all emails
const emailHeader = `<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: Arial, sans-serif; background-color: #0a0a0a; color: #ffffff; margin: 0; padding: 0;">
	<div style="max-width: 600px; margin: 0 auto; padding: 40px 20px;">
		<div style="text-align: center; margin-bottom: 40px;">
			<div style="font-size: 32px; font-weight: bold; letter-spacing: 2px;">VIVEK CUTS</div>
		</div>
		<div style="background-color: #1a1a1a; border: 1px solid #333; border-radius: 12px; padding: 40px;">
`

// Common footer for all emails; takes the copyright year.
const emailFooter = `
		</div>
		<div style="text-align: center; margin-top: 40px; font-size: 14px; color: #666;">
			<p>&copy; %d Vivek Cuts. All rights reserved.</p>
			<p>This is an automated email. Please do not reply.</p>
		</div>
	</div>
</body>
</html>
`

func wrap(content string) string {
	return emailHeader + content + fmt.Sprintf(emailFooter, time.Now().Year())
}

// VerificationCodeEmail renders the message carrying a one-time code.
func VerificationCodeEmail(code, productName string, ttl time.Duration) (subject, body string) {
	subject = fmt.Sprintf("Your Verification Code: %s", code)
	body = wrap(fmt.Sprintf(`
			<h2 style="margin-top: 0;">Verification Code</h2>
			<p style="font-size: 16px; line-height: 1.6; color: #cccccc;">
				You requested to download <strong>%s</strong>.
				Use this verification code to complete your request:
			</p>
			<div style="background-color: #ffffff; color: #000000; font-size: 36px; font-weight: bold; text-align: center; padding: 20px; border-radius: 8px; margin: 30px 0; letter-spacing: 8px;">%s</div>
			<p style="font-size: 16px; line-height: 1.6; color: #cccccc;">
				This code will expire in <strong>%d minutes</strong>.
				If you didn't request this, please ignore this email.
			</p>
			<div style="background-color: #331a1a; border-left: 4px solid #ff4444; padding: 15px; margin: 20px 0; border-radius: 4px; font-size: 14px;">
				Never share this code with anyone. We will never ask for this code.
			</div>`,
		html.EscapeString(productName), code, int(ttl.Minutes())))
	return subject, body
}

// DownloadLinkEmail renders the free download message.
func DownloadLinkEmail(productName, link string, ttl time.Duration) (subject, body string) {
	subject = fmt.Sprintf("Your Download Link - %s", productName)
	body = wrap(downloadSection("Your Download is Ready!", productName, link, ttl))
	return subject, body
}

// PurchaseEmail renders the paid download message.
func PurchaseEmail(productName, link string, ttl time.Duration) (subject, body string) {
	subject = fmt.Sprintf("Your Purchase: %s", productName)
	body = wrap(downloadSection("Thank you for your purchase!", productName, link, ttl))
	return subject, body
}

func downloadSection(heading, productName, link string, ttl time.Duration) string {
	return fmt.Sprintf(`
			<h2 style="margin-top: 0;">%s</h2>
			<p style="font-size: 16px; line-height: 1.6; color: #cccccc;">
				Your copy of <strong>%s</strong> is ready to download.
			</p>
			<div style="text-align: center; margin: 30px 0;">
				<a href="%s" style="background-color: #ffffff; color: #000000; padding: 14px 32px; text-decoration: none; border-radius: 8px; font-weight: bold;">Download Now</a>
			</div>
			<p style="font-size: 14px; color: #999999;">This link expires in %d days.</p>`,
		html.EscapeString(heading), html.EscapeString(productName), html.EscapeString(link), int(ttl.Hours()/24))
}
