package otp

import (
	"fmt"
	"time"
)

const signature = "PG/Hostel Management System"

// issueMessage renders the email that carries a passcode.
func issueMessage(displayName, code string, expiry time.Duration) (subject, body string) {
	subject = "Password Reset OTP - " + signature
	body = fmt.Sprintf(
		"Hello %s,\n\nYou have requested to reset your password.\n\nYour OTP code is: %s\n\nThis OTP will expire in %s.\n\nIf you did not request this password reset, please ignore this email.\n\nBest regards,\n%s\n",
		greetingName(displayName), code, expiryWindow(expiry), signature,
	)
	return subject, body
}

// confirmationMessage renders the email sent after a successful reset. It
// carries no secret.
func confirmationMessage(displayName string) (subject, body string) {
	subject = "Password Reset Successful - " + signature
	body = fmt.Sprintf(
		"Hello %s,\n\nYour password has been successfully reset.\n\nIf you did not make this change, please contact support immediately.\n\nBest regards,\n%s\n",
		greetingName(displayName), signature,
	)
	return subject, body
}

func greetingName(displayName string) string {
	if displayName == "" {
		return "there"
	}
	return displayName
}

// expiryWindow formats d for humans: "10 minutes", "1 minute", "30s".
func expiryWindow(d time.Duration) string {
	if d < time.Minute {
		return d.String()
	}
	m := int(d / time.Minute)
	if m == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}
