package models

// ForgotPasswordRequest starts a reset: the backend mails an OTP to Email.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest is sent once the reset OTP has been verified. Token is
// the reset token returned by the verify call; Code is the same OTP, which the
// backend may validate again.
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	Token       string `json:"token"`
	Code        string `json:"otp"`
	NewPassword string `json:"new_password"`
}

// CompleteResetRequest is what the screen host accepts from the shell. The
// token and code never leave the app core; they are looked up by FlowID.
type CompleteResetRequest struct {
	FlowID          string `json:"flow_id" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}
