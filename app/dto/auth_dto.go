// Package dto contains Data Transfer Objects for API request and response structures
package dto

// SendOTPRequest asks for a registration OTP to be delivered by SMS.
// PhoneNumber is the normalized payload form: dial code without the plus,
// a dash, then the national digits (e.g. "1-2125551234").
type SendOTPRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,phone_payload"`
	SenderName  string `json:"sender_name" validate:"required,max=64"`
}

// SendOTPResponse represents the response after an OTP has been dispatched
type SendOTPResponse struct {
	Message     string `json:"message"`
	OTPSent     bool   `json:"otp_sent"`
	OTPTarget   string `json:"otp_target"` // Phone number (masked for security)
	ResendAfter int    `json:"resend_after"` // Seconds until another send is allowed
}

// VerifyOTPRequest represents the OTP verification request
type VerifyOTPRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,phone_payload"`
	OTPCode     string `json:"otp_code" validate:"required,len=6,numeric"`
}

// VerifyOTPResponse represents the response after successful OTP verification
type VerifyOTPResponse struct {
	Message  string `json:"message"`
	Verified bool   `json:"verified"`
}

// RegisterRequest completes account creation after the phone was verified
type RegisterRequest struct {
	TenantID    string `json:"tenant_id" validate:"required,max=64"`
	FirstName   string `json:"first_name" validate:"required,max=255,alpha_space"`
	LastName    string `json:"last_name" validate:"required,max=255,alpha_space"`
	Email       string `json:"email" validate:"required,email,max=255"`
	PhoneNumber string `json:"phone_number" validate:"required,phone_payload"`
	Password    string `json:"password" validate:"required,min=8"`
}

// RegisterResponse represents the response after successful registration
type RegisterResponse struct {
	Message     string  `json:"message"`
	AccessToken string  `json:"access_token"`
	TokenType   string  `json:"token_type"`
	ExpiresIn   int     `json:"expires_in"`
	User        UserDTO `json:"user"`
}

// LoginRequest represents the login form data. The captcha fields are only
// required once the account has accumulated failed attempts.
type LoginRequest struct {
	Email        string   `json:"email" validate:"required,email"`
	Password     string   `json:"password" validate:"required"`
	CaptchaID    *string  `json:"captcha_id,omitempty" validate:"omitempty,uuid"`
	CaptchaAngle *float64 `json:"captcha_angle,omitempty"`
}

// LoginResponse represents the response after successful authentication
type LoginResponse struct {
	AccessToken string  `json:"access_token"`
	TokenType   string  `json:"token_type"`
	ExpiresIn   int     `json:"expires_in"`
	User        UserDTO `json:"user"`
}

// CaptchaChallengeResponse carries a rotate-captcha challenge to the client
type CaptchaChallengeResponse struct {
	CaptchaID   string `json:"captcha_id"`
	MasterImage string `json:"master_image"` // base64 PNG
	ThumbImage  string `json:"thumb_image"`  // base64 PNG
}

// UserDTO represents user data for API responses
type UserDTO struct {
	ID              uint    `json:"id"`
	UUID            string  `json:"uuid"`
	TenantID        string  `json:"tenant_id"`
	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
	Email           string  `json:"email"`
	PhoneNumber     string  `json:"phone_number"`
	Role            string  `json:"role"`
	Status          string  `json:"status"`
	IsPhoneVerified *bool   `json:"is_phone_verified"`
	CreatedAt       string  `json:"created_at"`
	LastLoginAt     *string `json:"last_login_at,omitempty"`
}
